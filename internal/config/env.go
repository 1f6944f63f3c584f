package config

import "strings"

// strace.path -> SYSCOUNT_STRACE_PATH
var envReplacer = strings.NewReplacer(".", "_")
