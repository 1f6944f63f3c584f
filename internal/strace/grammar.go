package strace

import "regexp"

// LineRegex matches lines such as `write(1, "hi\n", 3) = 3 <0.000005>`.
//
// Groups: name, arguments, return value (integer or "?"), elapsed seconds (may be empty).
// The match is anchored at the start of the line only; anything after the closing '>' is ignored.
var LineRegex = regexp.MustCompile(`^(\w+)\((.*?)\)\s+=\s+(-?\d+|\?)\s*<([\d.]+)?>`)
