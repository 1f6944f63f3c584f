package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
)

func (a *app) bind(flag *pflag.Flag, key string) {
	if err := a.v.BindPFlag(key, flag); err != nil {
		// only fails for a nil flag, which is a programming error
		fmt.Fprintf(os.Stderr, "failed to bind flag %q: %v\n", key, err)
		os.Exit(1)
	}
}
