//go:build !windows

package main

import (
	"os"
	"syscall"
)

// Unix terminals handle ANSI colors natively.
func enableANSI() {}

func shutdownSignals() []os.Signal {
	return []os.Signal{os.Interrupt, syscall.SIGTERM}
}
