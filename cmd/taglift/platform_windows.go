//go:build windows

package main

import (
	"os"
	"syscall"
	"unsafe"
)

var (
	kernel32           = syscall.NewLazyDLL("kernel32.dll")
	procGetConsoleMode = kernel32.NewProc("GetConsoleMode")
	procSetConsoleMode = kernel32.NewProc("SetConsoleMode")
	procGetStdHandle   = kernel32.NewProc("GetStdHandle")
)

const (
	stdOutputHandle                 = ^uintptr(0) - 10 + 1 // STD_OUTPUT_HANDLE = -11
	enableVirtualTerminalProcessing = 0x0004
)

// enableANSI turns on escape code processing for the Windows 10+ console.
// Older consoles fall back to plain output.
func enableANSI() {
	handle, _, _ := procGetStdHandle.Call(stdOutputHandle)
	if handle == 0 {
		noColor = true
		return
	}
	var mode uint32
	if r, _, _ := procGetConsoleMode.Call(handle, uintptr(unsafe.Pointer(&mode))); r == 0 {
		noColor = true
		return
	}
	if r, _, _ := procSetConsoleMode.Call(handle, uintptr(mode|enableVirtualTerminalProcessing)); r == 0 {
		noColor = true
	}
}

// SIGTERM is never delivered on Windows.
func shutdownSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}
