package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ramkansal/taglift/internal/config"
	"github.com/ramkansal/taglift/internal/logging"
)

var version = "0.1.0"

func main() {
	enableANSI()

	cfg, err := config.Load()
	if err != nil {
		fatal("%v", err)
	}
	logger, err := logging.NewLogger(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		fatal("logger: %v", err)
	}

	root := newRootCmd(newApp(cfg, logger))
	err = root.ExecuteContext(context.Background())
	_ = logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

// ---------- Banner / helpers ----------

func printBanner() {
	fmt.Println(clr("cyan", "  taglift"))
	fmt.Printf("  %s  %s\n", clr("dim", "Profile extraction with tags and delivery"), clr("dim", "v"+version))
	fmt.Printf("  %s\n", clr("dim", strings.Repeat("─", 50)))
}

func clr(color, text string) string {
	codes := map[string]string{
		"red":    "\033[31m",
		"green":  "\033[32m",
		"yellow": "\033[33m",
		"cyan":   "\033[36m",
		"dim":    "\033[2m",
		"reset":  "\033[0m",
	}
	if noColor {
		return text
	}
	c, ok := codes[color]
	if !ok {
		return text
	}
	return c + text + codes["reset"]
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "\n  %s %s\n\n", clr("red", "ERROR:"), fmt.Sprintf(format, args...))
	os.Exit(1)
}
