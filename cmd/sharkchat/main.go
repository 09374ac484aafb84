package main

import (
	"fmt"
	"os"

	"github.com/soyeahso/sharkchat/internal/cli"
	"github.com/tillberg/autorestart"
)

func main() {
	if os.Getenv("SHARKCHAT_AUTORESTART") != "" {
		go autorestart.RestartOnChange()
	}

	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
