package main

import (
	"os"
	"time"
)

var (
	version   = "dev"
	startedAt = time.Now()
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
