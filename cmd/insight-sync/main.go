package main

import (
	"os"

	"github.com/rcliao/insight-sync/internal/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
