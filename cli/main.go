package main

import (
	"os"

	"github.com/crnapay/crnapay-stack/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
