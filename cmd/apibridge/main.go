package main

import (
	"os"

	"github.com/harun/apibridge/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
