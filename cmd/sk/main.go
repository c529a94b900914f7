package main

import (
	"os"

	"github.com/bnema/sessionkit/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
