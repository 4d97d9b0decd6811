package main

import (
	"os"

	"github.com/harun/oba/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
