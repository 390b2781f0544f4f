package main

import (
	"os"

	"github.com/chairtools/chairstat/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
