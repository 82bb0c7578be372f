package main

import (
	"os"

	"github.com/msto63/minerva/cmd/minerva/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
