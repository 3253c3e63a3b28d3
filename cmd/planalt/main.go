// Package main is the entry point for the planalt binary.
package main

import (
	"fmt"
	"os"

	"github.com/jnidzwetzki/pg-plan-alternatives/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
