// Package main provides the gradbridge CLI.
package main

import (
	"context"
	"os"

	"github.com/born-ml/gradbridge/internal/cli"
)

const version = "v0.1.0-dev"

func main() {
	if err := cli.NewRootCommand(version).ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
