package main

import (
	"context"
	"fmt"
	"os"

	"github.com/vipul43/gigwatch/internal/cli"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return cli.Execute(context.Background())
}
