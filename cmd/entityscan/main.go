// Command entityscan finds named entities in text files and reports each one
// with its line, line-relative offsets and surrounding lines.
//
// Usage:
//
//	entityscan analyze <filename> [--chunk_size N]
//	entityscan scan <dir>
//	entityscan serve
//	entityscan version
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dshills/entityscan/internal/cli"
)

var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cli.Version = version
	if err := cli.Execute(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "entityscan: %v\n", err)
		cancel()
		os.Exit(1)
	}
}
