package main

import (
	"context"
	"fmt"
	"os"

	"github.com/goliatone/go-tplguard/internal/cli"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	build := cli.BuildInfo{Version: version, Commit: commit, Date: date}
	if err := cli.Execute(context.Background(), build); err != nil {
		fmt.Fprintf(os.Stderr, "tplguard: %v\n", err)
		os.Exit(1)
	}
}
