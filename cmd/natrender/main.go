package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if errors.Is(err, context.Canceled) {
			// Interrupted renders exit like a shell job killed by SIGINT.
			os.Exit(130)
		}
		fmt.Fprintf(os.Stderr, "natrender: %v\n", err)
		os.Exit(1)
	}
}
