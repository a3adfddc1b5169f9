package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	if err := newCommand(os.Getenv).Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "singalongd:", err)
		}
		os.Exit(1)
	}
}
