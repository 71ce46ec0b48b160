package main

import (
	"os"

	"github.com/claytondukes/dibo-gems/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
