package main

import (
	"os"

	"github.com/dshills/aicr/internal/cli"
)

func main() {
	os.Exit(cli.Run())
}
