package main

import (
	"os"

	"github.com/Harshitk-cp/veritas/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
