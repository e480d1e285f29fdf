package main

import (
	"os"

	"github.com/roach88/hades/internal/cli"
)

func main() {
	os.Exit(cli.Main(os.Args[1:], os.Stdout, os.Stderr))
}
