package main

import (
	"os"

	"github.com/bilitrack/bilitrack/internal/cli"
)

func main() {
	cli.InitCLI()
	os.Exit(cli.ExecuteWithErrorCode(os.Args[1:]))
}
