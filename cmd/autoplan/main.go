package main

import (
	"os"

	"autoplan/internal/cli"
)

func main() {
	os.Exit(cli.ExitCode(cli.Execute()))
}
