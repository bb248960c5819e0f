package main

import (
	"os"

	"tripdesk/internal/cli"
)

func main() {
	os.Exit(cli.Run())
}
