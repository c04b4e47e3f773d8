package main

import (
	"os"

	cmd "github.com/corvid-labs/legalscout/internal/cli"
)

func main() {
	os.Exit(cmd.Execute())
}
