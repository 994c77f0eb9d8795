package main

import (
	"os"

	"github.com/quotedesk/checkout/cmd/quotectl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
