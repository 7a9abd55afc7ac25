package main

import (
	"os"

	"github.com/talentpath/upskiller/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
