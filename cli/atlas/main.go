package main

import (
	"os"

	atlascmder "github.com/atlaschat/atlas/cmd/atlas"
)

func main() {
	cmd := atlascmder.NewAtlasCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
