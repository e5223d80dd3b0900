package main

import (
	"os"

	"github.com/edigeo-cadastre/ingest/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
