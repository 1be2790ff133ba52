// Package main is the entry point for the courtql CLI binary.
package main

import (
	"os"

	_ "github.com/mattn/go-sqlite3"

	cli "courtql/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
