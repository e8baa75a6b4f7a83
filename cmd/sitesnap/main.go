package main

import (
	"os"

	"sitesnap/src/cli"
)

func main() {
	os.Exit(cli.Execute())
}
