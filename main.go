package main

import (
	"os"

	"github.com/chuckie/autopr/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
