// Command composable runs scenarios against the demo features and inspects
// and replays recorded journals.
package main

import (
	"os"

	"github.com/roach88/composable/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:], os.Stdout, os.Stderr))
}
