// wiretrace - TCP trace decoder and transaction matcher
//
// wiretrace decodes fixed-width message traces against a per-namespace
// schema and reconstructs request/response transactions.
package main

import (
	"os"

	"github.com/ccollicutt/wiretrace/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
