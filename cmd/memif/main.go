// Command memif drives a guest across the memory boundary: it stores host
// values in guest memory, has the guest read them back, and fetches the
// guest's greeting.
//
//	memif run --local
//	memif run --wasm guest.wasm
//	memif schema
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kingpin/v2"
)

func main() {
	app := kingpin.New("memif", "Exercise the wasm guest/host memory interface.")
	app.HelpFlag.Short('h')

	addRunCommand(app)
	addSchemaCommand(app)

	kingpin.MustParse(app.Parse(os.Args[1:]))
}

func exitWithErr(err error) {
	fmt.Fprintln(os.Stderr, err.Error())
	os.Exit(1)
}
