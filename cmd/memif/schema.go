package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kingpin/v2"

	"github.com/Santiael/wasm-memory-interface/config"
)

func addSchemaCommand(app *kingpin.Application) {
	app.Command("schema", "Print the JSON schema of the configuration file.").
		Action(func(*kingpin.ParseContext) error {
			out, err := config.Schema()
			if err != nil {
				exitWithErr(err)
			}
			_, _ = fmt.Fprintln(os.Stdout, string(out))
			return nil
		})
}
