// Command importcheck runs the import pipeline on a local file without a
// server: it decodes, validates and classifies the file, then reports what a
// commit would contain.
package main

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/pterm/pterm"

	_ "github.com/JonMunkholm/recordimport/internal/core/schemas" // Register built-in record types
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		pterm.Error.Println(err.Error())
		for _, hint := range errors.GetAllHints(err) {
			pterm.Info.Println(hint)
		}
		os.Exit(1)
	}
}
