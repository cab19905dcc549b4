package main

import (
	"encoding/json"
	"regexp"

	"github.com/spf13/cobra"
)

// frameSpanPattern matches "12", "1-24", "-5-5" and "1-24x2".
var frameSpanPattern = regexp.MustCompile(`^(-?\d+)(?:-(-?\d+))?(?:x(\d+))?$`)

// writeJSON encodes v as indented JSON to stdout. Nil slices are written as
// null, which scripts reading --json output treat as empty.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
