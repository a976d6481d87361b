// Package output renders rdgctl results.
//
//   - formatter.go: Formatter interface and format selection
//   - table.go: aligned text tables for terminals
//   - json.go, yaml.go: machine-readable output
//
// Result types describe their table layout with `table` struct tags:
// `table:"NAME"` renames a column, `table:"-"` hides a field and
// `table:"NAME,wide"` shows it only with --wide.
package output
