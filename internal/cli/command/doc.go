// Package command defines the rdgctl commands using urfave/cli/v2.
//
//   - root.go: App, global flags, configuration and session setup
//   - inspect.go: manifest summary of an rdg dir
//   - migrate.go: format upgrade, optionally written back
//   - view.go: load or build topology views
//   - property.go: print a property column
//   - config.go: effective configuration
//   - version.go: build information
//
// Commands open one session per invocation; views built by the view
// command are persisted when views.persist is set, so the next invocation
// loads them.
package command
