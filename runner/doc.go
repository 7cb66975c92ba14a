// Package runner serves named agents and teams to the CLI and the HTTP
// server. A Runner bounds the number of concurrent runs, lets callers cancel
// the in-flight runs of a session, streams partial output and runs hooks
// after each successful run (the shopping list snapshot is saved that way).
package runner
