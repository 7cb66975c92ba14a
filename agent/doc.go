// Package agent implements the model driven agent: it renders instructions,
// replays session history, lets the model call tools (several per turn, run
// in parallel), validates structured answers and records each run.
//
// An Agent is configured once through Options and is safe for concurrent
// Runs; per-run data lives in a core.RunContext.
package agent
