// Package logging provides the minimal logging interface shared by the store,
// tools, agents and teams, plus adapters for log/slog and zerolog.
//
// Usage:
//
//	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelDebug, Format: "text"})
//	store := state.NewStore[shopping.Product](func(o *state.Options) { o.Logger = logger })
//
// Messages are dotted event names ("tool.call.start", "agent.run.complete")
// followed by key/value pairs.
package logging
