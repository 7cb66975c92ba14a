// Package core holds the runtime types shared by agents, teams and tools:
// role based Content made of Parts, Events recorded during a run, the
// conversational Session, and the RunContext / ToolContext pair handed to
// tool implementations.
//
// Backing services (user memory, knowledge search) are reached through the
// small interfaces declared here so that concrete stores stay out of this
// package.
package core
