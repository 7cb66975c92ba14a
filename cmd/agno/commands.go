package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/Yaaesthetic/agno/agent"
	"github.com/Yaaesthetic/agno/internal/app"
	"github.com/Yaaesthetic/agno/memory"
	"github.com/Yaaesthetic/agno/server"
)

// RunCmd sends a single message.
type RunCmd struct {
	Name     string `arg:"" help:"Agent or team name."`
	Message  string `arg:"" help:"Message to send."`
	User     string `help:"User id." default:"user"`
	Session  string `help:"Session id (generated when empty)."`
	JSON     bool   `name:"json" help:"Print the full run response as JSON."`
	Stream   bool   `help:"Print fragments as they arrive."`
	InitList bool   `name:"init-list" help:"Initialise the shopping list of the user and session first."`
}

func (c *RunCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := cli.build(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	session := c.Session
	if c.InitList {
		session = initList(a, c.User, session)
	}

	in := agent.RunInput{Message: c.Message, UserID: c.User, SessionID: session}

	resp, err := runOnce(ctx, a, c.Name, in, c.Stream, os.Stdout)
	if resp == nil {
		return err
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}

	if c.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(resp)
	}

	if !c.Stream {
		fmt.Println(resp.Content)
	}

	return nil
}

// runOnce runs name and, when stream is set, copies fragments to out.
func runOnce(ctx context.Context, a *app.App, name string, in agent.RunInput, stream bool, out io.Writer) (*agent.RunResponse, error) {
	if !stream {
		return a.Runner.Run(ctx, name, in)
	}

	partials, done := a.Runner.Stream(ctx, name, in)
	for p := range partials {
		fmt.Fprint(out, p)
	}

	res := <-done
	if res.Response != nil {
		fmt.Fprintln(out)
	}

	return res.Response, res.Err
}

// initList initialises the shopping list of user and session, generating a
// session id when none is given, and returns the session id.
func initList(a *app.App, user, session string) string {
	if session == "" {
		session = uuid.NewString()
	}

	a.Shopping.Store().InitSession(user, session)

	return session
}

// ChatCmd runs an interactive session until EOF or "exit".
type ChatCmd struct {
	Name     string `arg:"" help:"Agent or team name."`
	User     string `help:"User id." default:"user"`
	Session  string `help:"Session id (generated when empty)."`
	Stream   bool   `default:"true" negatable:"" help:"Stream responses (use --no-stream to disable)."`
	InitList bool   `name:"init-list" help:"Initialise the shopping list of the user and session first."`
}

func (c *ChatCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := cli.build(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if _, ok := a.Runner.Get(c.Name); !ok {
		return fmt.Errorf("unknown agent or team %q (available: %s)", c.Name, strings.Join(a.Runner.Names(), ", "))
	}

	session := c.Session
	if session == "" {
		session = uuid.NewString()
	}

	if c.InitList {
		initList(a, c.User, session)
	}

	fmt.Printf("Chatting with %s (session %s). Type \"exit\" to quit.\n", c.Name, session)

	return chat(ctx, a, c.Name, c.User, session, c.Stream, os.Stdin, os.Stdout)
}

func chat(ctx context.Context, a *app.App, name, user, session string, stream bool, in io.Reader, out io.Writer) error {
	sc := bufio.NewScanner(in)

	for {
		fmt.Fprint(out, "> ")

		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}

		line := strings.TrimSpace(sc.Text())

		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		resp, err := runOnce(ctx, a, name, agent.RunInput{Message: line, UserID: user, SessionID: session}, stream, out)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		if resp != nil && !stream {
			fmt.Fprintln(out, resp.Content)
		}
	}
}

// KnowledgeCmd groups knowledge base commands.
type KnowledgeCmd struct {
	Load KnowledgeLoadCmd `cmd:"" help:"Read sources into the vector database."`
}

// KnowledgeLoadCmd loads every configured knowledge base.
type KnowledgeLoadCmd struct {
	Recreate bool `help:"Drop existing documents first."`
}

func (c *KnowledgeLoadCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := cli.build(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	loaded, err := a.LoadKnowledge(ctx, c.Recreate)

	names := make([]string, 0, len(loaded))
	for n := range loaded {
		names = append(names, n)
	}

	sort.Strings(names)

	for _, n := range names {
		fmt.Printf("%s: %d document(s)\n", n, loaded[n])
	}

	return err
}

// SessionsCmd prints the runs of a session and the memory of its user.
type SessionsCmd struct {
	User    string `help:"User id." required:""`
	Session string `help:"Session id; empty lists the user's sessions."`
	Limit   int    `help:"Show at most this many runs (0 = all)."`
}

func (c *SessionsCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := cli.build(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.Storage == nil {
		return fmt.Errorf("no database configured")
	}

	if c.Session == "" {
		infos, err := a.Storage.Sessions(ctx, c.User)
		if err != nil {
			return err
		}

		for _, s := range infos {
			fmt.Printf("%s  runs=%d  updated=%s\n", s.SessionID, s.Runs, s.UpdatedAt.Format("2006-01-02 15:04:05"))
		}

		return nil
	}

	runs, err := a.Storage.Runs(ctx, c.Session, c.Limit)
	if err != nil {
		return err
	}

	for _, r := range runs {
		fmt.Printf("[%s] %s (%s)\n  user: %s\n  assistant: %s\n", r.CreatedAt.Format("15:04:05"), r.Owner, r.Mode, r.Input, r.Output)
	}

	st, err := memory.NewManager(a.MemoryDB).Stats(ctx, a.Storage, c.User, c.Session)
	if err != nil {
		return err
	}

	fmt.Printf("\nruns in session: %d\nsessions of user: %d\nuser memories: %d\nsummary: %t\n",
		st.SessionRuns, st.Sessions, st.UserMemories, st.HasSummary)

	return nil
}

// ServeCmd starts the HTTP API.
type ServeCmd struct {
	Address       string `help:"Listen address (overrides server.address)."`
	SkipKnowledge bool   `help:"Do not load knowledge bases at startup."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := cli.build(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if !c.SkipKnowledge && len(a.Knowledge) > 0 {
		if _, err := a.LoadKnowledge(ctx, false); err != nil {
			return err
		}
	}

	sc := a.Config.Server

	addr := sc.Address
	if c.Address != "" {
		addr = c.Address
	}

	srv := server.New(server.Options{
		Runner:          a.Runner,
		Storage:         a.Storage,
		Memory:          a.MemoryDB,
		Shopping:        a.Shopping.Store(),
		Metrics:         a.Metrics,
		Logger:          a.Logger,
		ReadTimeout:     sc.ReadTimeout,
		WriteTimeout:    sc.WriteTimeout,
		ShutdownTimeout: sc.ShutdownTimeout,
	})

	fmt.Printf("agno listening on %s (%s)\n", addr, strings.Join(a.Runner.Names(), ", "))

	return srv.ListenAndServe(ctx, addr)
}
