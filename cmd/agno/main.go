// Command agno runs agents and teams described in a YAML config.
//
// Usage:
//
//	agno validate -c agno.yaml
//	agno run -c agno.yaml shopping-team "Add 2 loaves of bread" --user user_1 --session s1
//	agno chat -c agno.yaml support-team
//	agno knowledge load -c agno.yaml --recreate
//	agno sessions -c agno.yaml --user user_1 --session s1
//	agno serve -c agno.yaml
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/Yaaesthetic/agno/config"
	"github.com/Yaaesthetic/agno/internal/app"
)

// CLI defines the command-line interface.
type CLI struct {
	Version   VersionCmd   `cmd:"" help:"Show version information."`
	Validate  ValidateCmd  `cmd:"" help:"Validate the configuration file."`
	Run       RunCmd       `cmd:"" help:"Send one message to an agent or team."`
	Chat      ChatCmd      `cmd:"" help:"Chat with an agent or team on the terminal."`
	Knowledge KnowledgeCmd `cmd:"" help:"Manage knowledge bases."`
	Sessions  SessionsCmd  `cmd:"" help:"Show stored runs and memory of a session."`
	Serve     ServeCmd     `cmd:"" help:"Start the HTTP API."`

	Config   string `short:"c" help:"Path to config file." type:"path" default:"agno.yaml"`
	LogLevel string `help:"Override the configured log level (debug, info, warn, error)."`
}

// load reads the config and applies CLI overrides.
func (c *CLI) load() (*config.Config, error) {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return nil, err
	}

	if c.LogLevel != "" {
		cfg.Logging.Level = c.LogLevel
		if err := cfg.Logging.Validate(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// build loads the config and wires the application.
func (c *CLI) build(ctx context.Context) (*app.App, error) {
	cfg, err := c.load()
	if err != nil {
		return nil, err
	}

	return app.Build(ctx, cfg)
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}

	fmt.Printf("agno version %s\n", version)

	return nil
}

// ValidateCmd checks the configuration without opening anything.
type ValidateCmd struct{}

func (c *ValidateCmd) Run(cli *CLI) error {
	cfg, err := cli.load()
	if err != nil {
		return err
	}

	fmt.Printf("%s is valid: %d model(s), %d agent(s), %d team(s), %d knowledge base(s)\n",
		cli.Config, len(cfg.Models), len(cfg.Agents), len(cfg.Teams), len(cfg.Knowledge))

	for _, name := range cfg.Runnable() {
		fmt.Printf("  - %s\n", name)
	}

	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func main() {
	_ = config.LoadDotEnv()

	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("agno"),
		kong.Description("Agents, teams and shopping lists from a YAML config."),
		kong.UsageOnError(),
	)

	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
