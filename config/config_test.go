package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const shoppingYAML = `
logging:
  level: ${AGNO_TEST_LEVEL:-debug}
models:
  gpt:
    provider: openai
    model: gpt-4o
    api_key: ${AGNO_TEST_KEY}
database:
  driver: sqlite
  database: ${AGNO_TEST_DIR:-tmp}/agents.db
  mode: team
state:
  backend: sql
agents:
  faq:
    model: gpt
    max_tool_rounds: ${AGNO_TEST_ROUNDS:-4}
teams:
  shopping:
    name: Shopping List Team
    model: gpt
    tools: [shopping]
    add_history_to_messages: true
    enable_user_memories: true
server:
  read_timeout: 5s
`

func TestParse_ExpandsAndDefaults(t *testing.T) {
	t.Setenv("AGNO_TEST_KEY", "sk-test")

	cfg, err := Parse([]byte(shoppingYAML))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "slog", cfg.Logging.Backend)
	assert.Equal(t, "sk-test", cfg.Models["gpt"].APIKey)

	assert.Equal(t, "tmp/agents.db", cfg.Database.DSN())
	assert.Equal(t, "team_sessions", cfg.Database.Table)

	assert.Equal(t, "shopping", cfg.State.Name)
	assert.Equal(t, 4, cfg.Agents["faq"].MaxToolRounds)
	assert.Equal(t, "faq", cfg.Agents["faq"].Name)

	team := cfg.Teams["shopping"]
	assert.Equal(t, "Shopping List Team", team.Name)
	assert.Equal(t, "coordinate", team.Mode)
	assert.True(t, team.UserMemories)
	assert.True(t, team.MemoryFlags.Enabled())

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, []string{"faq", "shopping"}, cfg.Runnable())
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown model", "agents:\n  a:\n    model: nope\n", `agent a: unknown model "nope"`},
		{"missing model", "agents:\n  a: {}\n", "agent a: model is required"},
		{"bad provider", "models:\n  m:\n    provider: cohere\n", `unknown provider "cohere"`},
		{"bad tool", "models:\n  m: {provider: mock}\nagents:\n  a:\n    model: m\n    tools: [browser]\n", `unknown tool set "browser"`},
		{"unknown member", "models:\n  m: {provider: mock}\nteams:\n  t:\n    model: m\n    members: [ghost]\n", `unknown member "ghost"`},
		{"cycle", "models:\n  m: {provider: mock}\nteams:\n  a:\n    model: m\n    members: [b]\n  b:\n    model: m\n    members: [a]\n", "member cycle"},
		{"sql state without db", "state:\n  backend: sql\n", "requires a database section"},
		{"history without db", "models:\n  m: {provider: mock}\nagents:\n  a:\n    model: m\n    add_history_to_messages: true\n", "requires a database section"},
		{"bad mode", "models:\n  m: {provider: mock}\nteams:\n  t:\n    model: m\n    mode: swarm\n", `unknown mode "swarm"`},
		{"schema on sqlite", "database:\n  driver: sqlite\n  database: a.db\n  schema: ai\n", "only supported on postgres"},
		{"redis without address", "state:\n  backend: redis\n", "redis.address is required"},
		{"session without user", "state:\n  sessions:\n    - session: s1\n", "sessions[0]: user and session are required"},
		{"overlap", "knowledge:\n  k:\n    chunk_size: 10\n    chunk_overlap: 10\n", "chunk_overlap must be smaller"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.State.Backend)
	assert.Empty(t, cfg.Runnable())
}

func TestDatabaseConfig_DSN(t *testing.T) {
	pg := &DatabaseConfig{Driver: "postgres", Host: "db", Database: "ai", Username: "u", Password: "p"}
	pg.SetDefaults()
	require.NoError(t, pg.Validate())
	assert.Equal(t, "host=db port=5432 dbname=ai user=u password=p sslmode=disable", pg.DSN())

	my := &DatabaseConfig{Driver: "mysql", Host: "db", Database: "ai", Username: "u", Password: "p"}
	my.SetDefaults()
	assert.Equal(t, "u:p@tcp(db:3306)/ai", my.DSN())
	assert.Equal(t, "agent_sessions", my.Table)

	lite := &DatabaseConfig{Driver: "SQLite3", Database: "x.db"}
	lite.SetDefaults()
	assert.Equal(t, "sqlite", lite.Driver)
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("AGNO_A", "1")

	assert.Equal(t, "1-1-x", ExpandEnv("$AGNO_A-${AGNO_A}-${AGNO_UNSET_B:-x}"))
	assert.Equal(t, "plain", ExpandEnv("plain"))
}

func TestLoad_ReadsDotEnvNextToConfig(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("AGNO_TEST_DOTENV_KEY=from-dotenv\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "agno.yaml"), []byte("models:\n  m:\n    provider: openai\n    api_key: ${AGNO_TEST_DOTENV_KEY}\n"), 0o600))

	t.Cleanup(func() { _ = os.Unsetenv("AGNO_TEST_DOTENV_KEY") })

	cfg, err := Load(filepath.Join(dir, "agno.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Models["m"].APIKey)
}
