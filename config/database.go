package config

import (
	"fmt"
	"strings"
)

// Storage modes. They only pick the default table prefix, so agent and
// team runs can share one database file without mixing.
const (
	ModeAgent = "agent"
	ModeTeam  = "team"
)

// DatabaseConfig describes the SQL database used for run history, memories,
// summaries and, with state.backend sql, state snapshots.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Database string `yaml:"database"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	// Schema qualifies the tables on postgres.
	Schema string `yaml:"schema"`
	// Table prefixes every table; defaults to <mode>_sessions.
	Table string `yaml:"table"`
	Mode  string `yaml:"mode"`
}

// SetDefaults fills ports, ssl mode, mode and table.
func (c *DatabaseConfig) SetDefaults() {
	c.Driver = strings.ToLower(c.Driver)
	if c.Driver == "sqlite3" {
		c.Driver = "sqlite"
	}

	if c.Port == 0 {
		switch c.Driver {
		case "postgres":
			c.Port = 5432
		case "mysql":
			c.Port = 3306
		}
	}

	if c.Driver == "postgres" && c.SSLMode == "" {
		c.SSLMode = "disable"
	}

	if c.Mode == "" {
		c.Mode = ModeAgent
	}

	if c.Table == "" {
		c.Table = c.Mode + "_sessions"
	}
}

// Validate checks the database configuration.
func (c *DatabaseConfig) Validate() error {
	switch c.Driver {
	case "postgres", "mysql", "sqlite":
	case "":
		return fmt.Errorf("driver is required")
	default:
		return fmt.Errorf("invalid driver %q (valid: postgres, mysql, sqlite)", c.Driver)
	}

	if c.Database == "" {
		return fmt.Errorf("database is required")
	}

	if c.Driver != "sqlite" && c.Host == "" {
		return fmt.Errorf("host is required for %s", c.Driver)
	}

	if c.Schema != "" && c.Driver != "postgres" {
		return fmt.Errorf("schema is only supported on postgres")
	}

	if c.Mode != ModeAgent && c.Mode != ModeTeam {
		return fmt.Errorf("invalid mode %q (valid: agent, team)", c.Mode)
	}

	return nil
}

// DSN builds the driver specific data source name.
func (c *DatabaseConfig) DSN() string {
	switch c.Driver {
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%d dbname=%s", c.Host, c.Port, c.Database)
		if c.Username != "" {
			dsn += " user=" + c.Username
		}

		if c.Password != "" {
			dsn += " password=" + c.Password
		}

		if c.SSLMode != "" {
			dsn += " sslmode=" + c.SSLMode
		}

		return dsn
	case "mysql":
		if c.Username != "" {
			return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s", c.Username, c.Password, c.Host, c.Port, c.Database)
		}

		return fmt.Sprintf("tcp(%s:%d)/%s", c.Host, c.Port, c.Database)
	case "sqlite":
		return c.Database
	default:
		return ""
	}
}
