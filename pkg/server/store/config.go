package store

import "fmt"

// Driver selects the gorm backend.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// SQLiteConfig configures the single-node backend.
type SQLiteConfig struct {
	// Path is the sqlite database file. Default: "./lockbook-server.db".
	Path string `mapstructure:"path" yaml:"path"`
}

// PostgresConfig configures the HA-capable backend.
type PostgresConfig struct {
	Host         string `mapstructure:"host" yaml:"host" validate:"required_if=Driver postgres"`
	Port         int    `mapstructure:"port" yaml:"port"`
	Database     string `mapstructure:"database" yaml:"database" validate:"required_if=Driver postgres"`
	User         string `mapstructure:"user" yaml:"user" validate:"required_if=Driver postgres"`
	Password     string `mapstructure:"password" yaml:"password"`
	SSLMode      string `mapstructure:"ssl_mode" yaml:"ssl_mode"`
	MaxOpenConns int    `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
}

// DSN renders the libpq connection string golang-migrate and gorm both
// accept.
func (c PostgresConfig) DSN() string {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
	return dsn
}

// Config selects and configures the server's metadata backend.
type Config struct {
	Driver   Driver `mapstructure:"driver" yaml:"driver" validate:"required,oneof=sqlite postgres"`
	SQLite   SQLiteConfig
	Postgres PostgresConfig
}

// ApplyDefaults fills in zero-valued fields, following the teacher's
// ApplyDefaults-then-Validate sequencing.
func (c *Config) ApplyDefaults() {
	if c.Driver == "" {
		c.Driver = DriverSQLite
	}
	if c.Driver == DriverSQLite && c.SQLite.Path == "" {
		c.SQLite.Path = "./lockbook-server.db"
	}
	if c.Driver == DriverPostgres {
		if c.Postgres.Port == 0 {
			c.Postgres.Port = 5432
		}
		if c.Postgres.SSLMode == "" {
			c.Postgres.SSLMode = "disable"
		}
		if c.Postgres.MaxOpenConns == 0 {
			c.Postgres.MaxOpenConns = 25
		}
		if c.Postgres.MaxIdleConns == 0 {
			c.Postgres.MaxIdleConns = 5
		}
	}
}

// Validate reports a misconfigured backend.
func (c *Config) Validate() error {
	switch c.Driver {
	case DriverSQLite:
		if c.SQLite.Path == "" {
			return fmt.Errorf("sqlite path is required")
		}
	case DriverPostgres:
		if c.Postgres.Host == "" || c.Postgres.Database == "" || c.Postgres.User == "" {
			return fmt.Errorf("postgres host, database and user are required")
		}
	default:
		return fmt.Errorf("unsupported store driver: %s", c.Driver)
	}
	return nil
}
