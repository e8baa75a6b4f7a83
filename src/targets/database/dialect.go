package database

import (
	"strconv"
	"strings"

	"sitesnap/src/toolrun"
)

// DefaultHost is used when a connection does not name one.
const DefaultHost = "127.0.0.1"

// Connection holds the resolved settings of one database. Each target owns
// its own copy.
type Connection struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	// Encoding used when the database is recreated on restore.
	Encoding string
}

func (c Connection) host() string {
	if c.Host == "" {
		return DefaultHost
	}
	return c.Host
}

// Dialect knows how to drive the dump and restore tools of one engine.
type Dialect interface {
	// Engine names the engine in artifact file names.
	Engine() string
	DumpCommand(c Connection) toolrun.Command
	// RestoreCommand returns a command that reads SQL from stdin.
	RestoreCommand(c Connection) toolrun.Command
	// Preamble is prepended to every dump so restores start from an empty
	// database instead of merging into whatever exists.
	Preamble(c Connection) string
}

// Postgres drives pg_dump and psql.
type Postgres struct {
	// AdminDatabase is connected to while the target database is dropped.
	// Defaults to "postgres".
	AdminDatabase string
}

func (Postgres) Engine() string { return "postgres" }

func (p Postgres) admin() string {
	if p.AdminDatabase != "" {
		return p.AdminDatabase
	}
	return "postgres"
}

func (Postgres) env(c Connection, dbname string) map[string]string {
	env := map[string]string{}
	if c.User != "" {
		env["PGUSER"] = c.User
	}
	if c.Password != "" {
		env["PGPASSWORD"] = c.Password
	}
	if dbname != "" {
		env["PGDATABASE"] = dbname
	}
	return env
}

func (Postgres) connArgs(c Connection) []string {
	args := []string{"--host=" + c.host()}
	if c.Port != 0 {
		args = append(args, "--port="+strconv.Itoa(c.Port))
	}
	return args
}

func (p Postgres) DumpCommand(c Connection) toolrun.Command {
	args := p.connArgs(c)
	if c.Name != "" {
		args = append(args, c.Name)
	}
	return toolrun.Command{Path: "pg_dump", Args: args, Env: p.env(c, c.Name)}
}

func (p Postgres) RestoreCommand(c Connection) toolrun.Command {
	args := append(p.connArgs(c), "--quiet", "--dbname="+p.admin())
	return toolrun.Command{Path: "psql", Args: args, Env: p.env(c, p.admin())}
}

func (p Postgres) Preamble(c Connection) string {
	enc := c.Encoding
	if enc == "" {
		enc = "UTF8"
	}
	owner := ""
	if c.User != "" {
		owner = " WITH OWNER " + pgIdent(c.User)
	}
	return strings.Join([]string{
		`\connect ` + pgIdent(p.admin()),
		"DROP DATABASE IF EXISTS " + pgIdent(c.Name) + ";",
		"CREATE DATABASE " + pgIdent(c.Name) + owner + " ENCODING " + pgLiteral(enc) + ";",
		`\connect ` + pgIdent(c.Name),
		"",
	}, "\n")
}

func pgIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func pgLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// MySQL drives mysqldump and mysql.
type MySQL struct{}

func (MySQL) Engine() string { return "mysql" }

func (MySQL) env(c Connection) map[string]string {
	if c.Password == "" {
		return nil
	}
	return map[string]string{"MYSQL_PWD": c.Password}
}

func (MySQL) connArgs(c Connection) []string {
	args := []string{"--host=" + c.host()}
	if c.Port != 0 {
		args = append(args, "--port="+strconv.Itoa(c.Port))
	}
	if c.User != "" {
		args = append(args, "--user="+c.User)
	}
	return args
}

func (m MySQL) DumpCommand(c Connection) toolrun.Command {
	args := append(m.connArgs(c), "--single-transaction", "--routines", "--events", "--no-tablespaces", c.Name)
	return toolrun.Command{Path: "mysqldump", Args: args, Env: m.env(c)}
}

func (m MySQL) RestoreCommand(c Connection) toolrun.Command {
	return toolrun.Command{Path: "mysql", Args: m.connArgs(c), Env: m.env(c)}
}

func (MySQL) Preamble(c Connection) string {
	enc := c.Encoding
	if enc == "" || strings.EqualFold(enc, "UTF8") || strings.EqualFold(enc, "UTF-8") {
		enc = "utf8mb4"
	}
	name := myIdent(c.Name)
	return strings.Join([]string{
		"DROP DATABASE IF EXISTS " + name + ";",
		"CREATE DATABASE " + name + " CHARACTER SET " + enc + ";",
		"USE " + name + ";",
		"",
	}, "\n")
}

func myIdent(s string) string {
	return "`" + strings.ReplaceAll(s, "`", "``") + "`"
}

// DialectFor returns the dialect registered under engine.
func DialectFor(engine string) (Dialect, bool) {
	switch strings.ToLower(engine) {
	case "postgres", "postgresql":
		return Postgres{}, true
	case "mysql", "mariadb":
		return MySQL{}, true
	}
	return nil, false
}
