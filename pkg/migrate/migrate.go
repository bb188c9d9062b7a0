package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"strconv"

	"github.com/pressly/goose/v3"
)

// DefaultDir is the on-disk location used by the create and validate commands.
const DefaultDir = "pkg/migrate/migrations"

const embeddedDir = "migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// Embedded exposes the migrations compiled into the binary.
func Embedded() fs.FS {
	return embedded
}

// Migrator runs goose against one database. An empty dir selects the embedded
// migrations so deployed binaries do not need the source tree.
type Migrator struct {
	db  *sql.DB
	dir string
}

func New(db *sql.DB, dir string) (*Migrator, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	// migrations use Postgres-only DDL (bigserial, partial indexes)
	if err := goose.SetDialect("postgres"); err != nil {
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}
	if dir == "" {
		goose.SetBaseFS(embedded)
		dir = embeddedDir
	} else {
		goose.SetBaseFS(nil)
	}
	return &Migrator{db: db, dir: dir}, nil
}

func (m *Migrator) Up(ctx context.Context) error {
	return m.run(ctx, "up")
}

func (m *Migrator) Down(ctx context.Context) error {
	return m.run(ctx, "down")
}

// Status prints the applied state of every migration to stdout.
func (m *Migrator) Status(ctx context.Context) error {
	return m.run(ctx, "status")
}

// To migrates up or down until the database sits at version (YYYYMMDDHHMMSS).
func (m *Migrator) To(ctx context.Context, version string) error {
	target, err := strconv.ParseInt(version, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", version, err)
	}
	current, err := goose.GetDBVersionContext(ctx, m.db)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}

	switch {
	case current < target:
		err = goose.UpToContext(ctx, m.db, m.dir, target)
	case current > target:
		err = goose.DownToContext(ctx, m.db, m.dir, target)
	}
	if err != nil {
		return fmt.Errorf("goose migrate to %d from %d: %w", target, current, err)
	}
	return nil
}

func (m *Migrator) run(ctx context.Context, command string) error {
	if err := goose.RunContext(ctx, command, m.db, m.dir); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}
