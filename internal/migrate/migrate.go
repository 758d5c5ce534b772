// Package migrate applies the embedded PostgreSQL schema with goose.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

//go:embed sql/*.sql
var embedded embed.FS

// Migrations returns the migration files rooted at the directory goose reads.
func Migrations() fs.FS {
	sub, err := fs.Sub(embedded, "sql")
	if err != nil {
		panic(err) // embedded path is fixed at compile time
	}
	return sub
}

// Manager executes schema migrations against one database.
type Manager struct {
	provider *goose.Provider
}

// NewManager constructs a Manager over the embedded migrations.
func NewManager(db *sql.DB) (*Manager, error) {
	p, err := goose.NewProvider(goose.DialectPostgres, db, Migrations())
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return &Manager{provider: p}, nil
}

// Up applies all pending migrations and returns the applied file names.
func (m *Manager) Up(ctx context.Context) ([]string, error) {
	results, err := m.provider.Up(ctx)
	if err != nil {
		return nil, err
	}
	applied := make([]string, 0, len(results))
	for _, r := range results {
		applied = append(applied, r.Source.Path)
	}
	return applied, nil
}

// Down rolls back the most recent applied migration.
func (m *Manager) Down(ctx context.Context) (string, error) {
	res, err := m.provider.Down(ctx)
	if err != nil {
		return "", err
	}
	return res.Source.Path, nil
}

// Status returns one line per known migration: "<file> <state>".
func (m *Manager) Status(ctx context.Context) ([]string, error) {
	statuses, err := m.provider.Status(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, fmt.Sprintf("%s %s", st.Source.Path, st.State))
	}
	return out, nil
}
