package migrate

import (
	"io/fs"
	"strings"
	"testing"
)

func TestEmbeddedMigrationsAreAnnotated(t *testing.T) {
	files, err := fs.Glob(Migrations(), "*.sql")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(files) < 2 {
		t.Fatalf("expected migrations, got %v", files)
	}
	for _, name := range files {
		body, err := fs.ReadFile(Migrations(), name)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		text := string(body)
		if !strings.Contains(text, "-- +goose Up") || !strings.Contains(text, "-- +goose Down") {
			t.Fatalf("%s is missing goose annotations", name)
		}
	}
}

func TestSchemaCoversStoreTables(t *testing.T) {
	var all strings.Builder
	files, _ := fs.Glob(Migrations(), "*.sql")
	for _, name := range files {
		body, _ := fs.ReadFile(Migrations(), name)
		all.Write(body)
	}
	for _, table := range []string{"records", "balances", "journal"} {
		if !strings.Contains(all.String(), "create table if not exists "+table) {
			t.Fatalf("table %s not created by any migration", table)
		}
	}
}
