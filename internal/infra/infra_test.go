package infra

import (
	"context"
	"io/fs"
	"strings"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/finaki/finaki/internal/config"
	"github.com/finaki/finaki/internal/logging"
)

func TestMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(migrationFiles, "migrations")
	if err != nil {
		t.Fatalf("read migrations: %v", err)
	}
	ups, downs := map[string]bool{}, map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Fatalf("unexpected file %s", name)
		}
	}
	if len(ups) == 0 {
		t.Fatal("no migrations embedded")
	}
	for v := range ups {
		if !downs[v] {
			t.Fatalf("migration %s has no down file", v)
		}
	}
}

func TestOpenWithoutDatabase(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	res, err := Open(context.Background(), config.Config{RedisURL: "redis://" + mr.Addr()}, logging.Discard())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer res.Close()
	if res.DB != nil {
		t.Fatal("expected no database pool")
	}
	if res.Cache == nil {
		t.Fatal("expected redis client")
	}
}

func TestConstructorsRequireURL(t *testing.T) {
	if _, err := NewPostgresPool(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty database url")
	}
	if _, err := NewRedisClient(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty redis url")
	}
	if _, err := NewMigrator(""); err == nil {
		t.Fatal("expected error for empty migration url")
	}
}
