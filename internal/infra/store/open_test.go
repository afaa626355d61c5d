package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/fardannozami/stepquest/internal/config"
	"github.com/fardannozami/stepquest/internal/infra/store"
)

func TestOpen_SQLiteFile(t *testing.T) {
	cfg := config.Config{StoreDriver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "progress.db")}
	ctx := context.Background()

	st, err := store.Open(ctx, cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	if err := st.EnsureUserProgress(ctx, "user1"); err != nil {
		t.Fatalf("EnsureUserProgress: %v", err)
	}
	p, err := st.GetUserProgress(ctx, "user1")
	if err != nil || p == nil || p.Level != 1 {
		t.Errorf("unexpected progress %+v %v", p, err)
	}
}

func TestOpen_Memory(t *testing.T) {
	st, err := store.Open(context.Background(), config.Config{StoreDriver: "memory"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestOpen_Errors(t *testing.T) {
	ctx := context.Background()

	if _, err := store.Open(ctx, config.Config{StoreDriver: "postgres"}); err == nil {
		t.Error("postgres without a DSN should fail")
	}
	if _, err := store.Open(ctx, config.Config{StoreDriver: "mongo"}); err == nil {
		t.Error("unknown driver should fail")
	}
}
