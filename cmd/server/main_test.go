package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEnsureSQLiteDir(t *testing.T) {
	base := t.TempDir()
	dsn := filepath.Join(base, "data", "pixgo.db")
	if err := ensureSQLiteDir("sqlite", dsn); err != nil {
		t.Fatalf("ensure dir failed: %v", err)
	}
	if info, err := os.Stat(filepath.Join(base, "data")); err != nil || !info.IsDir() {
		t.Fatalf("expected data dir to exist, err=%v", err)
	}

	if err := ensureSQLiteDir("mysql", "/definitely/not/created/x.db"); err != nil {
		t.Fatalf("non sqlite driver should be ignored: %v", err)
	}
	if _, err := os.Stat("/definitely/not/created"); !os.IsNotExist(err) {
		t.Fatalf("mysql dsn should not create directories")
	}
	if err := ensureSQLiteDir("sqlite", "file::memory:?cache=shared"); err != nil {
		t.Fatalf("memory dsn should be ignored: %v", err)
	}
}
