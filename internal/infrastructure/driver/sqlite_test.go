package driver

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func openTestKV(t *testing.T) *SQLiteKV {
	t.Helper()
	kv, err := NewSQLiteKV(filepath.Join(t.TempDir(), "kv.db"))
	if err != nil {
		t.Fatalf("open sqlite kv: %v", err)
	}
	t.Cleanup(func() { _ = kv.Close() })
	return kv
}

func TestSQLiteKVGetMissing(t *testing.T) {
	kv := openTestKV(t)
	_, err := kv.Get(context.Background(), "CURRENT_COURSE_ID")
	if !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("get missing: want=%v got=%v", ErrKeyNotFound, err)
	}
}

func TestSQLiteKVSetOverwrites(t *testing.T) {
	ctx := context.Background()
	kv := openTestKV(t)

	if err := kv.Set(ctx, "k", "one"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := kv.Set(ctx, "k", "two"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, err := kv.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "two" {
		t.Fatalf("get: want=%q got=%q", "two", got)
	}
	ok, err := kv.Exists(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("exists: want=true got=%v err=%v", ok, err)
	}
}

func TestSQLiteKVPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kv.db")

	kv, err := NewSQLiteKV(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := kv.Set(ctx, "CURRENT_COURSE_ID", "ja"); err != nil {
		t.Fatalf("set: %v", err)
	}
	_ = kv.Close()

	kv, err = NewSQLiteKV(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer kv.Close()
	got, err := kv.Get(ctx, "CURRENT_COURSE_ID")
	if err != nil || got != "ja" {
		t.Fatalf("get after reopen: want=%q got=%q err=%v", "ja", got, err)
	}
}

func TestSQLiteKVRequiresPath(t *testing.T) {
	if _, err := NewSQLiteKV("  "); err == nil {
		t.Fatal("expected error for blank path")
	}
}

func TestGetKVStoreUnknownDriver(t *testing.T) {
	if _, err := GetKVStore(&KVConfig{Driver: "memcached"}); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestQuestionMarkAdapter(t *testing.T) {
	got := questionMarkAdapter("SELECT \"key\"\n\tFROM kv WHERE a = $1 AND b = $2")
	want := "SELECT `key` FROM kv WHERE a = ? AND b = ?"
	if got != want {
		t.Fatalf("questionMarkAdapter: want=%q got=%q", want, got)
	}
}

func TestGetDSN(t *testing.T) {
	cfg := &DBConfig{User: "u", Password: "p", Protocol: "tcp", Host: "db", Port: 3306, Schema: "enlingo", Query: "parseTime=true"}
	want := "u:p@tcp(db:3306)/enlingo?parseTime=true"
	if got := getDSN(cfg); got != want {
		t.Fatalf("getDSN: want=%q got=%q", want, got)
	}
}
