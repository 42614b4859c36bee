package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCLI_SetGetDelete(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := t.TempDir()

	if _, err := execute(t, "--data-dir", dir, "set", "sku-1", "shoe", "--kind", "product"); err != nil {
		t.Fatalf("set error = %v", err)
	}

	// A new invocation reads the value back from the session level.
	out, err := execute(t, "--data-dir", dir, "get", "sku-1")
	if err != nil {
		t.Fatalf("get error = %v", err)
	}
	if strings.TrimSpace(out) != "shoe" {
		t.Errorf("get output = %q, want shoe", out)
	}

	out, err = execute(t, "--data-dir", dir, "stats", "--json")
	if err != nil {
		t.Fatalf("stats error = %v", err)
	}
	var doc metricsJSON
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("stats output is not JSON: %v\n%s", err, out)
	}
	if len(doc.Levels) != 2 || doc.Levels[1].Level != "session" || doc.Levels[1].Entries != 1 {
		t.Errorf("stats levels = %+v, want one session entry", doc.Levels)
	}

	if _, err := execute(t, "--data-dir", dir, "delete", "sku-1"); err != nil {
		t.Fatalf("delete error = %v", err)
	}
	if _, err := execute(t, "--data-dir", dir, "get", "sku-1"); !errors.Is(err, errNotFound) {
		t.Errorf("get after delete error = %v, want errNotFound", err)
	}
}

func TestCLI_InvalidBackend(t *testing.T) {
	t.Chdir(t.TempDir())
	if _, err := execute(t, "--backend", "tape", "stats"); err == nil {
		t.Error("expected an error for an unknown backend")
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{50 << 20, "50.0 MB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.in); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
