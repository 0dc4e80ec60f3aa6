package cmd

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	if err != nil || !strings.HasPrefix(out, "reservationd dev") {
		t.Fatalf("version = %q, %v", out, err)
	}
}

func TestKeysAreValidBase64(t *testing.T) {
	out, err := run(t, "keys")
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("output = %q", out)
	}
	for _, l := range lines {
		_, v, ok := strings.Cut(l, "=")
		if !ok {
			t.Fatalf("line %q", l)
		}
		b, err := base64.StdEncoding.DecodeString(v)
		if err != nil || len(b) != 32 {
			t.Fatalf("key %q: %d bytes, %v", v, len(b), err)
		}
	}
}

func TestCommandTree(t *testing.T) {
	root := NewRootCmd()
	for _, path := range [][]string{
		{"server"},
		{"migrate"},
		{"amenity", "upsert"},
		{"amenity", "show"},
		{"blackout", "maintenance", "create"},
		{"blackout", "maintenance", "clear"},
	} {
		c, _, err := root.Find(path)
		if err != nil || c.Name() != path[len(path)-1] {
			t.Fatalf("find %v: %v", path, err)
		}
	}
}
