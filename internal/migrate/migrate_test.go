package migrate

import (
	"strings"
	"testing"
)

func TestFilesAreOrderedAndEmbedded(t *testing.T) {
	names, err := Files()
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if len(names) == 0 || names[0] != "0001_init.sql" {
		t.Fatalf("unexpected migrations: %v", names)
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Fatalf("migrations out of order: %v", names)
		}
	}
}

func TestInitCreatesOverlapConstraint(t *testing.T) {
	b, err := files.ReadFile("0001_init.sql")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	sql := string(b)
	for _, want := range []string{
		"btree_gist",
		"CONSTRAINT reservations_no_overlap EXCLUDE USING gist",
		"tstzrange(start_at, end_at, '[)') WITH &&",
		"CONSTRAINT idempotency_keys_pkey PRIMARY KEY (tenant_id, route, token)",
	} {
		if !strings.Contains(sql, want) {
			t.Fatalf("0001_init.sql missing %q", want)
		}
	}
}
