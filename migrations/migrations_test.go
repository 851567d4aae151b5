package migrations

import (
	"io/fs"
	"strings"
	"testing"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	files, err := fs.Glob(FS, "*.sql")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	ups, downs := map[string]bool{}, map[string]bool{}
	for _, name := range files {
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Fatalf("unexpected migration file %s", name)
		}
	}
	if len(ups) == 0 {
		t.Fatalf("expected embedded migrations")
	}
	for base := range ups {
		if !downs[base] {
			t.Fatalf("missing down migration for %s", base)
		}
	}
}

func TestSchemaEnforcesSlotUniqueness(t *testing.T) {
	raw, err := fs.ReadFile(FS, "000001_reservations.up.sql")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(raw), "UNIQUE (preferred_date, preferred_time)") {
		t.Fatalf("reservations must be unique per date and slot")
	}
}
