package db

import (
	"testing"
	"testing/fstest"
	"time"

	"github.com/noemisales1009/Round-Juju/migrations"
)

func TestLoadMigrations(t *testing.T) {
	files := fstest.MapFS{
		"001_core.sql":      {Data: []byte("CREATE TABLE task (id UUID PRIMARY KEY);")},
		"002_checklist.sql": {Data: []byte("CREATE TABLE checklist_answer (id SERIAL);")},
	}

	migrator := NewMigrator(nil, files)
	got, err := migrator.LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(got))
	}
	if got[0].Version != 1 || got[0].Name != "001_core.sql" {
		t.Errorf("unexpected first migration: %+v", got[0])
	}
	if got[0].SQL != "CREATE TABLE task (id UUID PRIMARY KEY);" {
		t.Errorf("unexpected SQL content: %s", got[0].SQL)
	}
	if got[1].Version != 2 {
		t.Errorf("expected version 2, got %d", got[1].Version)
	}
}

func TestLoadMigrations_SortOrder(t *testing.T) {
	files := fstest.MapFS{
		"010_tables.sql": {Data: []byte("SELECT 10;")},
		"002_second.sql": {Data: []byte("SELECT 2;")},
		"001_first.sql":  {Data: []byte("SELECT 1;")},
		"005_middle.sql": {Data: []byte("SELECT 5;")},
	}

	got, err := NewMigrator(nil, files).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}

	want := []int{1, 2, 5, 10}
	if len(got) != len(want) {
		t.Fatalf("expected %d migrations, got %d", len(want), len(got))
	}
	for i, v := range want {
		if got[i].Version != v {
			t.Errorf("migrations[%d].Version = %d, want %d", i, got[i].Version, v)
		}
	}
}

func TestLoadMigrations_SkipsNonMigrationFiles(t *testing.T) {
	files := fstest.MapFS{
		"001_core.sql":        {Data: []byte("SELECT 1;")},
		"README.md":           {Data: []byte("docs")},
		"notes.sql":           {Data: []byte("SELECT 0;")},
		"abc_invalid.sql":     {Data: []byte("SELECT 0;")},
		"seed/001_nested.sql": {Data: []byte("SELECT 0;")},
	}

	got, err := NewMigrator(nil, files).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 migration, got %d", len(got))
	}
}

func TestLoadMigrations_DuplicateVersion(t *testing.T) {
	files := fstest.MapFS{
		"001_core.sql":  {Data: []byte("SELECT 1;")},
		"001_again.sql": {Data: []byte("SELECT 1;")},
	}
	if _, err := NewMigrator(nil, files).LoadMigrations(); err == nil {
		t.Fatal("expected error for duplicate version")
	}
}

func TestPendingMigrations(t *testing.T) {
	migs := []Migration{{Version: 1}, {Version: 2}, {Version: 3}}
	applied := map[int]time.Time{1: time.Now(), 3: time.Now()}

	pending := PendingMigrations(migs, applied)
	if len(pending) != 1 || pending[0].Version != 2 {
		t.Errorf("expected only version 2 pending, got %+v", pending)
	}
}

func TestBuildStatus(t *testing.T) {
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	migs := []Migration{{Version: 1, Name: "001_a.sql"}, {Version: 2, Name: "002_b.sql"}}

	statuses := BuildStatus(migs, map[int]time.Time{1: at})
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	if !statuses[0].Applied || statuses[0].AppliedAt == nil || !statuses[0].AppliedAt.Equal(at) {
		t.Errorf("expected first migration applied at %v, got %+v", at, statuses[0])
	}
	if statuses[1].Applied || statuses[1].AppliedAt != nil {
		t.Errorf("expected second migration pending, got %+v", statuses[1])
	}
}

func TestEmbeddedMigrations_Load(t *testing.T) {
	got, err := NewMigrator(nil, migrations.FS).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(got) == 0 {
		t.Fatal("expected embedded migrations")
	}
	if got[0].Version != 1 {
		t.Errorf("expected first embedded migration to be version 1, got %d", got[0].Version)
	}
}

func TestValidSchema(t *testing.T) {
	for _, ok := range []string{"public", "rounds", "ward_3"} {
		if err := validSchema(ok); err != nil {
			t.Errorf("expected %q to be valid: %v", ok, err)
		}
	}
	for _, bad := range []string{"", "1abc", "public; DROP TABLE task", "a-b"} {
		if err := validSchema(bad); err == nil {
			t.Errorf("expected %q to be rejected", bad)
		}
	}
}
