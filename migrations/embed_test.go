package migrations

import (
	"strings"
	"testing"

	"github.com/healthportal/portal/internal/platform/db"
)

func TestMigrations_Load(t *testing.T) {
	all, err := db.NewMigrator(nil, FS).LoadMigrations()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(all) < 2 || all[0].Version != 1 {
		t.Fatalf("unexpected migrations %+v", all)
	}
	var emailIndex bool
	for _, m := range all {
		if strings.Contains(m.SQL, "UNIQUE INDEX IF NOT EXISTS idx_profiles_email") {
			emailIndex = true
		}
	}
	if !emailIndex {
		t.Error("expected a unique index on profile emails")
	}
}
