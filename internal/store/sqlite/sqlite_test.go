package sqlite_test

import (
	"testing"

	"github.com/showcaselabs/showcase-go/internal/store"
	_ "github.com/showcaselabs/showcase-go/internal/store/sqlite"
	"github.com/showcaselabs/showcase-go/internal/store/testutil"
)

func TestSQLiteDriver(t *testing.T) {
	testutil.RunDriverTests(t, "sqlite", &store.DriverConfig{
		Driver:  "sqlite",
		DataDir: t.TempDir(),
	})
}

func TestSQLiteDriver_RequiresDataDir(t *testing.T) {
	if _, err := store.New(&store.DriverConfig{Driver: "sqlite"}); err == nil {
		t.Fatal("expected error for missing data_dir, got nil")
	}
}
