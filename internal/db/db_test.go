package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/docqa/internal/config"
	"github.com/xxxsen/docqa/internal/pkg/dbutil"
)

func TestOpenSQLiteAndMigrateTwice(t *testing.T) {
	conn, dialect, err := Open(config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "registry.db")})
	require.NoError(t, err)
	defer conn.Close()
	require.Equal(t, dbutil.DialectSQLite, dialect)

	require.NoError(t, ApplyMigrations(conn))
	require.NoError(t, ApplyMigrations(conn))

	var count int
	require.NoError(t, conn.QueryRow("SELECT COUNT(*) FROM documents").Scan(&count))
	require.Equal(t, 0, count)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, _, err := Open(config.DatabaseConfig{Driver: "mysql"})
	require.Error(t, err)
}
