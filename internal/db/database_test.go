package db

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpen_EmptyDSN(t *testing.T) {
	_, err := Open(context.Background(), DriverPgx, "")
	require.Error(t, err)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "postgres://localhost/x")
	require.ErrorContains(t, err, "unsupported DB_DRIVER")
}

func TestOpen_BothDrivers(t *testing.T) {
	dsn := os.Getenv("AUTH_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("AUTH_TEST_DATABASE_URL is required for tests")
	}

	for _, driver := range []string{DriverPgx, DriverPQ} {
		db, err := Open(context.Background(), driver, dsn)
		require.NoError(t, err, driver)
		require.NoError(t, Close(db))
	}
}
