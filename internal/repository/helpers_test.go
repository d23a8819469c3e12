package repository_test

import (
	"testing"
	"time"

	"github.com/avissapr/firmdesk/internal/database"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2025, 10, 25, 12, 0, 0, 0, time.UTC)

// newMockDB injects a pgxmock pool into database.DB for the duration of the test.
func newMockDB(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)

	oldDB := database.DB
	database.DB = mock
	t.Cleanup(func() {
		database.DB = oldDB
		mock.Close()
	})
	return mock
}

func intPtr(v int) *int { return &v }
