package db

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Harvey-AU/tour-crawler/internal/harvest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sourceRowColumns = []string{
	"id", "name", "url", "active", "max_depth", "max_pages",
	"request_delay_ms", "timeout_ms", "user_agent", "respect_robots",
}

func TestListActiveSources(t *testing.T) {
	db, mock := setupMockDB(t)

	rows := sqlmock.NewRows(sourceRowColumns).
		AddRow("alpha", "Alpha Tours", "https://alpha.example", true, 2, 20, 500, 10000, "", false).
		AddRow("beta", "Beta Travel", "https://beta.example", true, 3, 50, 1000, 30000, "bot/1.0", true)

	mock.ExpectQuery(`SELECT .+ FROM tour_sources\s+WHERE active = TRUE`).WillReturnRows(rows)

	sources, err := db.ListActiveSources(t.Context())
	require.NoError(t, err)
	require.Len(t, sources, 2)

	assert.Equal(t, harvest.Source{
		ID:           "alpha",
		Name:         "Alpha Tours",
		SeedURL:      "https://alpha.example",
		Active:       true,
		MaxDepth:     2,
		MaxPages:     20,
		RequestDelay: 500 * time.Millisecond,
		Timeout:      10 * time.Second,
	}, sources[0])
	assert.Equal(t, "bot/1.0", sources[1].UserAgent)
	assert.True(t, sources[1].RespectRobots)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListActiveSources_QueryError(t *testing.T) {
	db, mock := setupMockDB(t)
	mock.ExpectQuery(`SELECT`).WillReturnError(errors.New("connection reset"))

	_, err := db.ListActiveSources(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list sources")
}

func TestGetSource(t *testing.T) {
	db, mock := setupMockDB(t)

	mock.ExpectQuery(`SELECT .+ FROM tour_sources\s+WHERE id = \$1`).
		WithArgs("alpha").
		WillReturnRows(sqlmock.NewRows(sourceRowColumns).
			AddRow("alpha", "Alpha Tours", "https://alpha.example", false, 0, 5, 0, 0, "", false))

	src, err := db.GetSource(t.Context(), "alpha")
	require.NoError(t, err)
	assert.Equal(t, "alpha", src.ID)
	assert.False(t, src.Active)
	assert.Equal(t, harvest.SeedOnly, src.MaxDepth)
	assert.Zero(t, src.DepthLimit())

	mock.ExpectQuery(`SELECT`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(sourceRowColumns))

	_, err = db.GetSource(t.Context(), "missing")
	assert.ErrorIs(t, err, ErrSourceNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertSource(t *testing.T) {
	db, mock := setupMockDB(t)

	mock.ExpectExec(`INSERT INTO tour_sources .+ ON CONFLICT \(id\) DO UPDATE`).
		WithArgs("alpha", "Alpha Tours", "https://alpha.example", true, 3, 50,
			int64(1000), int64(30000), "", false).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := db.UpsertSource(t.Context(), harvest.Source{
		ID: "alpha", Name: "Alpha Tours", SeedURL: "https://alpha.example", Active: true,
		MaxDepth: 3, MaxPages: 50, RequestDelay: time.Second, Timeout: 30 * time.Second,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertSource_StoresDepthLimit(t *testing.T) {
	db, mock := setupMockDB(t)

	// unset depth is stored as the default, seed-only as 0
	mock.ExpectExec(`INSERT INTO tour_sources`).
		WithArgs("a", "", "https://a.example", true, harvest.DefaultMaxDepth, 0,
			int64(0), int64(0), "", false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO tour_sources`).
		WithArgs("b", "", "https://b.example", true, 0, 0,
			int64(0), int64(0), "", false).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, db.UpsertSource(t.Context(), harvest.Source{ID: "a", SeedURL: "https://a.example", Active: true}))
	require.NoError(t, db.UpsertSource(t.Context(), harvest.Source{ID: "b", SeedURL: "https://b.example", Active: true, MaxDepth: harvest.SeedOnly}))
	assert.NoError(t, mock.ExpectationsWereMet())
}
