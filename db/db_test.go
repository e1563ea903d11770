package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"githubinsight/models"
	"githubinsight/store"
)

// setupTestDB creates a new test database connection with a mock
func setupTestDB(t *testing.T) (*SnapshotArchive, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	archive := NewSnapshotArchive(newDB(sqlxDB, zap.NewNop()))
	archive.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }

	cleanup := func() {
		archive.Close()
	}

	return archive, mock, cleanup
}

func testSnapshot(t *testing.T) *models.Snapshot {
	t.Helper()
	var s models.Snapshot
	require.NoError(t, json.Unmarshal([]byte(`{
		"profile": {"login": "octocat", "created_at": "2011-01-25T18:44:36Z", "bio": null},
		"repositories": [{"metadata": {"name": "alpha", "stargazers_count": 2}, "details": {"files": ["go.mod"]}}]
	}`), &s))
	return &s
}

func TestEnsureSchema(t *testing.T) {
	archive, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS snapshots").WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, archive.EnsureSchema(context.Background()))

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS snapshots").WillReturnError(sql.ErrConnDone)
	assert.ErrorIs(t, archive.EnsureSchema(context.Background()), sql.ErrConnDone)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWrite(t *testing.T) {
	tests := []struct {
		name        string
		location    string
		snapshot    func(*testing.T) *models.Snapshot
		mockSetup   func(sqlmock.Sqlmock)
		expectedErr error
	}{
		{
			name:     "successful upsert",
			location: "octocat",
			snapshot: testSnapshot,
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectPrepare("INSERT INTO snapshots").
					ExpectExec().
					WithArgs("octocat", sqlmock.AnyArg(), "octocat", sqlmock.AnyArg(),
						time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name:     "exec failure",
			location: "octocat",
			snapshot: testSnapshot,
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectPrepare("INSERT INTO snapshots").
					ExpectExec().
					WillReturnError(sql.ErrConnDone)
			},
			expectedErr: sql.ErrConnDone,
		},
		{
			name:        "empty location",
			location:    "",
			snapshot:    testSnapshot,
			mockSetup:   func(mock sqlmock.Sqlmock) {},
			expectedErr: ErrInvalidInput,
		},
		{
			name:     "duplicate repository names",
			location: "octocat",
			snapshot: func(t *testing.T) *models.Snapshot {
				s := testSnapshot(t)
				s.Repositories = append(s.Repositories, s.Repositories[0])
				return s
			},
			mockSetup:   func(mock sqlmock.Sqlmock) {},
			expectedErr: ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			archive, mock, cleanup := setupTestDB(t)
			defer cleanup()

			tt.mockSetup(mock)

			err := archive.Write(context.Background(), tt.location, tt.snapshot(t))
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
			} else {
				assert.NoError(t, err)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestWriteReusesPreparedStatement(t *testing.T) {
	archive, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectPrepare("INSERT INTO snapshots").
		ExpectExec().
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO snapshots").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, archive.Write(context.Background(), "octocat", testSnapshot(t)))
	require.NoError(t, archive.Write(context.Background(), "octocat", testSnapshot(t)))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRead(t *testing.T) {
	doc, err := store.Encode(testSnapshot(t))
	require.NoError(t, err)

	tests := []struct {
		name        string
		location    string
		mockSetup   func(sqlmock.Sqlmock)
		expectedErr error
	}{
		{
			name:     "successful retrieval",
			location: "octocat",
			mockSetup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"document"}).AddRow(doc)
				mock.ExpectQuery("SELECT document FROM snapshots").
					WithArgs("octocat").
					WillReturnRows(rows)
			},
		},
		{
			name:     "snapshot not found",
			location: "nobody",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT document FROM snapshots").
					WithArgs("nobody").
					WillReturnError(sql.ErrNoRows)
			},
			expectedErr: store.ErrNotFound,
		},
		{
			name:     "query failure",
			location: "octocat",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT document FROM snapshots").
					WithArgs("octocat").
					WillReturnError(errors.New("connection refused"))
			},
			expectedErr: errors.New("connection refused"),
		},
		{
			name:        "empty location",
			location:    "",
			mockSetup:   func(mock sqlmock.Sqlmock) {},
			expectedErr: ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			archive, mock, cleanup := setupTestDB(t)
			defer cleanup()

			tt.mockSetup(mock)

			got, err := archive.Read(context.Background(), tt.location)
			switch {
			case tt.expectedErr == nil:
				require.NoError(t, err)
				assert.Equal(t, testSnapshot(t), got)
			case errors.Is(tt.expectedErr, store.ErrNotFound) || errors.Is(tt.expectedErr, ErrInvalidInput):
				assert.ErrorIs(t, err, tt.expectedErr)
				assert.Nil(t, got)
			default:
				assert.ErrorContains(t, err, tt.expectedErr.Error())
				assert.NotErrorIs(t, err, store.ErrNotFound)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
