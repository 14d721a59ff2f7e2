package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
)

var identityColumns = []string{"name", "contact", "embedding", "image_ref", "created_at", "updated_at"}

// IdentityRepository Tests

func TestIdentityRepository_Upsert(t *testing.T) {
	created := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	updated := created.Add(time.Hour)

	tests := []struct {
		name      string
		identity  *domain.Identity
		mockSetup func(mock pgxmock.PgxPoolIface)
		wantErr   bool
	}{
		{
			name:     "insert with embedding",
			identity: &domain.Identity{Name: "alice", Contact: "555-0101", Embedding: domain.Embedding{0.5, 0.25}, ImageRef: "alice_1.jpg"},
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				vec := pgvector.NewVector([]float32{0.5, 0.25})
				mock.ExpectQuery(`INSERT INTO identities .* ON CONFLICT \(name\) DO UPDATE`).
					WithArgs("alice", "555-0101", &vec, "alice_1.jpg").
					WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(created, updated))
			},
		},
		{
			name:     "missing embedding is stored as null",
			identity: &domain.Identity{Name: "bob", Contact: "222"},
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`INSERT INTO identities`).
					WithArgs("bob", "222", (*pgvector.Vector)(nil), "").
					WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(created, updated))
			},
		},
		{
			name:     "database error",
			identity: &domain.Identity{Name: "carol", Contact: "333"},
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`INSERT INTO identities`).
					WithArgs("carol", "333", pgxmock.AnyArg(), "").
					WillReturnError(errors.New("connection reset"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			tt.mockSetup(mock)

			err = NewIdentityRepository(mock).Upsert(context.Background(), tt.identity)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "upsert identity")
			} else {
				require.NoError(t, err)
				assert.Equal(t, created, tt.identity.CreatedAt)
				assert.Equal(t, updated, tt.identity.UpdatedAt)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestIdentityRepository_List(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now()
	vec := pgvector.NewVector([]float32{0.5, 0.25})
	rows := pgxmock.NewRows(identityColumns).
		AddRow("alice", "111", &vec, "alice_1.jpg", now, now).
		AddRow("bob", "222", (*pgvector.Vector)(nil), "bob_1.jpg", now, now)

	mock.ExpectQuery(`SELECT name, contact, embedding, image_ref, created_at, updated_at FROM identities ORDER BY name`).
		WillReturnRows(rows)

	got, err := NewIdentityRepository(mock).List(context.Background())

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, domain.Embedding{0.5, 0.25}, got[0].Embedding)
	assert.Nil(t, got[1].Embedding, "legacy record without embedding")
	assert.Equal(t, "bob_1.jpg", got[1].ImageRef)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdentityRepository_Get(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name      string
		mockSetup func(mock pgxmock.PgxPoolIface)
		wantErr   error
	}{
		{
			name: "found",
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`FROM identities WHERE name = \$1`).
					WithArgs("alice").
					WillReturnRows(pgxmock.NewRows(identityColumns).AddRow("alice", "111", (*pgvector.Vector)(nil), "", now, now))
			},
		},
		{
			name: "not found",
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`FROM identities WHERE name = \$1`).
					WithArgs("alice").
					WillReturnError(pgx.ErrNoRows)
			},
			wantErr: domain.ErrIdentityNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			tt.mockSetup(mock)

			got, err := NewIdentityRepository(mock).Get(context.Background(), "alice")

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
			} else {
				require.NoError(t, err)
				assert.Equal(t, "111", got.Contact)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestIdentityRepository_Delete(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		wantErr  error
	}{
		{name: "deleted", affected: 1},
		{name: "not found", affected: 0, wantErr: domain.ErrIdentityNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			mock.ExpectExec(`DELETE FROM identities WHERE name = \$1`).
				WithArgs("alice").
				WillReturnResult(pgxmock.NewResult("DELETE", tt.affected))

			err = NewIdentityRepository(mock).Delete(context.Background(), "alice")

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

// AttendanceRepository Tests

func TestAttendanceRepository_Append(t *testing.T) {
	at := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		mockErr   error
		wantErr   error
		wantError bool
	}{
		{name: "appended"},
		{name: "duplicate id", mockErr: errors.New("ERROR: duplicate key value violates unique constraint (SQLSTATE 23505)"), wantErr: errDuplicateEvent, wantError: true},
		{name: "database error", mockErr: errors.New("connection reset"), wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			exp := mock.ExpectExec(`INSERT INTO attendance_events`).
				WithArgs(pgxmock.AnyArg(), "alice", "555", at)
			if tt.mockErr != nil {
				exp.WillReturnError(tt.mockErr)
			} else {
				exp.WillReturnResult(pgxmock.NewResult("INSERT", 1))
			}

			event := &domain.AttendanceEvent{IdentityName: "alice", Contact: "555", Timestamp: at}
			err = NewAttendanceRepository(mock).Append(context.Background(), event)

			if tt.wantError {
				require.Error(t, err)
				if tt.wantErr != nil {
					assert.ErrorIs(t, err, tt.wantErr)
				}
			} else {
				require.NoError(t, err)
			}
			assert.NotEqual(t, uuid.Nil, event.ID, "id assigned before insert")
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAttendanceRepository_ListRecent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	t0 := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows([]string{"id", "identity_name", "contact", "recorded_at"}).
		AddRow(uuid.New(), "bob", "222", t0.Add(time.Minute)).
		AddRow(uuid.New(), "alice", "111", t0)

	mock.ExpectQuery(`FROM attendance_events ORDER BY recorded_at DESC LIMIT \$1`).
		WithArgs(2).
		WillReturnRows(rows)

	got, err := NewAttendanceRepository(mock).ListRecent(context.Background(), 2)

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "bob", got[0].IdentityName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepository_LatestByIdentity(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	since := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows([]string{"identity_name", "max"}).
		AddRow("alice", since.Add(time.Minute))

	mock.ExpectQuery(`SELECT identity_name, MAX\(recorded_at\) FROM attendance_events WHERE recorded_at >= \$1 GROUP BY identity_name`).
		WithArgs(since).
		WillReturnRows(rows)

	got, err := NewAttendanceRepository(mock).LatestByIdentity(context.Background(), since)

	require.NoError(t, err)
	assert.Equal(t, map[string]time.Time{"alice": since.Add(time.Minute)}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmbeddingConversion(t *testing.T) {
	assert.Nil(t, toVector(nil))
	assert.Nil(t, fromVector(nil))

	e := domain.Embedding{0.125, -0.5, 1}
	assert.Equal(t, e, fromVector(toVector(e)), "values exactly representable in float32 survive")
}
