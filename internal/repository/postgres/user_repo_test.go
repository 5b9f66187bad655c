package postgres

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/and161185/phishtrack/internal/errs"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

func newDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return &DB{Pool: mock}, mock
}

func TestUserRepo_SubscriberIDs(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT user_id FROM alert_subscriptions WHERE campaign_id=\$1`).
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"user_id"}).AddRow("alice").AddRow("bob"))
	ids, err := r.SubscriberIDs(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, []string{"alice", "bob"}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_SMSUserIDs(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT id FROM users WHERE phone_number IS NOT NULL AND phone_carrier IS NOT NULL`).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("carol"))
	ids, err := r.SMSUserIDs(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"carol"}, ids)

	mock.ExpectQuery(`SELECT id FROM users`).WillReturnError(errors.New("db down"))
	_, err = r.SMSUserIDs(ctx)
	require.Error(t, err)
}

func TestUserRepo_Contact(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT id, COALESCE\(phone_number, ''\), COALESCE\(phone_carrier, ''\) FROM users WHERE id=\$1`).
		WithArgs("alice").
		WillReturnRows(pgxmock.NewRows([]string{"id", "phone_number", "phone_carrier"}).AddRow("alice", "5551234567", "Verizon"))
	u, err := r.Contact(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, "5551234567", u.PhoneNumber)
	require.Equal(t, "Verizon", u.PhoneCarrier)

	mock.ExpectQuery(`FROM users WHERE id=\$1`).
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)
	_, err = r.Contact(ctx, "ghost")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestCampaignRepo_Name(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewCampaignRepo(db)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT name FROM campaigns WHERE id=\$1`).
		WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{"name"}).AddRow("Q3 payroll"))
	name, err := r.Name(ctx, 3)
	require.NoError(t, err)
	require.Equal(t, "Q3 payroll", name)

	mock.ExpectQuery(`SELECT name FROM campaigns WHERE id=\$1`).
		WithArgs(int64(4)).
		WillReturnError(pgx.ErrNoRows)
	_, err = r.Name(ctx, 4)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestDB_Do_CanceledContext(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := db.Do(ctx, func(Querier) error { called = true; return nil })
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, called)
}

func TestDB_Do_Serializes(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()

	var inside, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := db.Do(context.Background(), func(Querier) error {
				n := inside.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				inside.Add(-1)
				return nil
			})
			if err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), peak.Load())
}
