package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/and161185/phishtrack/internal/errs"
	"github.com/and161185/phishtrack/internal/model"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

func TestVisitRepo_Create_ReadsBackCount(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewVisitRepo(db)
	ctx := context.Background()
	v := &model.Visit{ID: "abcdefghijklmnopqrstuvwx", MessageID: "m1", CampaignID: 2, VisitorIP: "10.0.0.5", UserAgent: "curl/8"}

	mock.ExpectExec(`INSERT INTO visits \(id, message_id, campaign_id, visitor_ip, visitor_details\) VALUES \(\$1, \$2, \$3, \$4, \$5\)`).
		WithArgs(v.ID, v.MessageID, v.CampaignID, v.VisitorIP, v.UserAgent).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`SELECT COUNT\(id\) FROM visits WHERE campaign_id=\$1`).
		WithArgs(int64(2)).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(10)))

	n, err := r.Create(ctx, v)
	require.NoError(t, err)
	require.Equal(t, int64(10), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVisitRepo_Create_InsertErrorSkipsCount(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewVisitRepo(db)

	mock.ExpectExec(`INSERT INTO visits`).
		WithArgs("x", "m", int64(1), "", "").
		WillReturnError(errors.New("unique violation"))
	_, err := r.Create(context.Background(), &model.Visit{ID: "x", MessageID: "m", CampaignID: 1})
	require.EqualError(t, err, "unique violation")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVisitRepo_MessageID_And_Touch(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewVisitRepo(db)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT message_id FROM visits WHERE id=\$1`).
		WithArgs("v1").
		WillReturnRows(pgxmock.NewRows([]string{"message_id"}).AddRow("m1"))
	id, err := r.MessageID(ctx, "v1")
	require.NoError(t, err)
	require.Equal(t, "m1", id)

	mock.ExpectQuery(`SELECT message_id FROM visits WHERE id=\$1`).
		WithArgs("v2").
		WillReturnError(pgx.ErrNoRows)
	_, err = r.MessageID(ctx, "v2")
	require.ErrorIs(t, err, errs.ErrNotFound)

	mock.ExpectExec(`UPDATE visits SET visit_count=visit_count\+1, last_visit=now\(\) WHERE id=\$1`).
		WithArgs("v1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, r.Touch(ctx, "v1"))
}

func TestLandingPageRepo(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewLandingPageRepo(db)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT COUNT\(id\) FROM landing_pages WHERE campaign_id=\$1 AND hostname=\$2$`).
		WithArgs(int64(1), "login.example.com").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(2)))
	ok, err := r.HostAllowed(ctx, 1, "login.example.com")
	require.NoError(t, err)
	require.True(t, ok)

	mock.ExpectQuery(`SELECT COUNT\(id\) FROM landing_pages WHERE campaign_id=\$1 AND hostname=\$2 AND page=\$3`).
		WithArgs(int64(1), "login.example.com", "index.html").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(0)))
	ok, err = r.PageAllowed(ctx, 1, "login.example.com", "index.html")
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}
