package postgres

import (
	"context"

	"github.com/and161185/phishtrack/internal/model"
)

// VisitRepo implements VisitRepository using PostgreSQL.
type VisitRepo struct{ db *DB }

// NewVisitRepo constructs a visit repository.
func NewVisitRepo(db *DB) *VisitRepo { return &VisitRepo{db: db} }

// MessageID selects the message of a visit session.
func (r *VisitRepo) MessageID(ctx context.Context, visitID string) (string, error) {
	const q = `SELECT message_id FROM visits WHERE id=$1`
	var id string
	err := r.db.Do(ctx, func(tx Querier) error {
		return tx.QueryRow(ctx, q, visitID).Scan(&id)
	})
	if err != nil {
		return "", notFound(err)
	}
	return id, nil
}

// Create inserts the visit (visit_count defaults to 1 in the schema) and
// reads back the campaign total under the same lock.
func (r *VisitRepo) Create(ctx context.Context, v *model.Visit) (int64, error) {
	const ins = `
INSERT INTO visits (id, message_id, campaign_id, visitor_ip, visitor_details)
VALUES ($1, $2, $3, $4, $5)`
	const cnt = `SELECT COUNT(id) FROM visits WHERE campaign_id=$1`
	var n int64
	err := r.db.Do(ctx, func(tx Querier) error {
		if _, err := tx.Exec(ctx, ins, v.ID, v.MessageID, v.CampaignID, v.VisitorIP, v.UserAgent); err != nil {
			return err
		}
		var err error
		n, err = count(ctx, tx, cnt, v.CampaignID)
		return err
	})
	return n, err
}

// Touch bumps the visit counter of a returning session.
func (r *VisitRepo) Touch(ctx context.Context, visitID string) error {
	const q = `UPDATE visits SET visit_count=visit_count+1, last_visit=now() WHERE id=$1`
	return r.db.Do(ctx, func(tx Querier) error {
		_, err := tx.Exec(ctx, q, visitID)
		return err
	})
}
