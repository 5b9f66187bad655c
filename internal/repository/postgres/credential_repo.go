package postgres

import (
	"context"

	"github.com/and161185/phishtrack/internal/model"
)

// CredentialRepo implements CredentialRepository using PostgreSQL.
type CredentialRepo struct{ db *DB }

// NewCredentialRepo constructs a credential repository.
func NewCredentialRepo(db *DB) *CredentialRepo { return &CredentialRepo{db: db} }

// InsertUnique inserts unless the (message, username, password) triple
// exists, then reads back the campaign total in the same lock scope. The
// unique constraint keeps the triple distinct across server instances.
func (r *CredentialRepo) InsertUnique(ctx context.Context, c *model.Credential) (bool, int64, error) {
	const ins = `
INSERT INTO credentials (visit_id, message_id, campaign_id, username, password)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (message_id, username, password) DO NOTHING`
	const cnt = `SELECT COUNT(id) FROM credentials WHERE campaign_id=$1`

	var (
		inserted bool
		total    int64
	)
	err := r.db.Do(ctx, func(tx Querier) error {
		tag, err := tx.Exec(ctx, ins, c.VisitID, c.MessageID, c.CampaignID, c.Username, c.Password)
		if err != nil || tag.RowsAffected() == 0 {
			return err
		}
		inserted = true
		total, err = count(ctx, tx, cnt, c.CampaignID)
		return err
	})
	return inserted, total, err
}
