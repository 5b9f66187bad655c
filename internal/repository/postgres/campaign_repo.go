package postgres

import "context"

// CampaignRepo implements CampaignRepository using PostgreSQL.
type CampaignRepo struct{ db *DB }

// NewCampaignRepo constructs a campaign repository.
func NewCampaignRepo(db *DB) *CampaignRepo { return &CampaignRepo{db: db} }

// Name selects the display name of a campaign.
func (r *CampaignRepo) Name(ctx context.Context, campaignID int64) (string, error) {
	const q = `SELECT name FROM campaigns WHERE id=$1`
	var name string
	err := r.db.Do(ctx, func(tx Querier) error {
		return tx.QueryRow(ctx, q, campaignID).Scan(&name)
	})
	if err != nil {
		return "", notFound(err)
	}
	return name, nil
}
