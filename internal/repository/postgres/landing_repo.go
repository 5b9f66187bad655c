package postgres

import "context"

// LandingPageRepo implements LandingPageRepository using PostgreSQL.
type LandingPageRepo struct{ db *DB }

// NewLandingPageRepo constructs a landing page repository.
func NewLandingPageRepo(db *DB) *LandingPageRepo { return &LandingPageRepo{db: db} }

// HostAllowed counts landing pages of the campaign on hostname.
func (r *LandingPageRepo) HostAllowed(ctx context.Context, campaignID int64, hostname string) (bool, error) {
	const q = `SELECT COUNT(id) FROM landing_pages WHERE campaign_id=$1 AND hostname=$2`
	var n int64
	err := r.db.Do(ctx, func(tx Querier) error {
		var err error
		n, err = count(ctx, tx, q, campaignID, hostname)
		return err
	})
	return n > 0, err
}

// PageAllowed counts landing pages matching hostname and page exactly.
func (r *LandingPageRepo) PageAllowed(ctx context.Context, campaignID int64, hostname, page string) (bool, error) {
	const q = `SELECT COUNT(id) FROM landing_pages WHERE campaign_id=$1 AND hostname=$2 AND page=$3`
	var n int64
	err := r.db.Do(ctx, func(tx Querier) error {
		var err error
		n, err = count(ctx, tx, q, campaignID, hostname, page)
		return err
	})
	return n > 0, err
}
