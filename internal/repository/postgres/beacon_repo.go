package postgres

import (
	"context"
	"errors"

	"github.com/and161185/phishtrack/internal/model"
	"github.com/jackc/pgx/v5"
)

// BeaconRepo implements BeaconRepository using PostgreSQL.
type BeaconRepo struct{ db *DB }

// NewBeaconRepo constructs a deaddrop repository.
func NewBeaconRepo(db *DB) *BeaconRepo { return &BeaconRepo{db: db} }

// DeploymentCampaign selects the campaign of a deployment.
func (r *BeaconRepo) DeploymentCampaign(ctx context.Context, deploymentID string) (int64, error) {
	const q = `SELECT campaign_id FROM deaddrop_deployments WHERE id=$1`
	var id int64
	err := r.db.Do(ctx, func(tx Querier) error {
		return tx.QueryRow(ctx, q, deploymentID).Scan(&id)
	})
	if err != nil {
		return 0, notFound(err)
	}
	return id, nil
}

// Upsert increments the connection for (deployment, user, host) or inserts it.
func (r *BeaconRepo) Upsert(ctx context.Context, c *model.BeaconConnection) (bool, error) {
	const sel = `
SELECT id FROM deaddrop_connections
WHERE deployment_id=$1 AND local_username=$2 AND local_hostname=$3`
	const upd = `UPDATE deaddrop_connections SET visit_count=visit_count+1, last_visit=now() WHERE id=$1`
	const ins = `
INSERT INTO deaddrop_connections
  (deployment_id, campaign_id, visitor_ip, local_username, local_hostname, local_ip_addresses)
VALUES ($1, $2, $3, $4, $5, $6)`

	var created bool
	err := r.db.Do(ctx, func(tx Querier) error {
		var id int64
		err := tx.QueryRow(ctx, sel, c.DeploymentID, c.LocalUsername, c.LocalHostname).Scan(&id)
		switch {
		case err == nil:
			_, err = tx.Exec(ctx, upd, id)
			return err
		case errors.Is(err, pgx.ErrNoRows):
			_, err = tx.Exec(ctx, ins,
				c.DeploymentID, c.CampaignID, c.VisitorIP, c.LocalUsername, c.LocalHostname, c.LocalIPAddresses)
			created = err == nil
			return err
		default:
			return err
		}
	})
	return created, err
}
