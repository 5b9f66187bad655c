package postgres

import (
	"context"

	"github.com/and161185/phishtrack/internal/model"
)

// UserRepo implements UserRepository using PostgreSQL.
type UserRepo struct{ db *DB }

// NewUserRepo constructs a user repository.
func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

// SubscriberIDs lists users subscribed to one campaign.
func (r *UserRepo) SubscriberIDs(ctx context.Context, campaignID int64) ([]string, error) {
	const q = `SELECT user_id FROM alert_subscriptions WHERE campaign_id=$1`
	return r.ids(ctx, q, campaignID)
}

// SMSUserIDs lists users that can receive SMS alerts.
func (r *UserRepo) SMSUserIDs(ctx context.Context) ([]string, error) {
	const q = `SELECT id FROM users WHERE phone_number IS NOT NULL AND phone_carrier IS NOT NULL`
	return r.ids(ctx, q)
}

// Contact selects phone number and carrier; NULL columns come back empty.
func (r *UserRepo) Contact(ctx context.Context, userID string) (model.User, error) {
	const q = `
SELECT id, COALESCE(phone_number, ''), COALESCE(phone_carrier, '')
FROM users WHERE id=$1`
	var u model.User
	err := r.db.Do(ctx, func(tx Querier) error {
		return tx.QueryRow(ctx, q, userID).Scan(&u.ID, &u.PhoneNumber, &u.PhoneCarrier)
	})
	if err != nil {
		return model.User{}, notFound(err)
	}
	return u, nil
}

func (r *UserRepo) ids(ctx context.Context, q string, args ...any) ([]string, error) {
	var out []string
	err := r.db.Do(ctx, func(tx Querier) error {
		rows, err := tx.Query(ctx, q, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return err
			}
			out = append(out, id)
		}
		return rows.Err()
	})
	return out, err
}
