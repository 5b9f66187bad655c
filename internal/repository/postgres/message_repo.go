package postgres

import "context"

// MessageRepo implements MessageRepository using PostgreSQL.
type MessageRepo struct{ db *DB }

// NewMessageRepo constructs a message repository.
func NewMessageRepo(db *DB) *MessageRepo { return &MessageRepo{db: db} }

// CampaignID selects the owning campaign of a message.
func (r *MessageRepo) CampaignID(ctx context.Context, messageID string) (int64, error) {
	const q = `SELECT campaign_id FROM messages WHERE id=$1`
	var id int64
	err := r.db.Do(ctx, func(tx Querier) error {
		return tx.QueryRow(ctx, q, messageID).Scan(&id)
	})
	if err != nil {
		return 0, notFound(err)
	}
	return id, nil
}

// MarkOpened stamps opened once; later calls leave the first timestamp in place.
func (r *MessageRepo) MarkOpened(ctx context.Context, messageID string) (bool, error) {
	const q = `UPDATE messages SET opened=now() WHERE id=$1 AND opened IS NULL`
	var changed bool
	err := r.db.Do(ctx, func(tx Querier) error {
		tag, err := tx.Exec(ctx, q, messageID)
		if err != nil {
			return err
		}
		changed = tag.RowsAffected() > 0
		return nil
	})
	return changed, err
}
