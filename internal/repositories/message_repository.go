package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"chat-room/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository defines interactions with the Chat table.
type MessageRepository interface {
	ListMessages(ctx context.Context) ([]models.Message, error)
	InsertMessage(ctx context.Context, msg models.NewMessage) (models.Message, error)
	GetMessage(ctx context.Context, messageID int64) (models.Message, error)
	SoftDeleteMessage(ctx context.Context, messageID int64) error
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `id, created_at, user_id, user_name, user_avatar_url, provider, message_content, deleted`

// ListMessages returns the whole table ordered by id.
func (r *MessageRepo) ListMessages(ctx context.Context) ([]models.Message, error) {
	msgs := []models.Message{}
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+messageColumns+` FROM "Chat" ORDER BY id ASC`)
	return msgs, err
}

// InsertMessage stores a new message and returns the stored row.
func (r *MessageRepo) InsertMessage(ctx context.Context, msg models.NewMessage) (models.Message, error) {
	var stored models.Message
	rows, err := r.db.NamedQueryContext(ctx, `INSERT INTO "Chat" (user_id, user_name, user_avatar_url, provider, message_content)
        VALUES (:user_id, :user_name, :user_avatar_url, :provider, :message_content)
        RETURNING `+messageColumns, msg)
	if err != nil {
		return stored, err
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.StructScan(&stored); err != nil {
			return stored, err
		}
	}
	return stored, rows.Err()
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int64) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM "Chat" WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// SoftDeleteMessage flags a message as deleted. Deleting an already deleted message succeeds.
func (r *MessageRepo) SoftDeleteMessage(ctx context.Context, messageID int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE "Chat" SET deleted = TRUE WHERE id=$1`, messageID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMessageNotFound
	}
	return nil
}
