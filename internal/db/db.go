package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"chat-room/internal/logging"
)

// ChangeChannel is the LISTEN/NOTIFY channel the Chat table trigger publishes on.
const ChangeChannel = "chat_changes"

// Connect opens the database behind dsn and applies the schema.
func Connect(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

// Migrate applies idempotent schema statements.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return err
		}
	}
	log := logging.Component("db")
	log.Info().Int("statements", len(migrations)).Msg("database migrations applied")
	return nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS "Chat" (
            id BIGSERIAL PRIMARY KEY,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            user_id TEXT NOT NULL,
            user_name TEXT,
            user_avatar_url TEXT,
            provider TEXT NOT NULL DEFAULT '',
            message_content TEXT NOT NULL,
            deleted BOOLEAN NOT NULL DEFAULT FALSE
        );`,
	`CREATE OR REPLACE FUNCTION notify_chat_change() RETURNS trigger AS $$
        DECLARE
            row_id BIGINT;
        BEGIN
            IF TG_OP = 'DELETE' THEN
                row_id := OLD.id;
            ELSE
                row_id := NEW.id;
            END IF;
            PERFORM pg_notify('` + ChangeChannel + `', json_build_object('op', TG_OP, 'table', TG_TABLE_NAME, 'id', row_id)::text);
            RETURN NULL;
        END;
        $$ LANGUAGE plpgsql;`,
	`DROP TRIGGER IF EXISTS chat_change_notify ON "Chat";`,
	`CREATE TRIGGER chat_change_notify
        AFTER INSERT OR UPDATE OR DELETE ON "Chat"
        FOR EACH ROW EXECUTE FUNCTION notify_chat_change();`,
}
