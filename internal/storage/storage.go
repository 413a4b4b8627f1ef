package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

const commandHistoryLimit = 20

// Storage keeps the command history in SQLite. Playback queues are never stored.
type Storage struct {
	db  *sql.DB
	log *slog.Logger
}

type CommandHistoryRecord struct {
	GuildID     string
	ChannelID   string
	ChannelName string
	GuildName   string
	UserID      string
	Username    string
	Command     string
	Param       string
	Datetime    time.Time
}

// New opens (or creates) the database at path. ":memory:" gives a private
// in-memory database.
func New(path string, log *slog.Logger) (*Storage, error) {
	if log == nil {
		log = slog.Default()
	}
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create storage dir: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one connection keeps :memory: databases shared and serializes writers
	db.SetMaxOpenConns(1)

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	s := &Storage{db: db, log: log.With(slog.String("component", "storage"))}
	s.log.Info("Storage ready", slog.String("path", path))
	return s, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS command_history (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			guild_id     TEXT NOT NULL,
			channel_id   TEXT NOT NULL,
			channel_name TEXT NOT NULL DEFAULT '',
			guild_name   TEXT NOT NULL DEFAULT '',
			user_id      TEXT NOT NULL,
			username     TEXT NOT NULL DEFAULT '',
			command      TEXT NOT NULL,
			param        TEXT NOT NULL DEFAULT '',
			created_at   INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_command_history_guild ON command_history(guild_id, id);
	`)
	if err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

// AppendCommandToHistory stores rec and trims the guild's history to the
// newest commandHistoryLimit entries.
func (s *Storage) AppendCommandToHistory(ctx context.Context, rec CommandHistoryRecord) error {
	if rec.Datetime.IsZero() {
		rec.Datetime = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO command_history
			(guild_id, channel_id, channel_name, guild_name, user_id, username, command, param, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.GuildID, rec.ChannelID, rec.ChannelName, rec.GuildName,
		rec.UserID, rec.Username, rec.Command, rec.Param, rec.Datetime.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert command history: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM command_history
		WHERE guild_id = ? AND id NOT IN (
			SELECT id FROM command_history WHERE guild_id = ? ORDER BY id DESC LIMIT ?
		)`, rec.GuildID, rec.GuildID, commandHistoryLimit)
	if err != nil {
		return fmt.Errorf("trim command history: %w", err)
	}

	return tx.Commit()
}

// FetchCommandHistory returns the guild's history, oldest first.
func (s *Storage) FetchCommandHistory(ctx context.Context, guildID string) ([]CommandHistoryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT guild_id, channel_id, channel_name, guild_name, user_id, username, command, param, created_at
		FROM command_history
		WHERE guild_id = ?
		ORDER BY id ASC`, guildID)
	if err != nil {
		return nil, fmt.Errorf("query command history: %w", err)
	}
	defer rows.Close()

	var out []CommandHistoryRecord
	for rows.Next() {
		var rec CommandHistoryRecord
		var ms int64
		if err := rows.Scan(&rec.GuildID, &rec.ChannelID, &rec.ChannelName, &rec.GuildName,
			&rec.UserID, &rec.Username, &rec.Command, &rec.Param, &ms); err != nil {
			return nil, fmt.Errorf("scan command history: %w", err)
		}
		rec.Datetime = time.UnixMilli(ms)
		out = append(out, rec)
	}
	return out, rows.Err()
}
