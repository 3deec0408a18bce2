package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/Starzy87/stake-mines-backend/internal/games"
	"github.com/Starzy87/stake-mines-backend/internal/session"
)

//go:embed migrations/*.sql
var migrations embed.FS

// DefaultHistoryLimit applies when History is called without a limit.
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

// Archive keeps finalized rounds in SQLite.
type Archive struct {
	db *sql.DB
}

// OpenArchive opens or creates the archive at path and applies pending
// migrations. An empty path opens a private in-memory database.
func OpenArchive(ctx context.Context, path string) (*Archive, error) {
	dsn := "file::memory:"
	if path != "" {
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1) // SQLite is not concurrent for writes

	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &Archive{db: db}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return fmt.Errorf("archive migrations: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("archive migrations: %w", err)
	}
	return nil
}

func (a *Archive) Close() error { return a.db.Close() }

// Ping checks the database connection.
func (a *Archive) Ping(ctx context.Context) error { return a.db.PingContext(ctx) }

// Record stores rec. Recording the same round twice is a no-op.
func (a *Archive) Record(ctx context.Context, rec session.Record) error {
	mines, err := json.Marshal(rec.Mines)
	if err != nil {
		return err
	}
	bonus, err := json.Marshal(rec.Bonus)
	if err != nil {
		return err
	}
	revealed, err := json.Marshal(rec.Revealed)
	if err != nil {
		return err
	}

	_, err = a.db.ExecContext(ctx, `
		INSERT INTO rounds (
			id, player_id, mode, source, book_id, status, amount, stake, payout, multiplier,
			mine_count, mines, bonus, revealed, server_seed, server_seed_hash, client_seed, nonce,
			created_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		rec.ID, rec.PlayerID, rec.Mode, string(rec.Source), int64(rec.BookID), string(rec.Status),
		rec.Amount, rec.Stake, rec.Payout, rec.Multiplier,
		rec.MineCount, string(mines), string(bonus), string(revealed),
		rec.ServerSeed, rec.ServerSeedHash, rec.ClientSeed, int64(rec.Nonce),
		rec.CreatedAt.UTC(), rec.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record round %s: %w", rec.ID, err)
	}
	return nil
}

// History returns up to limit rounds of playerID, newest first.
func (a *Archive) History(ctx context.Context, playerID string, limit int) ([]session.Record, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT id, player_id, mode, source, book_id, status, amount, stake, payout, multiplier,
			mine_count, mines, bonus, revealed, server_seed, server_seed_hash, client_seed, nonce,
			created_at, finished_at
		FROM rounds
		WHERE player_id = ?
		ORDER BY finished_at DESC, rowid DESC
		LIMIT ?`, playerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []session.Record{}
	for rows.Next() {
		var (
			rec                    session.Record
			source, status         string
			bookID, nonce          int64
			mines, bonus, revealed string
			createdAt, finishedAt  time.Time
		)
		if err := rows.Scan(
			&rec.ID, &rec.PlayerID, &rec.Mode, &source, &bookID, &status,
			&rec.Amount, &rec.Stake, &rec.Payout, &rec.Multiplier,
			&rec.MineCount, &mines, &bonus, &revealed,
			&rec.ServerSeed, &rec.ServerSeedHash, &rec.ClientSeed, &nonce,
			&createdAt, &finishedAt,
		); err != nil {
			return nil, err
		}
		rec.Source = session.Source(source)
		rec.Status = session.Status(status)
		rec.BookID = uint64(bookID)
		rec.Nonce = uint64(nonce)
		rec.CreatedAt = createdAt
		rec.FinishedAt = finishedAt

		if err := json.Unmarshal([]byte(mines), &rec.Mines); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(revealed), &rec.Revealed); err != nil {
			return nil, err
		}
		var b map[int]games.Bonus
		if err := json.Unmarshal([]byte(bonus), &b); err != nil {
			return nil, err
		}
		if len(b) > 0 {
			rec.Bonus = b
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
