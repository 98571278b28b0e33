package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/kvconsole/kvconsole/internal/history"
)

// LoadHistory returns the recorded commands, most recent first, and the
// configured ledger size.
func (s *Store) LoadHistory(ctx context.Context) (history.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT command FROM command_history ORDER BY position`)
	if err != nil {
		return history.Snapshot{}, fmt.Errorf("config: query history: %w", err)
	}
	commands, err := scanList(rows, scanString, "config: scan history", "config: iterate history")
	if err != nil {
		return history.Snapshot{}, err
	}

	maxSize := history.DefaultMaxSize
	raw, err := s.Setting(ctx, settingHistoryMaxSize)
	switch {
	case IsNotFound(err):
	case err != nil:
		return history.Snapshot{}, err
	default:
		n, convErr := strconv.Atoi(raw)
		if convErr != nil {
			return history.Snapshot{}, fmt.Errorf("config: invalid %s %q: %w", settingHistoryMaxSize, raw, convErr)
		}
		maxSize = n
	}

	return history.Snapshot{Commands: commands, MaxSize: maxSize}, nil
}

// SaveHistory replaces the stored history with snap in one transaction.
func (s *Store) SaveHistory(ctx context.Context, snap history.Snapshot) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM command_history`); err != nil {
			return fmt.Errorf("config: clear history: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `INSERT INTO command_history (position, command) VALUES (?, ?)`)
		if err != nil {
			return fmt.Errorf("config: prepare history insert: %w", err)
		}
		defer stmt.Close()

		for i, cmd := range snap.Commands {
			if _, err := stmt.ExecContext(ctx, i, cmd); err != nil {
				return fmt.Errorf("config: save history entry %d: %w", i, err)
			}
		}

		if snap.MaxSize > 0 {
			if err := setSettingTx(ctx, tx, settingHistoryMaxSize, strconv.Itoa(snap.MaxSize)); err != nil {
				return err
			}
		}
		return nil
	})
}
