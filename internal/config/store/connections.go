package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	storecrypto "github.com/kvconsole/kvconsole/internal/config/store/crypto"
	"github.com/kvconsole/kvconsole/internal/profile"
	"github.com/kvconsole/kvconsole/internal/registry"
)

const upsertConnectionSQL = `
	INSERT INTO connections (id, position, name, host, port, password, tls, db, timeout_ms, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT(id) DO UPDATE SET
		position = excluded.position,
		name = excluded.name,
		host = excluded.host,
		port = excluded.port,
		password = excluded.password,
		tls = excluded.tls,
		db = excluded.db,
		timeout_ms = excluded.timeout_ms,
		updated_at = CURRENT_TIMESTAMP
`

// LoadRegistry returns the stored profiles in list order and the last
// active profile id.
func (s *Store) LoadRegistry(ctx context.Context) (registry.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, host, port, password, tls, db, timeout_ms FROM connections ORDER BY position, created_at`,
	)
	if err != nil {
		return registry.Snapshot{}, fmt.Errorf("config: query connections: %w", err)
	}
	stored, err := scanList(rows, scanConnection, "config: scan connection", "config: iterate connections")
	if err != nil {
		return registry.Snapshot{}, err
	}

	profiles := make([]profile.Profile, 0, len(stored))
	for _, c := range stored {
		p := c.profile
		if c.password != "" {
			p.Password, err = storecrypto.DecryptValue(s.encryptionKey, c.password)
			if err != nil {
				return registry.Snapshot{}, fmt.Errorf("config: decrypt password for %s: %w", p.Name, err)
			}
		}
		profiles = append(profiles, p)
	}

	var active sql.NullString
	err = s.db.QueryRowContext(ctx, `SELECT active_id FROM registry_state WHERE singleton = 1`).Scan(&active)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return registry.Snapshot{}, fmt.Errorf("config: load registry state: %w", err)
	}

	return registry.Snapshot{Profiles: profiles, ActiveID: active.String}, nil
}

// SaveRegistry replaces the stored profiles and registry state with snap in
// one transaction. Creation times of surviving profiles are kept.
func (s *Store) SaveRegistry(ctx context.Context, snap registry.Snapshot) error {
	encrypted := make([]string, len(snap.Profiles))
	for i, p := range snap.Profiles {
		if p.Password == "" {
			continue
		}
		value, err := storecrypto.EncryptValue(s.encryptionKey, p.Password)
		if err != nil {
			return fmt.Errorf("config: encrypt password for %s: %w", p.Name, err)
		}
		encrypted[i] = value
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, upsertConnectionSQL)
		if err != nil {
			return fmt.Errorf("config: prepare connection upsert: %w", err)
		}
		defer stmt.Close()

		ids := make([]any, 0, len(snap.Profiles))
		for i, p := range snap.Profiles {
			if _, err := stmt.ExecContext(ctx,
				p.ID, i, p.Name, p.Host, p.Port, encrypted[i], boolToInt(p.TLS), p.Database, p.TimeoutMS,
			); err != nil {
				return fmt.Errorf("config: save connection %s: %w", p.ID, err)
			}
			ids = append(ids, p.ID)
		}

		if err := deleteConnectionsExcept(ctx, tx, ids); err != nil {
			return err
		}

		var active any
		if snap.ActiveID != "" {
			active = snap.ActiveID
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO registry_state (singleton, active_id, updated_at)
			VALUES (1, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(singleton) DO UPDATE SET
				active_id = excluded.active_id,
				updated_at = CURRENT_TIMESTAMP
		`, active); err != nil {
			return fmt.Errorf("config: save registry state: %w", err)
		}
		s.logger.Debug("saved registry", zap.Int("profiles", len(ids)))
		return nil
	})
}

func deleteConnectionsExcept(ctx context.Context, tx *sql.Tx, ids []any) error {
	if len(ids) == 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM connections`); err != nil {
			return fmt.Errorf("config: clear connections: %w", err)
		}
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	query := fmt.Sprintf(`DELETE FROM connections WHERE id NOT IN (%s)`, placeholders)
	if _, err := tx.ExecContext(ctx, query, ids...); err != nil {
		return fmt.Errorf("config: prune connections: %w", err)
	}
	return nil
}

// hasEncryptedPasswords reports whether any stored password carries the
// enc:v1: prefix.
func hasEncryptedPasswords(ctx context.Context, db *sql.DB) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM connections WHERE password LIKE ?`,
		storecrypto.EncPrefix+"%",
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("config: check encrypted passwords: %w", err)
	}
	return count > 0, nil
}

// migratePlaintextPasswords encrypts stored passwords that were written
// without encryption, for example by hand. A value that carries the prefix
// but does not decrypt is treated as plaintext. Returns the number of rows
// rewritten.
func migratePlaintextPasswords(ctx context.Context, db *sql.DB, key []byte) (int, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, password FROM connections WHERE password <> ''`)
	if err != nil {
		return 0, fmt.Errorf("config: query passwords for migration: %w", err)
	}
	pairs, err := scanList(rows, scanStringPair, "config: scan password for migration", "config: iterate passwords for migration")
	if err != nil {
		return 0, err
	}

	type pendingUpdate struct {
		id  string
		enc string
	}
	var updates []pendingUpdate
	for _, pair := range pairs {
		if storecrypto.IsEncrypted(pair[1]) {
			if _, err := storecrypto.DecryptValue(key, pair[1]); err == nil {
				continue
			}
		}
		enc, err := storecrypto.EncryptValue(key, pair[1])
		if err != nil {
			return 0, fmt.Errorf("config: encrypt during migration: %w", err)
		}
		updates = append(updates, pendingUpdate{id: pair[0], enc: enc})
	}
	if len(updates) == 0 {
		return 0, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("config: begin migration tx: %w", err)
	}
	for _, u := range updates {
		if _, err := tx.ExecContext(ctx,
			`UPDATE connections SET password = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, u.enc, u.id,
		); err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("config: update %s during migration: %w", u.id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("config: commit migration tx: %w", err)
	}
	return len(updates), nil
}
