package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/kvconsole/kvconsole/internal/config"
	storecrypto "github.com/kvconsole/kvconsole/internal/config/store/crypto"
)

const (
	defaultBusyTimeout        = 5 * time.Second
	defaultConnectionLifetime = 0 // unlimited
)

// Options describes parameters for opening a configuration store.
type Options struct {
	InstanceName string      // Logical instance name (defaults to config.DefaultInstance)
	DBPath       string      // Optional override for config.db path
	Logger       *zap.Logger // Defaults to a no-op logger
}

// Store persists connection profiles, registry state, command history and
// settings in SQLite. Profile passwords are encrypted at rest.
type Store struct {
	db            *sql.DB
	instanceName  string
	dbPath        string
	encryptionKey []byte
	logger        *zap.Logger
}

// NotFoundError indicates a requested record does not exist.
type NotFoundError struct {
	Entity string
	Key    string
}

func (e NotFoundError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s not found", e.Entity)
	}
	return fmt.Sprintf("%s %s not found", e.Entity, e.Key)
}

// IsNotFound returns true when err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var target NotFoundError
	return errors.As(err, &target)
}

// Open initialises the configuration store for the given instance.
func Open(ctx context.Context, opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("store")

	paths := config.GetInstancePaths(opts.InstanceName)
	dbPath := config.ExpandPath(opts.DBPath)
	if dbPath == "" {
		if err := config.EnsureInstanceDirs(paths); err != nil {
			return nil, fmt.Errorf("config: ensure instance directories: %w", err)
		}
		dbPath = paths.ConfigDB
	} else if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("config: ensure database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("config: open sqlite store: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(defaultConnectionLifetime)
	db.SetConnMaxIdleTime(defaultConnectionLifetime)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := applyPragmas(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	if err := applySchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	if err := seedDefaults(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	key, err := loadOrCreateKey(ctx, db, storecrypto.KeyPath(dbPath), logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	if migrated, err := migratePlaintextPasswords(ctx, db, key); err != nil {
		db.Close()
		return nil, fmt.Errorf("config: migrate plaintext passwords: %w", err)
	} else if migrated > 0 {
		logger.Info("encrypted plaintext passwords", zap.Int("count", migrated))
	}

	logger.Debug("opened", zap.String("path", dbPath))
	return &Store{
		db:            db,
		instanceName:  paths.Name,
		dbPath:        dbPath,
		encryptionKey: key,
		logger:        logger,
	}, nil
}

// loadOrCreateKey returns the password key. A new key is only created when
// no encrypted password is stored, since older values would become
// unreadable.
func loadOrCreateKey(ctx context.Context, db *sql.DB, keyPath string, logger *zap.Logger) ([]byte, error) {
	key, err := storecrypto.LoadKey(keyPath, logger)
	if err != nil {
		return nil, err
	}
	if key != nil {
		return key, nil
	}

	hasEnc, err := hasEncryptedPasswords(ctx, db)
	if err != nil {
		return nil, err
	}
	if hasEnc {
		return nil, fmt.Errorf("config: encryption key %s is missing but the database already contains encrypted passwords; restore the key file or re-enter the passwords", keyPath)
	}
	logger.Info("creating encryption key", zap.String("path", keyPath))
	return storecrypto.CreateKey(keyPath)
}

// Close finalises the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// InstanceName returns the logical instance associated with the store.
func (s *Store) InstanceName() string {
	return s.instanceName
}

// Path returns the filesystem path of the backing database.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("config: rollback failed after %v: %w", err, rbErr)
		}
		return err
	}

	return tx.Commit()
}
