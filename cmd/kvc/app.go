package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kvconsole/kvconsole/internal/config"
	"github.com/kvconsole/kvconsole/internal/config/store"
	"github.com/kvconsole/kvconsole/internal/history"
	"github.com/kvconsole/kvconsole/internal/logging"
	"github.com/kvconsole/kvconsole/internal/profile"
	"github.com/kvconsole/kvconsole/internal/registry"
	"github.com/kvconsole/kvconsole/internal/transport"
)

// app bundles the components a command works with. Every command that
// touches profiles or a server opens one and closes it before returning.
type app struct {
	paths    config.InstancePaths
	logger   *zap.Logger
	store    *store.Store
	session  *transport.Session
	registry *registry.Registry
	journal  *history.Journal

	closeOnce sync.Once
}

// appOptions carries the persistent flags every command shares.
type appOptions struct {
	Instance string
	DBPath   string
	Debug    bool
}

func openApp(cmd *cobra.Command) (*app, error) {
	flags := cmd.Flags()
	var opts appOptions
	opts.Instance, _ = flags.GetString("instance")
	opts.DBPath, _ = flags.GetString("db")
	opts.Debug, _ = flags.GetBool("debug")
	return newApp(commandContext(cmd), opts)
}

func newApp(ctx context.Context, opts appOptions) (*app, error) {
	paths := config.GetInstancePaths(opts.Instance).WithConfigDB(opts.DBPath)
	if err := config.EnsureInstanceDirs(paths); err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Options{File: paths.LogFile, Debug: opts.Debug})
	if err != nil {
		return nil, err
	}
	logger = logger.With(zap.String("instance", paths.Name))

	st, err := store.Open(ctx, store.Options{
		InstanceName: paths.Name,
		DBPath:       paths.ConfigDB,
		Logger:       logger,
	})
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	a := &app{paths: paths, logger: logger, store: st}
	a.session = transport.NewSession(transport.Options{Logger: logger})
	a.registry, err = registry.Open(ctx, registry.Options{Session: a.session, Store: st, Logger: logger})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.journal, err = history.OpenJournal(ctx, st)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// Close drops the server connection and releases the store. Later calls do
// nothing.
func (a *app) Close() {
	a.closeOnce.Do(func() {
		if a.session != nil {
			a.session.Close()
		}
		if err := a.store.Close(); err != nil {
			a.logger.Warn("close store", zap.Error(err))
		}
		_ = a.logger.Sync()
	})
}

// connect resolves nameOrID and makes it the active profile.
func (a *app) connect(ctx context.Context, nameOrID string) (profile.Profile, error) {
	p, err := a.registry.Find(nameOrID)
	if err != nil {
		return profile.Profile{}, err
	}
	if r := a.registry.Connect(ctx, p.ID); r.IsError() {
		return p, fmt.Errorf("connect %s: %w", p.Name, r.AsError())
	}
	return p, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
