package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kvconsole/kvconsole/internal/command"
	"github.com/kvconsole/kvconsole/internal/profile"
	"github.com/kvconsole/kvconsole/internal/result"
)

// Options configures a Session.
type Options struct {
	Driver   Driver
	Logger   *zap.Logger
	PoolSize int
	MinIdle  int
	MaxIdle  int

	// now is overridable in tests.
	now func() time.Time
}

// Session holds a pooled connection to at most one server.
//
// Open, Close and Execute are serialised against each other: an Open in
// progress completes before any later command borrows from the new pool.
// A command that already picked up the previous pool may finish against it.
type Session struct {
	mu      sync.RWMutex
	pool    Pool
	current *profile.Profile

	driver   Driver
	logger   *zap.Logger
	poolSize int
	minIdle  int
	maxIdle  int
	now      func() time.Time
}

// NewSession creates a disconnected session.
func NewSession(opts Options) *Session {
	s := &Session{
		driver:   opts.Driver,
		logger:   opts.Logger,
		poolSize: opts.PoolSize,
		minIdle:  opts.MinIdle,
		maxIdle:  opts.MaxIdle,
		now:      opts.now,
	}
	if s.driver == nil {
		s.driver = RedisDriver{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.logger = s.logger.Named("session")
	if s.poolSize <= 0 {
		s.poolSize = DefaultPoolSize
	}
	if s.maxIdle <= 0 {
		s.maxIdle = DefaultMaxIdle
	}
	if s.minIdle <= 0 || s.minIdle > s.maxIdle {
		s.minIdle = DefaultMinIdle
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Open replaces any existing pool with one for p, then probes it. On failure
// the session is left disconnected.
func (s *Session) Open(ctx context.Context, p profile.Profile) result.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closeLocked()

	if err := p.Validate(); err != nil {
		return result.Failure(result.CodeTransportFailure, "failed to connect: %v", err)
	}

	pool, err := s.driver.Open(ctx, DialOptions{
		Addr:     p.Addr(),
		Password: p.Password,
		TLS:      p.TLS,
		DB:       p.Database,
		Timeout:  p.Timeout(),
		PoolSize: s.poolSize,
		MinIdle:  s.minIdle,
		MaxIdle:  s.maxIdle,
	})
	if err != nil {
		s.logger.Warn("open pool failed", zap.String("profile", p.ID), zap.String("addr", p.Addr()), zap.Error(err))
		return result.Failure(result.CodeTransportFailure, "failed to connect: %v", err)
	}

	if err := pool.Ping(ctx); err != nil {
		if closeErr := pool.Close(); closeErr != nil {
			s.logger.Debug("close pool after failed probe", zap.Error(closeErr))
		}
		s.logger.Warn("liveness probe failed", zap.String("profile", p.ID), zap.String("addr", p.Addr()), zap.Error(err))
		return result.Failure(result.CodeTransportFailure, "failed to connect: %v", err)
	}

	connected := p
	connected.Connected = true
	s.pool = pool
	s.current = &connected
	s.logger.Info("connected", zap.String("profile", p.ID), zap.String("addr", p.Addr()), zap.Int("db", p.Database))
	return result.Status("Connected to " + p.Name)
}

// Close tears down the pool. It is safe to call on a closed session.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

func (s *Session) closeLocked() {
	if s.pool == nil {
		s.current = nil
		return
	}
	if err := s.pool.Close(); err != nil {
		s.logger.Debug("close pool", zap.Error(err))
	}
	if s.current != nil {
		s.logger.Info("disconnected", zap.String("profile", s.current.ID))
	}
	s.pool = nil
	s.current = nil
}

// IsConnected reports whether a live pool exists.
func (s *Session) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pool != nil
}

// CurrentProfile returns the profile of the last successful Open.
func (s *Session) CurrentProfile() (profile.Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return profile.Profile{}, false
	}
	return *s.current, true
}

func (s *Session) acquire() Pool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pool
}

// Execute tokenises text, sends it through the pool and classifies the reply.
// Failures are returned as error Results; nothing escapes as a panic.
func (s *Session) Execute(ctx context.Context, text string) result.Result {
	return s.ExecuteArgs(ctx, command.Tokenize(text))
}

// ExecuteArgs is Execute for a command that is already split into
// arguments. Arguments reach the server unchanged, including empty ones.
func (s *Session) ExecuteArgs(ctx context.Context, tokens []string) result.Result {
	pool := s.acquire()
	if pool == nil {
		return result.Failure(result.CodeNotConnected, "not connected to server")
	}

	if len(tokens) == 0 {
		return result.Failure(result.CodeEmptyCommand, "empty command")
	}

	verb, ok := command.Resolve(tokens[0])
	if !ok {
		return result.Failure(result.CodeUnknownVerb, "unknown command: %s", tokens[0])
	}
	if command.ConnectionBound(verb) {
		return result.Failure(result.CodeInvalidState, "%s is not supported on a pooled session", verb)
	}

	args := tokens[1:]
	start := s.now()
	reply, err := s.dispatch(ctx, pool, verb, args)
	elapsed := s.now().Sub(start)

	var r result.Result
	if err != nil {
		r = failureFor(verb, err)
		s.logger.Debug("command failed", zap.String("verb", verb), zap.Duration("elapsed", elapsed), zap.Error(err))
	} else {
		r = result.Classify(reply)
		switch {
		case command.ReturnsSet(verb):
			r = result.AsSet(r)
		case command.ReturnsScoredMembers(verb, args):
			r = result.AsSortedSet(r)
		}
		s.logger.Debug("command executed", zap.String("verb", verb), zap.Stringer("kind", r.Kind), zap.Duration("elapsed", elapsed))
	}
	return r.WithElapsed(elapsed)
}

// dispatch sends one command, converting driver panics into errors.
func (s *Session) dispatch(ctx context.Context, pool Pool, verb string, args []string) (reply any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("driver panic", zap.String("verb", verb), zap.Any("panic", rec))
			reply, err = nil, fmt.Errorf("transport: driver panic: %v", rec)
		}
	}()

	argv := make([]any, 0, len(args)+1)
	argv = append(argv, verb)
	for _, a := range args {
		argv = append(argv, a)
	}
	return pool.Do(ctx, argv...)
}

// do runs a command built by the session itself (typed reads, key actions).
func (s *Session) do(ctx context.Context, verb string, args ...string) (any, error) {
	pool := s.acquire()
	if pool == nil {
		return nil, errNotConnected
	}
	return s.dispatch(ctx, pool, verb, args)
}

var errNotConnected = errors.New("transport: not connected")

func failureFor(verb string, err error) result.Result {
	var serverErr ServerError
	if errors.As(err, &serverErr) {
		msg := serverErr.Error()
		if strings.HasPrefix(msg, "ERR unknown command") {
			return result.Failure(result.CodeUnknownVerb, "unknown command: %s", verb)
		}
		return result.Failure(result.CodeServerError, "%s", msg)
	}
	if errors.Is(err, errNotConnected) {
		return result.Failure(result.CodeNotConnected, "not connected to server")
	}
	return result.Failure(result.CodeTransportFailure, "error executing command: %v", err)
}

// Monitor pings the server every interval until ctx is done, reporting
// failed probes to onFailure. It returns immediately when interval is not
// positive. Probes skip while the session is disconnected.
func (s *Session) Monitor(ctx context.Context, interval time.Duration, onFailure func(error)) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pool := s.acquire()
			if pool == nil {
				continue
			}
			if err := pool.Ping(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("liveness probe failed", zap.Error(err))
				if onFailure != nil {
					onFailure(err)
				}
			}
		}
	}
}
