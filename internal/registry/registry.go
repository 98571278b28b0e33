package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/kvconsole/kvconsole/internal/profile"
	"github.com/kvconsole/kvconsole/internal/result"
)

var (
	// ErrNotFound is returned when no profile matches an id or name.
	ErrNotFound = errors.New("connection not found")
	// ErrInvalidState is returned when a mutation targets the active profile.
	ErrInvalidState = errors.New("connection is active")
	// ErrAmbiguous is returned by Find when a name matches several profiles.
	ErrAmbiguous = errors.New("connection name is ambiguous")
)

// Session is the transport the registry drives. *transport.Session
// satisfies it.
type Session interface {
	Open(ctx context.Context, p profile.Profile) result.Result
	Close()
	IsConnected() bool
}

// Snapshot is the durable state of a Registry.
type Snapshot struct {
	Profiles []profile.Profile
	ActiveID string
}

// Store persists snapshots. Implementations replace the stored state as a
// whole on every save.
type Store interface {
	LoadRegistry(ctx context.Context) (Snapshot, error)
	SaveRegistry(ctx context.Context, snap Snapshot) error
}

// Options configures a Registry.
type Options struct {
	Session Session
	Store   Store
	Logger  *zap.Logger
}

// Registry owns the ordered list of connection profiles and tracks which one,
// if any, is connected through its Session.
//
// The active id is set only after a successful Open and cleared on
// Disconnect or a failed Connect, so it always names a listed profile.
type Registry struct {
	mu         sync.RWMutex
	profiles   []profile.Profile
	activeID   string
	lastActive string

	session Session
	store   Store
	logger  *zap.Logger
}

// New returns an empty registry. A nil Store disables persistence.
func New(opts Options) *Registry {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		session: opts.Session,
		store:   opts.Store,
		logger:  logger.Named("registry"),
	}
}

// Open returns a registry restored from opts.Store.
func Open(ctx context.Context, opts Options) (*Registry, error) {
	r := New(opts)
	if r.store == nil {
		return r, nil
	}
	snap, err := r.store.LoadRegistry(ctx)
	if err != nil {
		return nil, fmt.Errorf("registry: load: %w", err)
	}
	r.Restore(snap)
	return r, nil
}

// Add appends p. A profile without an id is given one.
func (r *Registry) Add(ctx context.Context, p profile.Profile) (profile.Profile, error) {
	if p.ID == "" {
		p.ID = profile.NewID()
	}
	if err := p.Validate(); err != nil {
		return profile.Profile{}, err
	}
	p.Connected = false

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.indexLocked(p.ID) >= 0 {
		return profile.Profile{}, fmt.Errorf("registry: duplicate id %s", p.ID)
	}
	r.profiles = append(r.profiles, p)
	r.logger.Info("profile added", zap.String("profile", p.ID), zap.String("name", p.Name))
	return p, r.saveLocked(ctx)
}

// Update replaces the stored profile with the same id. Unknown ids are
// ignored. The active profile cannot be edited.
func (r *Registry) Update(ctx context.Context, p profile.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexLocked(p.ID)
	if i < 0 {
		return nil
	}
	if p.ID == r.activeID {
		return fmt.Errorf("update %s: %w", p.Name, ErrInvalidState)
	}
	if err := p.Validate(); err != nil {
		return err
	}
	p.Connected = false
	r.profiles[i] = p
	r.logger.Info("profile updated", zap.String("profile", p.ID))
	return r.saveLocked(ctx)
}

// Remove deletes the profile with id. Unknown ids are ignored. The active
// profile cannot be removed.
func (r *Registry) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexLocked(id)
	if i < 0 {
		return nil
	}
	if id == r.activeID {
		return fmt.Errorf("remove %s: %w", r.profiles[i].Name, ErrInvalidState)
	}
	r.profiles = append(r.profiles[:i], r.profiles[i+1:]...)
	if r.lastActive == id {
		r.lastActive = ""
	}
	r.logger.Info("profile removed", zap.String("profile", id))
	return r.saveLocked(ctx)
}

// CheckMutable reports ErrInvalidState when id is the active profile.
func (r *Registry) CheckMutable(id string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id != "" && id == r.activeID {
		return ErrInvalidState
	}
	return nil
}

// List returns a copy of the profiles in insertion order.
func (r *Registry) List() []profile.Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]profile.Profile, len(r.profiles))
	copy(out, r.profiles)
	return out
}

// Get returns the profile with id.
func (r *Registry) Get(id string) (profile.Profile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := r.indexLocked(id); i >= 0 {
		return r.profiles[i], true
	}
	return profile.Profile{}, false
}

// Find resolves an id or, failing that, a display name (case-insensitive).
func (r *Registry) Find(nameOrID string) (profile.Profile, error) {
	if p, ok := r.Get(nameOrID); ok {
		return p, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	var matches []profile.Profile
	for _, p := range r.profiles {
		if strings.EqualFold(p.Name, nameOrID) {
			matches = append(matches, p)
		}
	}
	switch len(matches) {
	case 0:
		return profile.Profile{}, fmt.Errorf("%w: %s", ErrNotFound, nameOrID)
	case 1:
		return matches[0], nil
	}
	return profile.Profile{}, fmt.Errorf("%w: %s matches %d profiles", ErrAmbiguous, nameOrID, len(matches))
}

// Connect opens the session for the profile with id. Any other active
// profile is disconnected first. Failures are returned as error Results and
// leave the registry disconnected.
func (r *Registry) Connect(ctx context.Context, id string) result.Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexLocked(id)
	if i < 0 {
		return result.Failure(result.CodeNotFound, "connection not found: %s", id)
	}
	if r.session == nil {
		return result.Failure(result.CodeTransportFailure, "failed to connect: no session configured")
	}

	if r.activeID != "" && r.activeID != id {
		r.logger.Info("switching connection", zap.String("from", r.activeID), zap.String("to", id))
		r.session.Close()
		r.setActiveLocked("")
	}

	res := r.session.Open(ctx, r.profiles[i])
	if res.IsError() {
		r.setActiveLocked("")
		r.logger.Warn("connect failed", zap.String("profile", id), zap.String("error", res.Message))
	} else {
		r.setActiveLocked(id)
		r.lastActive = id
	}
	if err := r.saveLocked(ctx); err != nil {
		r.logger.Warn("persist active connection", zap.Error(err))
	}
	return res
}

// Disconnect closes the session and clears the active id. It is safe to call
// when nothing is connected.
func (r *Registry) Disconnect(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session != nil {
		r.session.Close()
	}
	if r.activeID == "" {
		return nil
	}
	r.logger.Info("disconnected", zap.String("profile", r.activeID))
	r.setActiveLocked("")
	return r.saveLocked(ctx)
}

// IsConnected reports whether a profile is active and its session is live.
func (r *Registry) IsConnected() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeID != "" && r.session != nil && r.session.IsConnected()
}

// ActiveConnectionID returns the active profile id, or "".
func (r *Registry) ActiveConnectionID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeID
}

// ActiveProfile resolves the active id against the current list.
func (r *Registry) ActiveProfile() (profile.Profile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.activeID == "" {
		return profile.Profile{}, false
	}
	if i := r.indexLocked(r.activeID); i >= 0 {
		return r.profiles[i], true
	}
	return profile.Profile{}, false
}

// LastActiveID returns the profile most recently connected, including one
// recorded by a previous process.
func (r *Registry) LastActiveID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastActive
}

// Snapshot returns the durable state.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

// Restore replaces the registry contents with snap. The session is not
// reopened, so a persisted active id becomes LastActiveID instead.
func (r *Registry) Restore(snap Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.profiles = make([]profile.Profile, 0, len(snap.Profiles))
	for _, p := range snap.Profiles {
		p.Connected = false
		r.profiles = append(r.profiles, p)
	}
	r.activeID = ""
	r.lastActive = ""
	if snap.ActiveID != "" && r.indexLocked(snap.ActiveID) >= 0 {
		r.lastActive = snap.ActiveID
	}
	r.logger.Debug("restored", zap.Int("profiles", len(r.profiles)), zap.String("last_active", r.lastActive))
}

func (r *Registry) snapshotLocked() Snapshot {
	profiles := make([]profile.Profile, len(r.profiles))
	copy(profiles, r.profiles)
	active := r.activeID
	if active == "" {
		active = r.lastActive
	}
	return Snapshot{Profiles: profiles, ActiveID: active}
}

func (r *Registry) setActiveLocked(id string) {
	r.activeID = id
	for i := range r.profiles {
		r.profiles[i].Connected = id != "" && r.profiles[i].ID == id
	}
}

func (r *Registry) indexLocked(id string) int {
	if id == "" {
		return -1
	}
	for i, p := range r.profiles {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (r *Registry) saveLocked(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	if err := r.store.SaveRegistry(ctx, r.snapshotLocked()); err != nil {
		return fmt.Errorf("registry: save: %w", err)
	}
	return nil
}
