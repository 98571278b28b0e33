package profile

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kvconsole/kvconsole/internal/validate"
)

const (
	DefaultPort      = 6379
	DefaultDatabase  = 0
	DefaultTimeoutMS = 5000
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("profile: invalid")

// Profile is a named, durable server-connection configuration.
//
// Two profiles are the same profile when their IDs match; the remaining
// fields are a full-record payload replaced on update.
type Profile struct {
	ID        string `yaml:"id" json:"id"`
	Name      string `yaml:"name" json:"name"`
	Host      string `yaml:"host" json:"host"`
	Port      int    `yaml:"port" json:"port"`
	Password  string `yaml:"password,omitempty" json:"-"`
	TLS       bool   `yaml:"tls,omitempty" json:"tls"`
	Database  int    `yaml:"database" json:"database"`
	TimeoutMS int    `yaml:"timeout_ms" json:"timeout_ms"`

	// Connected is advisory for presentation only. The transport session
	// owns the real connection state.
	Connected bool `yaml:"-" json:"connected"`
}

// NewID returns a fresh profile identifier.
func NewID() string {
	return uuid.NewString()
}

// New creates a profile with a generated ID and default settings.
func New(name, host string) Profile {
	return Builder().Name(name).Host(host).Build()
}

// Equal reports whether p and other identify the same profile.
func (p Profile) Equal(other Profile) bool {
	return p.ID == other.ID
}

// Addr returns host:port suitable for dialing.
func (p Profile) Addr() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// Timeout returns the per-connection timeout as a duration.
func (p Profile) Timeout() time.Duration {
	return time.Duration(p.TimeoutMS) * time.Millisecond
}

// HasPassword reports whether AUTH should be issued on connect.
func (p Profile) HasPassword() bool {
	return p.Password != ""
}

func (p Profile) String() string {
	return fmt.Sprintf("%s (%s:%d)", p.Name, p.Host, p.Port)
}

// Validate checks the fields a transport needs to dial the server.
func (p Profile) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("%w: empty id", ErrInvalid)
	}
	if err := validate.Host(p.Host); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if p.Port < 1 || p.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalid, p.Port)
	}
	if p.Database < 0 {
		return fmt.Errorf("%w: negative database index %d", ErrInvalid, p.Database)
	}
	if p.TimeoutMS <= 0 {
		return fmt.Errorf("%w: timeout must be positive, got %dms", ErrInvalid, p.TimeoutMS)
	}
	return nil
}

// ProfileBuilder assembles a Profile field by field.
type ProfileBuilder struct {
	p     Profile
	hasID bool
}

// Builder starts a profile with default port, database and timeout.
func Builder() *ProfileBuilder {
	return &ProfileBuilder{p: Profile{
		Port:      DefaultPort,
		Database:  DefaultDatabase,
		TimeoutMS: DefaultTimeoutMS,
	}}
}

// ToBuilder returns a builder seeded with every field of p, including its ID.
func (p Profile) ToBuilder() *ProfileBuilder {
	return &ProfileBuilder{p: p, hasID: p.ID != ""}
}

func (b *ProfileBuilder) ID(id string) *ProfileBuilder {
	b.p.ID = id
	b.hasID = id != ""
	return b
}

func (b *ProfileBuilder) Name(name string) *ProfileBuilder {
	b.p.Name = name
	return b
}

func (b *ProfileBuilder) Host(host string) *ProfileBuilder {
	b.p.Host = host
	return b
}

func (b *ProfileBuilder) Port(port int) *ProfileBuilder {
	b.p.Port = port
	return b
}

func (b *ProfileBuilder) Password(password string) *ProfileBuilder {
	b.p.Password = password
	return b
}

func (b *ProfileBuilder) TLS(enabled bool) *ProfileBuilder {
	b.p.TLS = enabled
	return b
}

func (b *ProfileBuilder) Database(db int) *ProfileBuilder {
	b.p.Database = db
	return b
}

func (b *ProfileBuilder) TimeoutMS(ms int) *ProfileBuilder {
	b.p.TimeoutMS = ms
	return b
}

// Build returns the profile, generating an ID when none was supplied.
func (b *ProfileBuilder) Build() Profile {
	p := b.p
	if !b.hasID {
		p.ID = NewID()
	}
	return p
}
