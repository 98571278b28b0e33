package validate

import (
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"
	"unicode"
)

// IdentRe matches valid identifiers used for instance names.
// Must start with alphanumeric, followed by alphanumeric, dots, hyphens, or underscores.
var IdentRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// MaxIdentLen is the maximum length for identifiers.
const MaxIdentLen = 128

// Ident validates a string as a valid identifier.
func Ident(s string) bool {
	return len(s) > 0 && len(s) <= MaxIdentLen && IdentRe.MatchString(s)
}

// Host checks that host is a bare host name or IP address. URLs, bracketed
// IPv6 literals and host:port pairs are rejected because the port is a
// separate profile field.
func Host(host string) error {
	if strings.TrimSpace(host) == "" {
		return errors.New("empty host")
	}
	if strings.Contains(host, "://") {
		return fmt.Errorf("host %q is a URL; give the bare host name", host)
	}
	if strings.ContainsFunc(host, unicode.IsSpace) {
		return fmt.Errorf("host %q contains whitespace", host)
	}
	if net.ParseIP(host) != nil {
		return nil
	}
	if strings.ContainsAny(host, "[]") {
		return fmt.Errorf("host %q: write IPv6 addresses without brackets", host)
	}
	if _, _, err := net.SplitHostPort(host); err == nil {
		return fmt.Errorf("host %q includes a port; use the port setting", host)
	}
	return nil
}
