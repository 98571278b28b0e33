package profile

import (
	"bytes"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// DocumentVersion is written into every exported document.
const DocumentVersion = 1

// Document is the YAML form used to export and import saved profiles.
type Document struct {
	Version  int       `yaml:"version"`
	Profiles []Profile `yaml:"profiles"`
}

// Export writes profiles as a YAML document. Passwords are included only
// when withSecrets is set.
func Export(w io.Writer, profiles []Profile, withSecrets bool) error {
	doc := Document{Version: DocumentVersion, Profiles: make([]Profile, 0, len(profiles))}
	for _, p := range profiles {
		if !withSecrets {
			p.Password = ""
		}
		doc.Profiles = append(doc.Profiles, p)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("profile: encode document: %w", err)
	}
	return enc.Close()
}

// Import parses a YAML document. Entries without an ID receive a fresh one,
// missing numeric fields fall back to defaults, and every entry is validated.
func Import(data []byte) ([]Profile, error) {
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("profile: decode document: %w", err)
	}
	if doc.Version > DocumentVersion {
		return nil, fmt.Errorf("profile: unsupported document version %d", doc.Version)
	}

	out := make([]Profile, 0, len(doc.Profiles))
	for i, p := range doc.Profiles {
		if p.ID == "" {
			p.ID = NewID()
		}
		if p.Port == 0 {
			p.Port = DefaultPort
		}
		if p.TimeoutMS == 0 {
			p.TimeoutMS = DefaultTimeoutMS
		}
		p.Connected = false
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("profile: entry %d (%s): %w", i, p.Name, err)
		}
		out = append(out, p)
	}
	return out, nil
}
