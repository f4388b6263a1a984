package tx

import (
	"database/sql"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Propagation decides how a new unit of work relates to the current
// transaction.
type Propagation int

const (
	// Required joins the current transaction or starts one.
	Required Propagation = iota
	// RequiresNew always starts a transaction, suspending the current one.
	RequiresNew
	// Supports joins the current transaction or runs without one.
	Supports
	// NotSupported always runs without a transaction.
	NotSupported
	// Never runs without a transaction and fails if one is active.
	Never
	// Mandatory joins the current transaction and fails if none is active.
	Mandatory
)

var propagationNames = map[Propagation]string{
	Required:     "REQUIRED",
	RequiresNew:  "REQUIRES_NEW",
	Supports:     "SUPPORTS",
	NotSupported: "NOT_SUPPORTED",
	Never:        "NEVER",
	Mandatory:    "MANDATORY",
}

func (p Propagation) String() string {
	if name, ok := propagationNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Propagation(%d)", int(p))
}

// MarshalText implements encoding.TextMarshaler.
func (p Propagation) MarshalText() ([]byte, error) {
	if _, ok := propagationNames[p]; !ok {
		return nil, fmt.Errorf("unknown propagation %d", int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText accepts names case-insensitively, with '-' or '_'.
func (p *Propagation) UnmarshalText(text []byte) error {
	parsed, err := ParsePropagation(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (p *Propagation) UnmarshalYAML(node *yaml.Node) error {
	return p.UnmarshalText([]byte(node.Value))
}

// ParsePropagation parses a propagation name such as "requires_new".
func ParsePropagation(s string) (Propagation, error) {
	key := normalizeName(s)
	if key == "" {
		return Required, nil
	}
	for p, name := range propagationNames {
		if name == key {
			return p, nil
		}
	}
	return Required, fmt.Errorf("unknown propagation %q", s)
}

// Isolation is the requested isolation level of a new transaction.
type Isolation int

const (
	// IsolationDefault leaves the driver default in place.
	IsolationDefault Isolation = iota
	ReadUncommitted
	ReadCommitted
	RepeatableRead
	Serializable
)

var isolationNames = map[Isolation]string{
	IsolationDefault: "DEFAULT",
	ReadUncommitted:  "READ_UNCOMMITTED",
	ReadCommitted:    "READ_COMMITTED",
	RepeatableRead:   "REPEATABLE_READ",
	Serializable:     "SERIALIZABLE",
}

func (i Isolation) String() string {
	if name, ok := isolationNames[i]; ok {
		return name
	}
	return fmt.Sprintf("Isolation(%d)", int(i))
}

// Level maps the isolation to database/sql.
func (i Isolation) Level() sql.IsolationLevel {
	switch i {
	case ReadUncommitted:
		return sql.LevelReadUncommitted
	case ReadCommitted:
		return sql.LevelReadCommitted
	case RepeatableRead:
		return sql.LevelRepeatableRead
	case Serializable:
		return sql.LevelSerializable
	default:
		return sql.LevelDefault
	}
}

// MarshalText implements encoding.TextMarshaler.
func (i Isolation) MarshalText() ([]byte, error) {
	if _, ok := isolationNames[i]; !ok {
		return nil, fmt.Errorf("unknown isolation %d", int(i))
	}
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *Isolation) UnmarshalText(text []byte) error {
	parsed, err := ParseIsolation(string(text))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (i *Isolation) UnmarshalYAML(node *yaml.Node) error {
	return i.UnmarshalText([]byte(node.Value))
}

// ParseIsolation parses an isolation name such as "read-committed".
func ParseIsolation(s string) (Isolation, error) {
	key := normalizeName(s)
	if key == "" {
		return IsolationDefault, nil
	}
	for i, name := range isolationNames {
		if name == key {
			return i, nil
		}
	}
	return IsolationDefault, fmt.Errorf("unknown isolation %q", s)
}

func normalizeName(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return strings.ToUpper(s)
}
