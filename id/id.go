// Package id defines TypeID-based identity types for lettrage entities.
//
// Every entity uses a single ID struct with a prefix that identifies the
// entity type, in the URL-safe format "prefix_suffix". Run and lettrage-code
// IDs are K-sortable (UUIDv7). Match IDs are name-based (UUIDv5) so that the
// same pairing of ledger lines always yields the same identifier.
package id

import (
	"database/sql/driver"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.jetify.com/typeid/v2"
)

// Prefix identifies the entity type encoded in a TypeID.
type Prefix string

// Prefix constants for all lettrage entity types.
const (
	PrefixMatch    Prefix = "match" // Reconciliation suggestion
	PrefixLettrage Prefix = "let"   // Settlement group code written on lines
	PrefixRun      Prefix = "run"   // Matching run
	PrefixEntry    Prefix = "entry" // Journal entry
)

// matchNamespace scopes the name-based UUIDs derived for match IDs.
var matchNamespace = uuid.MustParse("5b0c9f0e-8f7e-4a8e-9d7e-6c2f3b1a4d10")

// ID is the primary identifier type for all lettrage entities.
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receivers for UnmarshalText/Scan.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// New generates a new globally unique ID with the given prefix.
// It panics if prefix is not a valid TypeID prefix (programming error).
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}

	return ID{inner: tid, valid: true}
}

// Derive returns a deterministic ID for the given prefix and key parts.
// Parts are sorted first, so the order callers list them in does not matter.
func Derive(prefix Prefix, parts ...string) ID {
	sorted := append([]string(nil), parts...)
	sort.Strings(sorted)

	u := uuid.NewSHA1(matchNamespace, []byte(string(prefix)+"\x00"+strings.Join(sorted, "\x00")))

	tid, err := typeid.FromUUID(string(prefix), u.String())
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}

	return ID{inner: tid, valid: true}
}

// Parse parses a TypeID string (e.g., "match_01h2xcejqtf2nbrexx3vqjhp41")
// into an ID. Returns an error if the string is not valid.
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}

	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}

	return ID{inner: tid, valid: true}, nil
}

// ParseWithPrefix parses a TypeID string and validates that its prefix
// matches the expected value.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}

	if parsed.Prefix() != expected {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", expected, parsed.Prefix())
	}

	return parsed, nil
}

// MustParse is like Parse but panics on error. Use for hardcoded ID values.
func MustParse(s string) ID {
	parsed, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("id: must parse %q: %v", s, err))
	}

	return parsed
}

// MatchID identifies a reconciliation suggestion (prefix: "match").
type MatchID = ID

// LettrageCode identifies an approved settlement group (prefix: "let").
type LettrageCode = ID

// RunID identifies one matching run (prefix: "run").
type RunID = ID

// EntryID identifies a journal entry (prefix: "entry").
type EntryID = ID

// NewMatchID derives the match ID for a set of member line IDs.
func NewMatchID(lineIDs ...string) ID { return Derive(PrefixMatch, lineIDs...) }

// NewLettrageCode generates a fresh settlement group code.
func NewLettrageCode() ID { return New(PrefixLettrage) }

// NewRunID generates a new unique run ID.
func NewRunID() ID { return New(PrefixRun) }

// NewEntryID generates a new unique journal entry ID.
func NewEntryID() ID { return New(PrefixEntry) }

// ParseMatchID parses a string and validates the "match" prefix.
func ParseMatchID(s string) (ID, error) { return ParseWithPrefix(s, PrefixMatch) }

// ParseLettrageCode parses a string and validates the "let" prefix.
func ParseLettrageCode(s string) (ID, error) { return ParseWithPrefix(s, PrefixLettrage) }

// ParseRunID parses a string and validates the "run" prefix.
func ParseRunID(s string) (ID, error) { return ParseWithPrefix(s, PrefixRun) }

// ParseEntryID parses a string and validates the "entry" prefix.
func ParseEntryID(s string) (ID, error) { return ParseWithPrefix(s, PrefixEntry) }

// String returns the full TypeID string representation (prefix_suffix).
// Returns an empty string for the Nil ID.
func (i ID) String() string {
	if !i.valid {
		return ""
	}

	return i.inner.String()
}

// Prefix returns the prefix component of this ID.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}

	return Prefix(i.inner.Prefix())
}

// IsNil reports whether this ID is the zero value.
func (i ID) IsNil() bool {
	return !i.valid
}

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	if !i.valid {
		return []byte{}, nil
	}

	return []byte(i.inner.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil

		return nil
	}

	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}

	*i = parsed

	return nil
}

// Value implements driver.Valuer for database storage.
func (i ID) Value() (driver.Value, error) {
	if !i.valid {
		return nil, nil //nolint:nilnil // nil is the canonical NULL for driver.Valuer
	}

	return i.inner.String(), nil
}

// Scan implements sql.Scanner for database retrieval.
func (i *ID) Scan(src any) error {
	if src == nil {
		*i = Nil

		return nil
	}

	switch v := src.(type) {
	case string:
		if v == "" {
			*i = Nil

			return nil
		}

		return i.UnmarshalText([]byte(v))
	case []byte:
		if len(v) == 0 {
			*i = Nil

			return nil
		}

		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T into ID", src)
	}
}
