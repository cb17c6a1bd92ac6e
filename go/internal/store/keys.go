package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mcdev12/dinnerpick/go/internal/models"
)

// ErrMalformedKey is returned by ParseSessionKey for a session key whose
// code part is not a valid session code.
var ErrMalformedKey = errors.New("store: malformed session key")

// Keyspace builds the key names for every record belonging to a session.
// All keys of one session share the "<prefix>session:<code>" stem, except
// participant records which are addressed by connection id so a
// disconnecting socket can be resolved without knowing its session.
type Keyspace struct {
	prefix string
}

// NewKeyspace creates a Keyspace with the given prefix, e.g. "dinner:".
func NewKeyspace(prefix string) Keyspace {
	return Keyspace{prefix: prefix}
}

// Prefix returns the key prefix.
func (k Keyspace) Prefix() string { return k.prefix }

func (k Keyspace) Session(code string) string {
	return fmt.Sprintf("%ssession:%s", k.prefix, code)
}

func (k Keyspace) Participants(code string) string {
	return k.Session(code) + ":participants"
}

func (k Keyspace) Presence(code string) string {
	return k.Session(code) + ":online"
}

func (k Keyspace) Selection(code, participantID string) string {
	return k.Session(code) + ":selections:" + participantID
}

func (k Keyspace) Result(code string) string {
	return k.Session(code) + ":result"
}

func (k Keyspace) Catalog(code string) string {
	return k.Session(code) + ":catalog"
}

func (k Keyspace) Participant(participantID string) string {
	return fmt.Sprintf("%sparticipant:%s", k.prefix, participantID)
}

// ParseSessionKey extracts the session code from a session record key.
// ok is false for keys that are not session record keys (other prefixes
// or per-session sub-keys); err is set when the key looks like a session
// key but carries an invalid code.
func (k Keyspace) ParseSessionKey(key string) (code string, ok bool, err error) {
	stem := k.prefix + "session:"
	if !strings.HasPrefix(key, stem) {
		return "", false, nil
	}
	rest := strings.TrimPrefix(key, stem)
	if strings.Contains(rest, ":") {
		return "", false, nil
	}
	if !models.IsValidSessionCode(rest) {
		return "", false, fmt.Errorf("%w: %q", ErrMalformedKey, key)
	}
	return rest, true, nil
}
