package querycache

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Key identifies a cache entry: an operation tag plus ordered parameters,
// canonicalised as a JSON array. Keys are comparable.
type Key struct {
	op string
	id string
}

// NewKey builds the key for op with params. Identical parameters always
// produce the same key. Parameters must be JSON-encodable; NewKey panics
// otherwise since keys are built from plain values.
func NewKey(op string, params ...any) Key {
	parts := make([]any, 0, len(params)+1)
	parts = append(parts, op)
	parts = append(parts, params...)

	b, err := json.Marshal(parts)
	if err != nil {
		panic(fmt.Sprintf("querycache: key %q has unencodable params: %v", op, err))
	}
	return Key{op: op, id: string(b)}
}

// Op returns the operation tag.
func (k Key) Op() string { return k.op }

func (k Key) String() string { return k.id }

// IsZero reports whether k was never built with NewKey.
func (k Key) IsZero() bool { return k.id == "" }

// Matches reports whether k selects other: same operation and k's parameters
// are a leading prefix of other's. NewKey("applications") therefore matches
// NewKey("applications", 3).
func (k Key) Matches(other Key) bool {
	if k.op != other.op {
		return false
	}
	if k.id == other.id {
		return true
	}
	prefix := strings.TrimSuffix(k.id, "]") + ","
	return strings.HasPrefix(other.id, prefix)
}
