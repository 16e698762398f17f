package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// EntityID identifies a domain entity. The zero value means "no entity".
type EntityID int64

// NoEntity is the empty reference.
const NoEntity EntityID = 0

// IsZero reports whether the id is the empty reference.
func (id EntityID) IsZero() bool { return id == NoEntity }

func (id EntityID) String() string { return strconv.FormatInt(int64(id), 10) }

// ClassID names an entity class (e.g. "LexEntry").
type ClassID string

// BaseClass is the universal base class every class eventually inherits from.
const BaseClass ClassID = "CmObject"

// ToEntityID normalizes the many ways an id shows up once it has crossed a boundary
// (JSON numbers, YAML ints, strings from a URL) into an EntityID.
func ToEntityID(v any) (EntityID, error) {
	switch id := v.(type) {
	case EntityID:
		return id, nil
	case int:
		return EntityID(id), nil
	case int32:
		return EntityID(id), nil
	case int64:
		return EntityID(id), nil
	case uint32:
		return EntityID(id), nil
	case uint64:
		if id > math.MaxInt64 {
			return NoEntity, fmt.Errorf("entity id %d overflows", id)
		}
		return EntityID(id), nil
	case float64:
		if id != math.Trunc(id) {
			return NoEntity, fmt.Errorf("entity id %v is not a whole number", id)
		}
		return EntityID(int64(id)), nil
	case json.Number:
		n, err := id.Int64()
		if err != nil {
			return NoEntity, fmt.Errorf("invalid entity id %q: %w", id, err)
		}
		return EntityID(n), nil
	case string:
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return NoEntity, fmt.Errorf("invalid entity id %q: %w", id, err)
		}
		return EntityID(n), nil
	default:
		return NoEntity, fmt.Errorf("unsupported entity id type %T", v)
	}
}
