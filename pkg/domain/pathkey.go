package domain

import (
	"fmt"
	"strings"
)

const keySeparator = "|"

type elemKind uint8

const (
	elemNode elemKind = iota + 1
	elemEntity
)

// PathElem is one step of a PathKey: either a template node identity or an entity id.
type PathElem struct {
	kind elemKind
	node string
	id   EntityID
}

// NodeElem is the path step for a template node.
func NodeElem(key string) PathElem { return PathElem{kind: elemNode, node: key} }

// EntityElem is the path step for an entity.
func EntityElem(id EntityID) PathElem { return PathElem{kind: elemEntity, id: id} }

// IsEntity reports whether the step is an entity id.
func (e PathElem) IsEntity() bool { return e.kind == elemEntity }

// Entity returns the entity id of an entity step.
func (e PathElem) Entity() EntityID { return e.id }

// Node returns the template node key of a node step.
func (e PathElem) Node() string { return e.node }

func (e PathElem) String() string {
	switch e.kind {
	case elemNode:
		return "n:" + e.node
	case elemEntity:
		return "e:" + e.id.String()
	default:
		return "?"
	}
}

// PathKey is the identity of a row: the ordered template nodes and entity ids on the
// way from the root to the row. It is immutable; Append returns a new key.
//
// Two rows share a PathKey iff they show the same field of the same object reached
// through the same template path.
type PathKey struct {
	elems []PathElem
	str   string
}

// RootKey starts a path at the root entity.
func RootKey(root EntityID) PathKey {
	return newPathKey([]PathElem{EntityElem(root)})
}

func newPathKey(elems []PathElem) PathKey {
	parts := make([]string, len(elems))
	for i, e := range elems {
		parts[i] = e.String()
	}
	return PathKey{elems: elems, str: strings.Join(parts, keySeparator)}
}

// Append returns a new key extended with the given steps.
func (k PathKey) Append(elems ...PathElem) PathKey {
	next := make([]PathElem, 0, len(k.elems)+len(elems))
	next = append(next, k.elems...)
	next = append(next, elems...)
	return newPathKey(next)
}

// Parent returns the key without its last step.
func (k PathKey) Parent() PathKey {
	if len(k.elems) <= 1 {
		return PathKey{}
	}
	return newPathKey(append([]PathElem(nil), k.elems[:len(k.elems)-1]...))
}

// Prefix returns the first n steps of k.
func (k PathKey) Prefix(n int) PathKey {
	if n <= 0 {
		return PathKey{}
	}
	if n >= len(k.elems) {
		return k
	}
	return newPathKey(append([]PathElem(nil), k.elems[:n]...))
}

// IsZero reports whether the key is empty (rows without identity).
func (k PathKey) IsZero() bool { return len(k.elems) == 0 }

// Len returns the number of steps.
func (k PathKey) Len() int { return len(k.elems) }

// At returns step i.
func (k PathKey) At(i int) PathElem { return k.elems[i] }

// Last returns the final step.
func (k PathKey) Last() PathElem {
	if len(k.elems) == 0 {
		return PathElem{}
	}
	return k.elems[len(k.elems)-1]
}

// Equal compares keys by value.
func (k PathKey) Equal(o PathKey) bool { return k.str == o.str }

// String is the canonical encoding of the key; it doubles as its hash key.
func (k PathKey) String() string { return k.str }

// HasPrefix reports whether p is a leading part of k.
func (k PathKey) HasPrefix(p PathKey) bool {
	if len(p.elems) > len(k.elems) {
		return false
	}
	for i, e := range p.elems {
		if k.elems[i] != e {
			return false
		}
	}
	return true
}

// CommonPrefixLen returns the number of leading steps k and o share.
func (k PathKey) CommonPrefixLen(o PathKey) int {
	n := 0
	for n < len(k.elems) && n < len(o.elems) && k.elems[n] == o.elems[n] {
		n++
	}
	return n
}

// Entities returns the entity id path embedded in the key.
func (k PathKey) Entities() []EntityID {
	var ids []EntityID
	for _, e := range k.elems {
		if e.kind == elemEntity {
			ids = append(ids, e.id)
		}
	}
	return ids
}

// MarshalText encodes the key in its canonical form.
func (k PathKey) MarshalText() ([]byte, error) { return []byte(k.str), nil }

// UnmarshalText decodes a key produced by MarshalText.
func (k *PathKey) UnmarshalText(b []byte) error {
	parsed, err := ParsePathKey(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParsePathKey decodes the canonical form of a key.
func ParsePathKey(s string) (PathKey, error) {
	if s == "" {
		return PathKey{}, nil
	}
	parts := strings.Split(s, keySeparator)
	elems := make([]PathElem, 0, len(parts))
	for _, p := range parts {
		tag, val, ok := strings.Cut(p, ":")
		if !ok {
			return PathKey{}, fmt.Errorf("invalid path step %q", p)
		}
		switch tag {
		case "n":
			elems = append(elems, NodeElem(val))
		case "e":
			id, err := ToEntityID(val)
			if err != nil {
				return PathKey{}, err
			}
			elems = append(elems, EntityElem(id))
		default:
			return PathKey{}, fmt.Errorf("invalid path step tag %q", tag)
		}
	}
	return newPathKey(elems), nil
}
