package domain

import "fmt"

// FieldKind is the declared signature category of a field.
type FieldKind int

const (
	KindUnknown FieldKind = iota
	KindString
	KindMultiString
	KindInteger
	KindBoolean
	KindDate
	KindReferenceAtomic
	KindOwningAtomic
	KindReferenceCollection
	KindOwningCollection
	KindReferenceSequence
	KindOwningSequence
)

var kindNames = map[FieldKind]string{
	KindString:              "string",
	KindMultiString:         "multistring",
	KindInteger:             "integer",
	KindBoolean:             "boolean",
	KindDate:                "date",
	KindReferenceAtomic:     "reference",
	KindOwningAtomic:        "owning",
	KindReferenceCollection: "reference-collection",
	KindOwningCollection:    "owning-collection",
	KindReferenceSequence:   "reference-sequence",
	KindOwningSequence:      "owning-sequence",
}

func (k FieldKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseFieldKind converts a declared kind name ("owning-sequence") into a FieldKind.
func ParseFieldKind(name string) (FieldKind, error) {
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return KindUnknown, fmt.Errorf("unknown field kind %q", name)
}

// IsValue reports whether the field holds a plain value rather than object references.
func (k FieldKind) IsValue() bool {
	return k >= KindString && k <= KindDate
}

// IsAtomic reports whether the field holds at most one object.
func (k FieldKind) IsAtomic() bool {
	return k == KindReferenceAtomic || k == KindOwningAtomic
}

// IsVector reports whether the field holds a collection or a sequence of objects.
func (k FieldKind) IsVector() bool {
	return k >= KindReferenceCollection && k <= KindOwningSequence
}

// IsSequence reports whether the vector is ordered.
func (k FieldKind) IsSequence() bool {
	return k == KindReferenceSequence || k == KindOwningSequence
}

// IsOwning reports whether the field owns its target objects.
func (k FieldKind) IsOwning() bool {
	return k == KindOwningAtomic || k == KindOwningCollection || k == KindOwningSequence
}

// FieldDef declares one field of a class.
type FieldDef struct {
	Name string
	Kind FieldKind
	// Target is the signature class of object fields.
	Target ClassID
	// Owner is the class that declares the field.
	Owner ClassID
	// Custom marks fields declared at runtime rather than in the model.
	Custom bool
	Label  string
}

// ClassDef declares an entity class.
type ClassDef struct {
	Name     ClassID
	Super    ClassID
	Abstract bool
	Fields   []FieldDef
}
