package registry

import (
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/detailtree/pkg/domain"
)

// Built-in editor kinds.
const (
	EditorString      = "string"
	EditorMultiString = "multistring"
	EditorInteger     = "integer"
	EditorBoolean     = "boolean"
	EditorDate        = "date"
	EditorReference   = "reference"
	EditorSummary     = "summary"
	EditorGhost       = "ghost"
	EditorError       = "error"
)

// TextControl is a headless control that renders its value as text.
// It is what the built-in editor kinds create.
type TextControl struct {
	kind     string
	value    any
	focused  bool
	disposed bool
}

// NewTextControl creates a text control for an editor kind.
func NewTextControl(kind string) *TextControl {
	return &TextControl{kind: kind}
}

// Kind returns the editor kind the control was created for.
func (c *TextControl) Kind() string { return c.kind }

// PreferredHeight is the number of text lines the value needs.
func (c *TextControl) PreferredHeight() int {
	return strings.Count(c.Text(), "\n") + 1
}

func (c *TextControl) Focused() bool { return c.focused }

// Focus sets the focus state.
func (c *TextControl) Focus(on bool) { c.focused = on }

func (c *TextControl) SetValue(v any) { c.value = v }

// Value returns the last value set.
func (c *TextControl) Value() any { return c.value }

func (c *TextControl) Dispose() { c.disposed = true }

// Disposed reports whether Dispose was called.
func (c *TextControl) Disposed() bool { return c.disposed }

// Text formats the value for display.
func (c *TextControl) Text() string {
	switch v := c.value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		if v {
			return "yes"
		}
		return "no"
	case time.Time:
		if v.IsZero() {
			return ""
		}
		return v.Format("2006-01-02")
	case domain.EntityID:
		if v.IsZero() {
			return ""
		}
		return "#" + v.String()
	case []domain.EntityID:
		parts := make([]string, len(v))
		for i, id := range v {
			parts[i] = "#" + id.String()
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(v)
	}
}

func textFactory(kind string) EditorFactory {
	return func(row *domain.Row) (domain.Control, error) {
		c := NewTextControl(kind)
		c.SetValue(row.Value)
		return c, nil
	}
}

// DefaultEditors returns a registry holding every built-in editor kind.
func DefaultEditors() *Editors {
	r := NewEditors()
	for _, kind := range []string{
		EditorString, EditorMultiString, EditorInteger, EditorBoolean, EditorDate,
		EditorReference, EditorSummary, EditorGhost, EditorError,
	} {
		r.Register(kind, textFactory(kind))
	}
	return r
}

// DefaultEditorKind returns the built-in editor kind for a field signature.
func DefaultEditorKind(kind domain.FieldKind) string {
	switch kind {
	case domain.KindString:
		return EditorString
	case domain.KindMultiString:
		return EditorMultiString
	case domain.KindInteger:
		return EditorInteger
	case domain.KindBoolean:
		return EditorBoolean
	case domain.KindDate:
		return EditorDate
	case domain.KindReferenceAtomic, domain.KindReferenceCollection, domain.KindReferenceSequence:
		return EditorReference
	default:
		return EditorSummary
	}
}
