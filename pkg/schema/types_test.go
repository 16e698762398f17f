package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinTypes(t *testing.T) {
	tests := []struct {
		typ     Type
		value   any
		wantErr bool
	}{
		{String(), "run", false},
		{String(), 42, true},
		{Int(), int64(2), false},
		{Int(), float64(2), false},
		{Int(), 2.5, true},
		{Int(), "2", true},
		{Float(), 2, false},
		{Float(), "2.0", true},
		{Bool(), true, false},
		{Bool(), "true", true},
		{Date(), time.Now(), false},
		{Date(), "2024-03-01", false},
		{Date(), "2024-03-01T10:00:00Z", false},
		{Date(), "first of march", true},
		{Date(), 20240301, true},
		{Regex(), "^[a-z]+$", false},
		{Regex(), "([a-z", true},
		{Regex(), 1, true},
		{Slice(String()), []string{"a", "b"}, false},
		{Slice(String()), []any{"a", 1}, true},
		{Slice(Int()), "not a slice", true},
	}

	for _, tt := range tests {
		err := tt.typ.Validate(tt.value)
		assert.Equal(t, tt.wantErr, err != nil, "%s.Validate(%#v): %v", tt.typ.Name(), tt.value, err)
	}
}

func TestPattern(t *testing.T) {
	typ, err := Pattern("^[a-z]+$")
	require.NoError(t, err)
	assert.Equal(t, "pattern:^[a-z]+$", typ.Name())
	assert.NoError(t, typ.Validate("run"))
	assert.Error(t, typ.Validate("Run!"))

	_, err = Pattern("(")
	assert.Error(t, err)
}

func TestCustomType(t *testing.T) {
	nonEmpty := Custom("nonempty", func(v any) error {
		if s, _ := v.(string); s == "" {
			return &ValidationError{Key: "value", Reason: "empty"}
		}
		return nil
	})
	assert.Equal(t, "nonempty", nonEmpty.Name())
	assert.NoError(t, nonEmpty.Validate("x"))
	assert.Error(t, nonEmpty.Validate(""))
}

func TestParseType(t *testing.T) {
	for _, name := range []string{"string", "int", "float", "bool", "date", "regex", "[string]", "[[int]]"} {
		typ, err := ParseType(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, typ.Name())
	}

	typ, err := ParseType("pattern:^a|b$")
	require.NoError(t, err)
	assert.NoError(t, typ.Validate("a"))

	for _, bad := range []string{"", "uuid", "[uuid]", "pattern:("} {
		_, err := ParseType(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseTypeMap(t *testing.T) {
	s, err := ParseTypeMap(map[string]string{"CitationForm": "string", "Homograph": "int"})
	require.NoError(t, err)
	assert.Len(t, s, 2)

	_, err = ParseTypeMap(map[string]string{"Gloss": "text"})
	assert.ErrorContains(t, err, "Gloss")
}
