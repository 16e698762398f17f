package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathKey_AppendIsImmutable(t *testing.T) {
	root := RootKey(7)
	a := root.Append(NodeElem("senses"))
	b := root.Append(NodeElem("gloss"))

	assert.Equal(t, "e:7", root.String())
	assert.Equal(t, "e:7|n:senses", a.String())
	assert.Equal(t, "e:7|n:gloss", b.String())
	assert.Equal(t, 1, root.Len())
}

func TestPathKey_EqualByValue(t *testing.T) {
	a := RootKey(1).Append(NodeElem("x"), EntityElem(2), NodeElem("y"))
	b := RootKey(1).Append(NodeElem("x")).Append(EntityElem(2)).Append(NodeElem("y"))
	c := RootKey(1).Append(NodeElem("x"), EntityElem(3), NodeElem("y"))

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.True(t, PathKey{}.IsZero())
}

func TestPathKey_NodeAndEntityStepsDoNotCollide(t *testing.T) {
	n := RootKey(1).Append(NodeElem("5"))
	e := RootKey(1).Append(EntityElem(5))
	assert.False(t, n.Equal(e))
}

func TestPathKey_PrefixOperations(t *testing.T) {
	base := RootKey(1).Append(NodeElem("senses"), EntityElem(10))
	child := base.Append(NodeElem("gloss"))
	other := RootKey(1).Append(NodeElem("senses"), EntityElem(11), NodeElem("gloss"))

	assert.True(t, child.HasPrefix(base))
	assert.False(t, base.HasPrefix(child))
	assert.Equal(t, 2, child.CommonPrefixLen(other))
	assert.True(t, child.Parent().Equal(base))
	assert.Equal(t, []EntityID{1, 10}, child.Entities())
	assert.Equal(t, "gloss", child.Last().Node())
	assert.True(t, RootKey(1).Parent().IsZero())
	assert.True(t, child.Prefix(3).Equal(base))
	assert.True(t, child.Prefix(9).Equal(child))
	assert.True(t, child.Prefix(0).IsZero())
}

func TestParsePathKey_RoundTrip(t *testing.T) {
	k := RootKey(42).Append(NodeElem("LexEntry.detail.default#0"), EntityElem(9))

	text, err := k.MarshalText()
	require.NoError(t, err)

	var back PathKey
	require.NoError(t, back.UnmarshalText(text))
	assert.True(t, k.Equal(back))
	assert.Equal(t, EntityID(9), back.Last().Entity())

	_, err = ParsePathKey("nonsense")
	assert.Error(t, err)
	_, err = ParsePathKey("x:1")
	assert.Error(t, err)

	empty, err := ParsePathKey("")
	require.NoError(t, err)
	assert.True(t, empty.IsZero())
}
