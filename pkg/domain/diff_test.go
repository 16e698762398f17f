package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiffRows(t *testing.T) {
	k := func(n string) PathKey { return RootKey(1).Append(NodeElem(n)) }
	oldRows := []*Row{{Key: k("a")}, {Key: k("b")}, {Variant: VariantDummy}}
	newRows := []*Row{{Key: k("b")}, {Key: k("c")}}

	d := DiffRows(oldRows, newRows)

	assert.Equal(t, 1, d.Kept)
	assert.Equal(t, []string{"e:1|n:c"}, d.Added)
	assert.Equal(t, []string{"e:1|n:a", ""}, d.Removed)
	assert.False(t, d.Empty())
	assert.True(t, DiffRows(newRows, newRows).Empty())
}

func TestSubtreeEnd(t *testing.T) {
	rows := []*Row{{Indent: 0}, {Indent: 1}, {Indent: 2}, {Indent: 1}, {Indent: 0}}
	assert.Equal(t, 4, SubtreeEnd(rows, 0))
	assert.Equal(t, 3, SubtreeEnd(rows, 1))
	assert.Equal(t, 5, SubtreeEnd(rows, 4))
}

func TestToEntityID(t *testing.T) {
	for _, v := range []any{EntityID(3), 3, int64(3), float64(3), "3"} {
		id, err := ToEntityID(v)
		assert.NoError(t, err)
		assert.Equal(t, EntityID(3), id)
	}
	_, err := ToEntityID(3.5)
	assert.Error(t, err)
	_, err = ToEntityID(true)
	assert.Error(t, err)
}
