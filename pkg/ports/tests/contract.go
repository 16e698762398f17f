package tests

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/detailtree/pkg/domain"
	"github.com/aretw0/detailtree/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// LayoutRef names a layout a TemplateSource under test is expected to hold.
type LayoutRef struct {
	Class domain.ClassID
	Type  string
	Name  string
}

// TemplateSourceContractTest is a reusable test suite that verifies if an adapter complies
// with ports.TemplateSource. The source must hold every layout and part listed.
func TemplateSourceContractTest(t *testing.T, src ports.TemplateSource, layouts []LayoutRef, parts []string) {
	t.Helper()

	t.Run("LookupLayout_Success", func(t *testing.T) {
		for _, l := range layouts {
			node, err := src.LookupLayout(l.Class, l.Type, l.Name)
			require.NoError(t, err, "layout %s", domain.LayoutKey(l.Class, l.Type, l.Name))
			require.NotNil(t, node)
			assert.NotEmpty(t, node.Key, "canonical nodes carry keys")
		}
	})

	t.Run("LookupLayout_NotFound", func(t *testing.T) {
		_, err := src.LookupLayout("NoSuchClass", "detail", "default")
		assert.ErrorIs(t, err, domain.ErrLayoutNotFound)
	})

	t.Run("LookupLayout_ReturnsStableNodes", func(t *testing.T) {
		for _, l := range layouts {
			a, err := src.LookupLayout(l.Class, l.Type, l.Name)
			require.NoError(t, err)
			b, err := src.LookupLayout(l.Class, l.Type, l.Name)
			require.NoError(t, err)
			assert.Equal(t, a.Key, b.Key)
			assert.Equal(t, len(a.Children), len(b.Children))
		}
	})

	t.Run("LookupPart_Success", func(t *testing.T) {
		for _, key := range parts {
			node, err := src.LookupPart(key)
			require.NoError(t, err, "part %s", key)
			require.NotNil(t, node)
		}
	})

	t.Run("LookupPart_NotFound", func(t *testing.T) {
		_, err := src.LookupPart("Nothing-Detail-Here")
		assert.ErrorIs(t, err, domain.ErrPartNotFound)
	})

	t.Run("Unify_KeepsBase", func(t *testing.T) {
		base := &domain.TemplateNode{Key: "base", Kind: domain.NodeField, Field: "f", Label: "A"}
		out := src.Unify(base, &domain.TemplateNode{Kind: domain.NodePart, Label: "B"})
		require.NotNil(t, out)
		assert.Equal(t, "B", out.Label)
		assert.Equal(t, "A", base.Label, "Unify must not modify its inputs")
	})
}

// RunPrefsStoreContract runs a suite of tests to verify that a PrefsStore implementation
// adheres to the defined interface contract.
func RunPrefsStoreContract(t *testing.T, store ports.PrefsStore) {
	ctx := context.Background()
	view := "contract-view-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		want := domain.Prefs{ShowHiddenLevel: 1, LabelWidth: 24}
		require.NoError(t, store.Save(ctx, view, want))

		got, err := store.Load(ctx, view)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+view)
		assert.ErrorIs(t, err, domain.ErrPrefsNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, view, domain.Prefs{LabelWidth: 10}))
		require.NoError(t, store.Delete(ctx, view))

		_, err := store.Load(ctx, view)
		assert.ErrorIs(t, err, domain.ErrPrefsNotFound, "Load after Delete should return ErrPrefsNotFound")
	})
}

// RunLockerContract verifies mutual exclusion of a DistributedLocker.
func RunLockerContract(t *testing.T, locker ports.DistributedLocker) {
	ctx := context.Background()
	key := "contract-lock-" + time.Now().Format("150405.000")

	unlock, err := locker.Lock(ctx, key, time.Second)
	require.NoError(t, err)

	shortCtx, cancel := context.WithTimeout(ctx, 150*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(shortCtx, key, time.Second)
	assert.Error(t, err, "second Lock on a held key must not succeed")

	require.NoError(t, unlock(ctx))

	unlock2, err := locker.Lock(ctx, key, time.Second)
	require.NoError(t, err, "Lock after unlock must succeed")
	require.NoError(t, unlock2(ctx))
}
