package mapping

import (
	"context"
	"testing"

	"github.com/goran-ethernal/ChainProcessor/internal/db"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	called := false
	Register("Test.HandleThing", func(context.Context, *Context) error {
		called = true
		return nil
	})

	h, ok := Resolve("test.handlething")
	require.True(t, ok)
	require.NoError(t, h(context.Background(), &Context{}))
	require.True(t, called)

	h, ok = DefaultResolver.Resolve("TEST.HANDLETHING")
	require.True(t, ok)
	require.NotNil(t, h)

	_, ok = Resolve("test.unknown")
	require.False(t, ok)

	require.Contains(t, ListRegistered(), "test.handlething")
}

func TestRegisterMigrations(t *testing.T) {
	RegisterMigrations("zz_test", db.Migration{ID: "001.sql", SQL: "-- +migrate Up"})

	migs := RegisteredMigrations()
	require.NotEmpty(t, migs)
	last := migs[len(migs)-1]
	require.Equal(t, "zz_test_", last.Prefix)
	require.Equal(t, "001.sql", last.ID)
}

func TestHandlers(t *testing.T) {
	h := Handlers{"exact": func(context.Context, *Context) error { return nil }}

	_, ok := h.Resolve("exact")
	require.True(t, ok)
	_, ok = h.Resolve("missing")
	require.False(t, ok)
}
