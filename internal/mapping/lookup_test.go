package mapping

import (
	"context"
	"testing"

	"github.com/goran-ethernal/ChainProcessor/pkg/config"
	"github.com/goran-ethernal/ChainProcessor/pkg/mapping"
	"github.com/goran-ethernal/ChainProcessor/pkg/source"
	"github.com/stretchr/testify/require"
)

func noop(context.Context, *mapping.Context) error { return nil }

func TestLookup_Load(t *testing.T) {
	handlers := mapping.Handlers{
		"balances.handleTransfer":   noop,
		"balances.handleSetBalance": noop,
		"balances.recordBlock":      noop,
	}

	t.Run("resolves everything", func(t *testing.T) {
		l := NewLookup(config.MappingConfig{
			EventHandlers:     map[string]string{"balances.Transfer": "balances.handleTransfer"},
			ExtrinsicHandlers: map[string]string{"balances.setBalance": "balances.handleSetBalance"},
			PostBlockHooks:    []string{"balances.recordBlock"},
		}, handlers)
		require.NoError(t, l.Load())

		_, ok := l.EventHandler("balances.Transfer")
		require.True(t, ok)
		_, ok = l.EventHandler("balances.Deposit")
		require.False(t, ok)
		_, ok = l.ExtrinsicHandler("balances.setBalance")
		require.True(t, ok)
		require.Len(t, l.PostBlockHooks(), 1)
		require.Empty(t, l.PreBlockHooks())
		require.True(t, l.HasHooks())
		require.Equal(t, source.Filter{
			Events:     []string{"balances.Transfer"},
			Extrinsics: []string{"balances.setBalance"},
		}, l.Filter())
	})

	t.Run("reports all missing references", func(t *testing.T) {
		l := NewLookup(config.MappingConfig{
			EventHandlers:  map[string]string{"balances.Transfer": "balances.missingA"},
			PreBlockHooks:  []string{"balances.missingB"},
			PostBlockHooks: []string{"balances.recordBlock"},
		}, handlers)

		err := l.Load()
		require.ErrorIs(t, err, mapping.ErrUnresolvedHandler)
		require.ErrorContains(t, err, "balances.missingA")
		require.ErrorContains(t, err, "balances.missingB")
	})
}

func TestLookup_HandlersFor(t *testing.T) {
	l := NewLookup(config.MappingConfig{
		EventHandlers:     map[string]string{"balances.Transfer": "a", source.ExtrinsicSuccessEvent: "b"},
		ExtrinsicHandlers: map[string]string{"balances.setBalance": "c"},
	}, mapping.Handlers{"a": noop, "b": noop, "c": noop})
	require.NoError(t, l.Load())

	require.Len(t, l.HandlersFor(source.EventContext{Event: source.Event{Name: "balances.Transfer"}}), 1)
	require.Empty(t, l.HandlersFor(source.EventContext{Event: source.Event{Name: "balances.Endowed"}}))

	success := source.EventContext{
		Event:     source.Event{Name: source.ExtrinsicSuccessEvent},
		Extrinsic: &source.Extrinsic{Name: "balances.setBalance"},
	}
	require.Len(t, l.HandlersFor(success), 2)

	success.Extrinsic.Name = "system.remark"
	require.Len(t, l.HandlersFor(success), 1)
	require.False(t, l.HasHooks())
}
