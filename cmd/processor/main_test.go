package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/goran-ethernal/ChainProcessor/internal/logger"
	"github.com/goran-ethernal/ChainProcessor/pkg/config"
	"github.com/stretchr/testify/require"
)

func TestPrintList(t *testing.T) {
	var buf bytes.Buffer
	printList(&buf, "Things:", []string{"a", "b"})
	printList(&buf, "Nothing:", nil)

	require.Equal(t, "Things:\n  - a\n  - b\nNothing:\n  (none)\n", buf.String())
}

func TestListCommand(t *testing.T) {
	var buf bytes.Buffer
	listCmd.SetOut(&buf)
	listCmd.Run(listCmd, nil)

	out := buf.String()
	require.Contains(t, out, "balances.handleTransfer")
	require.Contains(t, out, "balances.recordBlock")
	require.Contains(t, out, "BlockSummary")
}

func TestSchemaCommand(t *testing.T) {
	var buf bytes.Buffer
	schemaCmd.SetOut(&buf)
	require.NoError(t, schemaCmd.RunE(schemaCmd, nil))
	require.Contains(t, buf.String(), "indexer_endpoint")
}

func TestLoadEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("CHAINPROCESSOR_TEST_ENDPOINT=ws://kusama:4000\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("CHAINPROCESSOR_TEST_ENDPOINT") })

	require.NoError(t, loadEnv(path))
	require.Equal(t, "ws://kusama:4000", os.Getenv("CHAINPROCESSOR_TEST_ENDPOINT"))

	require.Error(t, loadEnv(filepath.Join(t.TempDir(), "missing.env")))
}

func TestNewSinks_NotConfigured(t *testing.T) {
	observers, closeAll, err := newSinks(nil, logger.NewNopLogger())
	require.NoError(t, err)
	require.Empty(t, observers)
	closeAll()

	observers, closeAll, err = newSinks(&config.NotificationsConfig{}, logger.NewNopLogger())
	require.NoError(t, err)
	require.Empty(t, observers)
	closeAll()
}
