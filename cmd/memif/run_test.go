package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Santiael/wasm-memory-interface/config"
	"github.com/Santiael/wasm-memory-interface/host"
)

func TestRunLocal(t *testing.T) {
	cfg := config.Default()
	cfg.Guest.Local = true
	cfg.Log.Level = "error"
	require.NoError(t, cfg.Validate())

	var stdout, stderr bytes.Buffer
	require.NoError(t, run(context.Background(), cfg, &stdout, &stderr))

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	// three allocations, 3 dumps (8 + 1 + 17 bytes plus headers), number,
	// greeting, three frees
	require.Len(t, lines, 3+(9+2+18)+1+1+3)

	assert.Contains(t, lines[0], "[host] {1.7976931348623157e+308} allocated on 0x")
	assert.Contains(t, lines[1], "[host] {true} allocated on 0x")
	assert.True(t, strings.HasPrefix(lines[3], "[wasm] reading from 0x"))
	assert.Equal(t, "[wasm] 255", lines[4], "low byte of MaxFloat64")
	assert.Contains(t, stdout.String(), "[host] reading number from wasm memory: 1.7976931348623157e+308")
	assert.Contains(t, stdout.String(), "[host] greeting from wasm memory: Hello World! 🌎")
	assert.Contains(t, lines[len(lines)-1], "deallocation of 0x")
	assert.Empty(t, stderr.String())
}

func TestRunMissingGuest(t *testing.T) {
	cfg := config.Default()
	cfg.Guest.Path = "does-not-exist.wasm"

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), cfg, &stdout, &stderr)
	assert.ErrorContains(t, err, "failed to read guest")
}

func TestRunTrapIsReported(t *testing.T) {
	cfg := config.Default()
	cfg.Guest.Local = true
	cfg.Guest.LocalMemory = 65536
	cfg.Demo.Text = strings.Repeat("x", 2*65536)
	cfg.Log.Level = "error"

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), cfg, &stdout, &stderr)
	assert.ErrorIs(t, err, host.ErrTrapped)
}

func TestRunCommandConfig(t *testing.T) {
	cmd := &runCommand{local: true, logLevel: "debug"}
	cfg, err := cmd.config()
	require.NoError(t, err)
	assert.True(t, cfg.Guest.Local)
	assert.Equal(t, "debug", cfg.Log.Level)

	cmd = &runCommand{}
	_, err = cmd.config()
	assert.Error(t, err)
}

func TestRunCommandConfigFileWithFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memif.toml")
	require.NoError(t, os.WriteFile(path, []byte("[demo]\nboolean = false\n"), 0o600))

	cmd := &runCommand{configPath: path, local: true}
	cfg, err := cmd.config()
	require.NoError(t, err)
	assert.False(t, cfg.Demo.Boolean)
	assert.True(t, cfg.Guest.Local)
}
