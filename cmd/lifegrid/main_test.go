package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/go-lifegrid/internal/config"
	"github.com/zalando/go-keyring"
)

// run executes one CLI invocation the way main does, closing everything it
// opened before returning.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	c := &cli{}
	root := newRootCmd(c)
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	c.close()
	return buf.String(), err
}

func setupEnv(t *testing.T) string {
	t.Helper()
	keyring.MockInit()
	dir := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", dir)
	t.Setenv(config.EnvPrefix+"STORAGE_PATH", filepath.Join(dir, "data", config.DBFileName))
	t.Setenv(config.EnvPrefix+"REMOTE", config.RemoteNone)
	return filepath.Join(dir, config.ConfigFileName)
}

func TestParseWeeks(t *testing.T) {
	tests := []struct {
		arg      string
		from, to int
		wantErr  bool
	}{
		{arg: "12", from: 12, to: 12},
		{arg: "10-20", from: 10, to: 20},
		{arg: "20-10", from: 10, to: 20},
		{arg: "0", wantErr: true},
		{arg: "x", wantErr: true},
		{arg: "3-", wantErr: true},
		{arg: "-3", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			from, to, err := parseWeeks(tt.arg)
			if tt.wantErr {
				assert.ErrorIs(t, err, errWeekArg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.from, from)
			assert.Equal(t, tt.to, to)
		})
	}
}

func TestCLI_ProfilePaintExport(t *testing.T) {
	cfg := setupEnv(t)

	out, err := run(t, "--config", cfg, "profile", "--name", "Ada", "--birth", "1990-03-03", "--life-expectancy", "85")
	require.NoError(t, err)
	assert.Contains(t, out, "of 4420")

	_, err = run(t, "--config", cfg, "paint", "happy", "2", "10-12")
	require.NoError(t, err)

	out, err = run(t, "--config", cfg, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "name:        Ada")
	assert.Contains(t, out, "born:        1990-03-03")
	assert.Contains(t, out, "milestones:  4")
	assert.Contains(t, out, "selected:    4")

	ics := filepath.Join(filepath.Dir(cfg), "weeks.ics")
	_, err = run(t, "--config", cfg, "export-ics", "-o", ics)
	require.NoError(t, err)
	data, err := os.ReadFile(ics)
	require.NoError(t, err)
	assert.Equal(t, 4, bytes.Count(data, []byte("BEGIN:VEVENT")))

	out, err = run(t, "--config", cfg, "export-ics")
	require.NoError(t, err)
	assert.Contains(t, out, "BEGIN:VCALENDAR")
}

func TestCLI_ImportVCard(t *testing.T) {
	cfg := setupEnv(t)
	card := filepath.Join(filepath.Dir(cfg), "me.vcf")
	require.NoError(t, os.WriteFile(card, []byte("BEGIN:VCARD\r\nVERSION:3.0\r\nFN:Grace Hopper\r\nBDAY:1906-12-09\r\nEND:VCARD\r\n"), 0o600))

	_, err := run(t, "--config", cfg, "import-vcard", card)
	require.NoError(t, err)

	out, err := run(t, "--config", cfg, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "name:        Grace Hopper")
	assert.Contains(t, out, "born:        1906-12-09")
}

func TestCLI_Errors(t *testing.T) {
	cfg := setupEnv(t)

	_, err := run(t, "--config", cfg, "paint", "happy", "zero")
	assert.ErrorIs(t, err, errWeekArg)

	_, err = run(t, "--config", cfg, "profile", "--birth", "yesterday")
	assert.ErrorContains(t, err, config.ErrInvalidDate)

	_, err = run(t, "--config", cfg, "--backend", "floppy", "status")
	assert.ErrorContains(t, err, config.ErrUnknownBackend)

	_, err = run(t, "--config", cfg, "sync")
	assert.ErrorContains(t, err, config.ErrUnknownRemote)
}

func TestCLI_ConfigFileSelectsBackend(t *testing.T) {
	cfg := setupEnv(t)
	require.NoError(t, os.WriteFile(cfg, []byte("language = \"fr\"\n[storage]\nbackend = \"memory\"\n"), 0o600))

	_, err := run(t, "--config", cfg, "paint", "calm", "5")
	require.NoError(t, err)

	out, err := run(t, "--config", cfg, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "milestones:  0", "the memory backend forgets between runs")
}
