package portal

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rostersync/internal/secrets"
)

var login = secrets.PortalLogin{Username: "ops", Password: "hunter2"}

// writeScript writes a shell script that logs its arguments, working
// directory and credentials to calls.log in its own directory.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "portal.sh")
	script := "#!/bin/sh\n" +
		"echo \"$(pwd -P)|$PORTAL_USERNAME|$PORTAL_PASSWORD|$*\" >> " + filepath.Join(dir, "calls.log") + "\n" +
		body
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func readLog(t *testing.T, script string) []string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(filepath.Dir(script), "calls.log"))
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestCommand_Subcommands(t *testing.T) {
	script := writeScript(t, "exit 0\n")
	work, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	c := &Command{Program: script, Args: []string{"--headless"}, Dir: work}
	ctx := context.Background()

	require.NoError(t, c.ExportEmployees(ctx, login))
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	require.NoError(t, c.ExportReport(ctx, login, start, end))
	require.NoError(t, c.Import(ctx, login, "/tmp/import.xlsx"))

	lines := readLog(t, script)
	require.Len(t, lines, 3)
	assert.Equal(t, work+"|ops|hunter2|--headless export-employees", lines[0])
	assert.Equal(t, work+"|ops|hunter2|--headless export-report 2024-03-01 2024-03-31", lines[1])
	assert.Equal(t, work+"|ops|hunter2|--headless import /tmp/import.xlsx", lines[2])
}

func TestCommand_FailureRedactsPassword(t *testing.T) {
	script := writeScript(t, "echo \"login failed for $PORTAL_PASSWORD\" >&2\nexit 3\n")
	c := &Command{Program: script}

	err := c.ExportEmployees(context.Background(), login)
	var ce *CommandError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 3, ce.ExitCode)
	assert.Equal(t, SubExportEmployees, ce.Subcommand)
	assert.Equal(t, "login failed for [REDACTED]", ce.Stderr)
	assert.NotContains(t, err.Error(), "hunter2")
}

func TestCommand_Timeout(t *testing.T) {
	script := writeScript(t, "exec sleep 5\n")
	c := &Command{Program: script, Timeout: 50 * time.Millisecond}

	err := c.ExportEmployees(context.Background(), login)
	var ce *CommandError
	require.ErrorAs(t, err, &ce)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestCommand_NoProgram(t *testing.T) {
	err := (&Command{}).Import(context.Background(), login, "x.xlsx")
	var ce *CommandError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, -1, ce.ExitCode)
}

func TestCommand_LogsOmitPassword(t *testing.T) {
	script := writeScript(t, "exit 0\n")
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	c := &Command{Program: script, Logger: logger}

	require.NoError(t, c.ExportEmployees(context.Background(), login))
	assert.Contains(t, buf.String(), "ops")
	assert.NotContains(t, buf.String(), "hunter2")
}

func TestRedact_Truncates(t *testing.T) {
	long := strings.Repeat("x", maxStderr+10) + "tail"
	got := redact(long, "")
	assert.Len(t, got, maxStderr)
	assert.True(t, strings.HasSuffix(got, "tail"))
}

func TestRecorder(t *testing.T) {
	dir := t.TempDir()
	r := NewRecorder(dir)
	r.OnCall(SubExportReport, "AccountingReport_Simple.csv", []byte("a,b\n1,2\n"))

	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	require.NoError(t, r.ExportReport(context.Background(), login, day, day))
	require.NoError(t, r.ExportEmployees(context.Background(), login))

	data, err := os.ReadFile(filepath.Join(dir, "AccountingReport_Simple.csv"))
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(data))
	assert.Equal(t, []Call{
		{Subcommand: SubExportReport, Username: "ops", Args: []string{"2024-01-02", "2024-01-02"}},
		{Subcommand: SubExportEmployees, Username: "ops"},
	}, r.Calls())

	r.Fail(errors.New("portal down"))
	assert.EqualError(t, r.Import(context.Background(), login, "x"), "portal down")
}
