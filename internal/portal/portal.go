// Package portal triggers work in the source portal.
//
// The portal is browser-driven; this package does not automate it. An
// Engine asks a Portal to produce the employee export, produce the
// accounting report, or import a workbook, then waits for the artifact with
// the poller. Command runs an external program for each request.
package portal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/roach88/rostersync/internal/secrets"
)

// Subcommands passed as the first argument to the portal program.
const (
	SubExportEmployees = "export-employees"
	SubExportReport    = "export-report"
	SubImport          = "import"
)

// Environment variables carrying the login.
const (
	EnvUsername = "PORTAL_USERNAME"
	EnvPassword = "PORTAL_PASSWORD"
)

// ReportDateLayout formats report range arguments.
const ReportDateLayout = "2006-01-02"

const maxStderr = 2048

// Portal starts portal-side work. Each call returns once the portal has
// accepted the request; the artifact may appear later.
type Portal interface {
	ExportEmployees(ctx context.Context, login secrets.PortalLogin) error
	ExportReport(ctx context.Context, login secrets.PortalLogin, start, end time.Time) error
	Import(ctx context.Context, login secrets.PortalLogin, path string) error
}

// CommandError is a non-zero exit or launch failure of the portal program.
type CommandError struct {
	Subcommand string
	ExitCode   int
	Stderr     string
	Err        error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("portal %s: exit %d", e.Subcommand, e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	if e.Err != nil && e.ExitCode < 0 {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CommandError) Unwrap() error { return e.Err }

// Command runs Program with a subcommand per request. The working
// directory is Dir, normally the export download directory.
type Command struct {
	Program string
	Args    []string
	Dir     string
	Timeout time.Duration
	Logger  *slog.Logger
}

var _ Portal = (*Command)(nil)

// ExportEmployees runs "<program> export-employees".
func (c *Command) ExportEmployees(ctx context.Context, login secrets.PortalLogin) error {
	return c.run(ctx, login, SubExportEmployees)
}

// ExportReport runs "<program> export-report <start> <end>".
func (c *Command) ExportReport(ctx context.Context, login secrets.PortalLogin, start, end time.Time) error {
	return c.run(ctx, login, SubExportReport, start.Format(ReportDateLayout), end.Format(ReportDateLayout))
}

// Import runs "<program> import <path>".
func (c *Command) Import(ctx context.Context, login secrets.PortalLogin, path string) error {
	return c.run(ctx, login, SubImport, path)
}

func (c *Command) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func (c *Command) run(ctx context.Context, login secrets.PortalLogin, sub string, args ...string) error {
	if c.Program == "" {
		return &CommandError{Subcommand: sub, ExitCode: -1, Err: errors.New("no portal program configured")}
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	argv := make([]string, 0, len(c.Args)+1+len(args))
	argv = append(argv, c.Args...)
	argv = append(argv, sub)
	argv = append(argv, args...)

	cmd := exec.CommandContext(ctx, c.Program, argv...)
	cmd.Dir = c.Dir
	cmd.Env = append(os.Environ(), EnvUsername+"="+login.Username, EnvPassword+"="+login.Password)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	started := time.Now()
	c.logger().Info("running portal command", "subcommand", sub, "program", c.Program, "login", login)
	err := cmd.Run()
	c.logger().Debug("portal command finished", "subcommand", sub, "duration", time.Since(started), "stdout_bytes", stdout.Len())
	if err == nil {
		return nil
	}

	ce := &CommandError{Subcommand: sub, ExitCode: -1, Err: err, Stderr: redact(stderr.String(), login.Password)}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		ce.ExitCode = exitErr.ExitCode()
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		ce.Err = ctxErr
		ce.ExitCode = -1
	}
	return ce
}

// redact trims stderr and removes any echo of the password.
func redact(s, password string) string {
	s = strings.TrimSpace(s)
	if password != "" {
		s = strings.ReplaceAll(s, password, "[REDACTED]")
	}
	if len(s) > maxStderr {
		s = s[len(s)-maxStderr:]
	}
	return s
}
