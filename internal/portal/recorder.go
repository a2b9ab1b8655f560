package portal

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/roach88/rostersync/internal/secrets"
)

// Call is one request received by a Recorder.
type Call struct {
	Subcommand string
	Username   string
	Args       []string
}

// Recorder is an in-process Portal for tests and dry runs. It records each
// call and can drop artifacts into a directory to stand in for a download.
type Recorder struct {
	mu        sync.Mutex
	calls     []Call
	artifacts map[string]map[string][]byte
	dir       string
	err       error
}

var _ Portal = (*Recorder)(nil)

// NewRecorder creates a recorder that writes artifacts into dir.
func NewRecorder(dir string) *Recorder {
	return &Recorder{dir: dir, artifacts: map[string]map[string][]byte{}}
}

// OnCall writes file name with data into the directory whenever subcommand
// runs.
func (r *Recorder) OnCall(subcommand, name string, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.artifacts[subcommand] == nil {
		r.artifacts[subcommand] = map[string][]byte{}
	}
	r.artifacts[subcommand][name] = data
}

// Fail makes every later call return err.
func (r *Recorder) Fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// Calls returns the calls received so far.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

func (r *Recorder) ExportEmployees(ctx context.Context, login secrets.PortalLogin) error {
	return r.record(ctx, login, SubExportEmployees)
}

func (r *Recorder) ExportReport(ctx context.Context, login secrets.PortalLogin, start, end time.Time) error {
	return r.record(ctx, login, SubExportReport, start.Format(ReportDateLayout), end.Format(ReportDateLayout))
}

func (r *Recorder) Import(ctx context.Context, login secrets.PortalLogin, path string) error {
	return r.record(ctx, login, SubImport, path)
}

func (r *Recorder) record(ctx context.Context, login secrets.PortalLogin, sub string, args ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Subcommand: sub, Username: login.Username, Args: args})
	if r.err != nil {
		return r.err
	}
	for name, data := range r.artifacts[sub] {
		if err := os.WriteFile(filepath.Join(r.dir, name), data, 0o644); err != nil {
			return err
		}
	}
	return nil
}
