// Package poller waits for an out-of-process artifact to appear.
//
// Poll is a bounded loop: each attempt lists the location and succeeds as
// soon as an entry name contains the target. After a miss it sleeps for the
// interval, so maxRetries misses cost maxRetries checks and maxRetries
// sleeps. Running out of attempts is the Exhausted status, not an error; the
// caller decides how severe that is.
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Status is the outcome of a Poll.
type Status int

const (
	// Exhausted means the artifact never appeared within the retry budget.
	Exhausted Status = iota

	// Found means an entry matching the target was listed.
	Found
)

func (s Status) String() string {
	if s == Found {
		return "found"
	}
	return "exhausted"
}

// Defaults used by the portal flows.
const (
	DefaultMaxRetries = 5
	DefaultInterval   = 2 * time.Second
)

// Location is a listable place an artifact can appear in.
type Location interface {
	List(ctx context.Context) ([]string, error)
	String() string
}

// DirLocation lists a local directory. A missing directory lists as empty,
// since downloads commonly create it.
type DirLocation string

// List returns the entry names of the directory.
func (d DirLocation) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(string(d))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names, nil
}

func (d DirLocation) String() string {
	return string(d)
}

// KeyLister lists object keys under a prefix.
// Implemented by the snapshot stores.
type KeyLister interface {
	ListKeys(ctx context.Context, prefix string) ([]string, error)
}

// PrefixLocation lists an object-store prefix.
type PrefixLocation struct {
	Lister KeyLister
	Prefix string
}

// List returns the keys under the prefix.
func (p PrefixLocation) List(ctx context.Context) ([]string, error) {
	return p.Lister.ListKeys(ctx, p.Prefix)
}

func (p PrefixLocation) String() string {
	return "prefix:" + p.Prefix
}

// Sleeper suspends the caller. Implementations must return ctx.Err() when
// the context ends first.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// RealSleeper sleeps on the wall clock.
type RealSleeper struct{}

// Sleep waits for d or until ctx is done.
func (RealSleeper) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Poller runs bounded polls.
type Poller struct {
	sleeper Sleeper
	logger  *slog.Logger
}

// New creates a Poller. A nil sleeper uses RealSleeper; a nil logger uses
// slog.Default().
func New(sleeper Sleeper, logger *slog.Logger) *Poller {
	if sleeper == nil {
		sleeper = RealSleeper{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{sleeper: sleeper, logger: logger}
}

// Poll checks loc up to maxRetries times for an entry whose name contains
// name. Entries that are still being downloaded never match.
//
// Listing failures and context cancellation are returned as errors.
func (p *Poller) Poll(ctx context.Context, loc Location, name string, maxRetries int, interval time.Duration) (Status, error) {
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return Exhausted, err
		}
		entries, err := loc.List(ctx)
		if err != nil {
			return Exhausted, fmt.Errorf("poll %s: %w", loc, err)
		}
		p.logger.Debug("poll attempt",
			"target", name,
			"location", loc.String(),
			"attempt", attempt,
			"remaining", maxRetries-attempt,
			"entries", entries)
		if Match(entries, name) {
			p.logger.Debug("poll found artifact", "target", name, "attempt", attempt)
			return Found, nil
		}
		if err := p.sleeper.Sleep(ctx, interval); err != nil {
			return Exhausted, err
		}
	}
	p.logger.Info("poll exhausted", "target", name, "location", loc.String(), "max_retries", maxRetries)
	return Exhausted, nil
}

var partialSuffixes = []string{".crdownload", ".part", ".tmp"}

// Match reports whether any complete entry name contains target.
func Match(entries []string, target string) bool {
	for _, e := range entries {
		if strings.Contains(e, target) && !partial(e) {
			return true
		}
	}
	return false
}

func partial(name string) bool {
	lower := strings.ToLower(name)
	for _, s := range partialSuffixes {
		if strings.HasSuffix(lower, s) {
			return true
		}
	}
	return false
}
