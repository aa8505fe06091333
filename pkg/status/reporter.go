// Package status batch-checks every tracked skill against its upstream
// repository: hash-only resolution, no tree fetch, bounded fan-out across
// skills. The reporter never mutates a skill.
package status

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/jingkaihe/skillman/pkg/gitremote"
	"github.com/jingkaihe/skillman/pkg/logger"
	"github.com/jingkaihe/skillman/pkg/skills"
	"github.com/pkg/errors"
)

// State classifies one skill relative to its upstream
type State string

const (
	// StateCurrent means the recorded hash equals the remote HEAD
	StateCurrent State = "current"
	// StateStale means the remote has moved past the recorded hash
	StateStale State = "stale"
	// StateUnknown means provenance is missing or the remote could not be
	// resolved
	StateUnknown State = "unknown"
)

// SkillStatus is the per-skill result of a batch check
type SkillStatus struct {
	Name          string `json:"name"`
	SourceURL     string `json:"sourceUrl,omitempty"`
	RecordedHash  string `json:"recordedHash,omitempty"`
	RemoteHash    string `json:"remoteHash,omitempty"`
	State         State  `json:"status"`
	CommitsBehind *int   `json:"commitsBehind,omitempty"`
	Message       string `json:"message,omitempty"`
}

// Report is the structured batch result
type Report struct {
	GeneratedAt time.Time     `json:"generatedAt"`
	Total       int           `json:"total"`
	Current     int           `json:"current"`
	Stale       int           `json:"stale"`
	Unknown     int           `json:"unknown"`
	Skills      []SkillStatus `json:"skills"`
}

const defaultConcurrency = 5

// Reporter runs batch status checks
type Reporter struct {
	inventory    *skills.Inventory
	remote       gitremote.Remote
	concurrency  int
	withDistance bool
	now          func() time.Time
}

// ReporterOption configures a Reporter
type ReporterOption func(*Reporter)

// WithConcurrency bounds the parallel remote lookups
func WithConcurrency(n int) ReporterOption {
	return func(r *Reporter) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithoutDistance disables the best-effort commit-distance lookup for stale
// skills, keeping the scan to one ls-remote per skill
func WithoutDistance() ReporterOption {
	return func(r *Reporter) {
		r.withDistance = false
	}
}

// NewReporter creates a Reporter over the given inventory and remote
func NewReporter(inventory *skills.Inventory, remote gitremote.Remote, opts ...ReporterOption) *Reporter {
	r := &Reporter{
		inventory:    inventory,
		remote:       remote,
		concurrency:  defaultConcurrency,
		withDistance: true,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run scans the inventory and checks every skill concurrently, bounded by
// the configured concurrency. Per-skill failures are isolated into that
// skill's status; the batch always completes. Cancellation is honored
// between per-skill units: in-flight checks finish, no new ones start, and
// skills never issued are reported as unknown.
func (r *Reporter) Run(ctx context.Context) (*Report, error) {
	records, err := r.inventory.Scan()
	if err != nil {
		return nil, errors.Wrap(err, "failed to scan skills inventory")
	}

	statuses := make([]SkillStatus, len(records))
	sem := make(chan struct{}, r.concurrency)
	wg := sync.WaitGroup{}

	for i, record := range records {
		if ctx.Err() != nil {
			statuses[i] = SkillStatus{
				Name:      record.Name,
				SourceURL: record.SourceURL,
				State:     StateUnknown,
				Message:   "scan canceled",
			}
			continue
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(i int, record skills.SkillRecord) {
			defer wg.Done()
			defer func() { <-sem }()
			statuses[i] = r.checkOne(ctx, record)
		}(i, record)
	}
	wg.Wait()

	report := &Report{
		GeneratedAt: r.now(),
		Total:       len(statuses),
		Skills:      statuses,
	}
	for _, s := range statuses {
		switch s.State {
		case StateCurrent:
			report.Current++
		case StateStale:
			report.Stale++
		default:
			report.Unknown++
		}
	}
	return report, nil
}

func (r *Reporter) checkOne(ctx context.Context, record skills.SkillRecord) SkillStatus {
	status := SkillStatus{
		Name:         record.Name,
		SourceURL:    record.SourceURL,
		RecordedHash: record.RecordedHash,
	}

	if !record.HasSource() {
		status.State = StateUnknown
		status.Message = "no source repository recorded"
		return status
	}

	ref, err := gitremote.ParseLocator(record.SourceURL)
	if err != nil {
		status.State = StateUnknown
		status.Message = err.Error()
		return status
	}

	resolved, err := r.remote.ResolveRef(ctx, ref)
	if err != nil {
		status.State = StateUnknown
		status.Message = err.Error()
		return status
	}
	status.RemoteHash = resolved.CommitHash

	if record.RecordedHash == "" {
		status.State = StateUnknown
		status.Message = "no recorded hash"
		return status
	}

	if record.RecordedHash == resolved.CommitHash {
		status.State = StateCurrent
		status.Message = "up to date"
		return status
	}

	status.State = StateStale
	status.Message = "new commits available"
	if r.withDistance {
		if distance, err := r.remote.CommitDistance(ctx, ref, record.RecordedHash, resolved.CommitHash); err == nil {
			status.CommitsBehind = &distance
			status.Message = fmt.Sprintf("%d commit(s) behind", distance)
		} else {
			logger.G(ctx).WithField("skill", record.Name).WithError(err).Debug("commit distance unavailable")
		}
	}
	return status
}

// Err aggregates the unknown-state messages into a single error for callers
// that want a non-zero exit on any failed check, or nil when every skill
// resolved cleanly.
func (r *Report) Err() error {
	var merr *multierror.Error
	for _, s := range r.Skills {
		if s.State == StateUnknown && s.SourceURL != "" {
			merr = multierror.Append(merr, errors.Errorf("%s: %s", s.Name, s.Message))
		}
	}
	return merr.ErrorOrNil()
}
