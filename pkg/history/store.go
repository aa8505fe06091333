package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// Run is one recorded sync execution
type Run struct {
	ID                string    `db:"id" json:"id"`
	Skill             string    `db:"skill" json:"skill"`
	OldHash           string    `db:"old_hash" json:"oldHash,omitempty"`
	NewHash           string    `db:"new_hash" json:"newHash"`
	Created           int       `db:"created" json:"created"`
	Updated           int       `db:"updated" json:"updated"`
	Deleted           int       `db:"deleted" json:"deleted"`
	Conflicts         int       `db:"conflicts" json:"conflicts"`
	BackupPath        string    `db:"backup_path" json:"backupPath,omitempty"`
	MetadataCommitted bool      `db:"metadata_committed" json:"metadataCommitted"`
	ManifestJSON      string    `db:"manifest" json:"-"`
	StartedAt         time.Time `db:"started_at" json:"startedAt"`
	DurationMS        int64     `db:"duration_ms" json:"durationMs"`
}

// Store reads and writes sync runs
type Store struct {
	db *sqlx.DB
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRun persists one run together with the manifest of upstream files it
// synced.
func (s *Store) RecordRun(ctx context.Context, run Run, manifest map[string]string) error {
	if manifest == nil {
		manifest = map[string]string{}
	}
	manifestJSON, err := json.Marshal(manifest)
	if err != nil {
		return errors.Wrap(err, "failed to serialize manifest")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sync_runs (
			id, skill, old_hash, new_hash,
			created, updated, deleted, conflicts,
			backup_path, metadata_committed, manifest,
			started_at, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID, run.Skill, run.OldHash, run.NewHash,
		run.Created, run.Updated, run.Deleted, run.Conflicts,
		run.BackupPath, run.MetadataCommitted, string(manifestJSON),
		run.StartedAt.UTC(), run.DurationMS,
	)
	return errors.Wrap(err, "failed to record sync run")
}

// ListRuns returns the most recent runs, newest first, optionally filtered
// by skill name.
func (s *Store) ListRuns(ctx context.Context, skill string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	var runs []Run
	var err error
	if skill != "" {
		err = s.db.SelectContext(ctx, &runs, `
			SELECT * FROM sync_runs
			WHERE skill = ?
			ORDER BY started_at DESC
			LIMIT ?
		`, skill, limit)
	} else {
		err = s.db.SelectContext(ctx, &runs, `
			SELECT * FROM sync_runs
			ORDER BY started_at DESC
			LIMIT ?
		`, limit)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to list sync runs")
	}
	return runs, nil
}

// LatestManifest returns the path -> digest manifest of the most recent run
// that committed metadata for the skill, or nil when the skill has never
// synced cleanly.
func (s *Store) LatestManifest(ctx context.Context, skill string) (map[string]string, error) {
	var manifestJSON string
	err := s.db.GetContext(ctx, &manifestJSON, `
		SELECT manifest FROM sync_runs
		WHERE skill = ? AND metadata_committed = 1
		ORDER BY started_at DESC
		LIMIT 1
	`, skill)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load latest manifest")
	}

	manifest := map[string]string{}
	if err := json.Unmarshal([]byte(manifestJSON), &manifest); err != nil {
		return nil, errors.Wrap(err, "failed to parse stored manifest")
	}
	return manifest, nil
}
