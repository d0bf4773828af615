// Package filesink writes chart jobs as JSON documents in a directory, one
// file per job, for renderers that poll the filesystem instead of Kafka.
package filesink

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"

	"github.com/couchcryptid/psychro-chart-etl/internal/domain"
)

// Sink writes jobs under Dir. It implements pipeline.JobPublisher.
type Sink struct {
	dir    string
	logger *slog.Logger
}

// New creates the directory if needed and returns a sink writing into it.
func New(dir string, logger *slog.Logger) (*Sink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create job dir: %w", err)
	}
	return &Sink{dir: dir, logger: logger}, nil
}

// PublishJobs writes <output stem>.json for each job. Existing files are
// overwritten so re-planning a station replaces its previous jobs.
func (s *Sink) PublishJobs(ctx context.Context, jobs []domain.ChartJob) error {
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return err
		}
		path := s.PathFor(job)
		data, err := json.MarshalIndent(job, "", "  ")
		if err != nil {
			return fmt.Errorf("serialize chart job %s: %w", job.ID, err)
		}
		if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
			return fmt.Errorf("write chart job %s: %w", job.ID, err)
		}
		s.logger.Debug("wrote chart job", "id", job.ID, "path", path, "rows", len(job.Rows))
	}
	return nil
}

// PathFor returns where the job's JSON is written.
func (s *Sink) PathFor(job domain.ChartJob) string {
	stem := strings.TrimSuffix(job.OutputName, filepath.Ext(job.OutputName))
	if stem == "" {
		stem = job.ID
	}
	return filepath.Join(s.dir, filepath.Base(stem)+".json")
}
