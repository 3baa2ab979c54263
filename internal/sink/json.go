package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Sternrassler/helix-channel-crawler/internal/extract"
	"github.com/Sternrassler/helix-channel-crawler/pkg/logging"
	"github.com/rs/zerolog"
)

// JSONFile writes all records as one indented JSON array.
type JSONFile struct {
	path   string
	logger zerolog.Logger
}

// NewJSONFile creates a sink writing to path.
func NewJSONFile(path string, logger zerolog.Logger) *JSONFile {
	return &JSONFile{
		path:   path,
		logger: logging.NewLogger(logger, "sink-json"),
	}
}

// Write creates missing parent directories and replaces the file atomically.
func (j *JSONFile) Write(_ context.Context, records []extract.ChannelRecord) error {
	if records == nil {
		records = []extract.ChannelRecord{}
	}

	dir := filepath.Dir(j.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		sinkErrorsTotal.WithLabelValues("json").Inc()
		return fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(j.path)+".*")
	if err != nil {
		sinkErrorsTotal.WithLabelValues("json").Inc()
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(records); err != nil {
		tmp.Close()
		sinkErrorsTotal.WithLabelValues("json").Inc()
		return fmt.Errorf("encode records: %w", err)
	}
	if err := tmp.Close(); err != nil {
		sinkErrorsTotal.WithLabelValues("json").Inc()
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), j.path); err != nil {
		sinkErrorsTotal.WithLabelValues("json").Inc()
		return fmt.Errorf("rename output file: %w", err)
	}

	sinkRecordsTotal.WithLabelValues("json").Add(float64(len(records)))
	j.logger.Info().
		Str("path", j.path).
		Int("records", len(records)).
		Msg("Wrote records to JSON file")
	return nil
}
