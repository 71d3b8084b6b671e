package report

import (
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"

	"wikiloader/app/internal/data/mediawiki"
	"wikiloader/app/internal/ingest"
)

// Outcome values written to the summary.
const (
	OutcomeFinished = "finished"
	OutcomeFailed   = "failed"
)

// Summary is the machine-readable record of one ingestion run.
type Summary struct {
	Dump       string                 `json:"dump"`
	Outcome    string                 `json:"outcome"`
	Error      string                 `json:"error,omitempty"`
	Run        ingest.Result          `json:"run"`
	Tables     *mediawiki.TableCounts `json:"tables,omitempty"`
	FinishedAt time.Time              `json:"finished_at"`
}

// NewSummary builds a summary from the result of Driver.Run.
func NewSummary(dumpPath string, result ingest.Result, runErr error, finishedAt time.Time) Summary {
	summary := Summary{
		Dump:       dumpPath,
		Outcome:    OutcomeFinished,
		Run:        result,
		FinishedAt: finishedAt.UTC(),
	}
	if runErr != nil {
		summary.Outcome = OutcomeFailed
		summary.Error = runErr.Error()
	}
	return summary
}

// WriteFile stores the summary as indented JSON, replacing any existing file atomically.
func WriteFile(path string, summary Summary) error {
	if path == "" {
		return eris.New("summary path is required")
	}

	payload, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return eris.Wrap(err, "encoding run summary")
	}
	payload = append(payload, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "creating summary directory %s", dir)
	}

	tmp, err := os.CreateTemp(dir, ".summary-*.json")
	if err != nil {
		return eris.Wrap(err, "creating temporary summary file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return eris.Wrap(err, "writing run summary")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return eris.Wrap(err, "closing run summary")
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return eris.Wrapf(err, "moving run summary to %s", path)
	}

	return nil
}

// ReadFile loads a summary written by WriteFile.
func ReadFile(path string) (Summary, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Summary{}, eris.Wrapf(err, "reading run summary %s", path)
	}

	var summary Summary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return Summary{}, eris.Wrapf(err, "decoding run summary %s", path)
	}
	return summary, nil
}
