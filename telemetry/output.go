package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
)

// csvLog is an append-only CSV file whose header is written with the first batch.
type csvLog struct {
	name          string
	file          *os.File
	headerWritten bool
}

func (l *csvLog) write(records any) error {
	if !l.headerWritten {
		if err := gocsv.Marshal(records, l.file); err != nil {
			return fmt.Errorf("writing %s: %w", l.name, err)
		}
		l.headerWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(records, l.file); err != nil {
		return fmt.Errorf("writing %s: %w", l.name, err)
	}
	return nil
}

// OutputManager handles structured run output with CSV logging.
// A nil manager is valid and discards everything.
type OutputManager struct {
	dir string

	runs     *csvLog
	perf     *csvLog
	layers   *csvLog
	spectrum *csvLog
}

// NewOutputManager creates the output directory and CSV files.
// Returns nil if dir is empty (output disabled).
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir}
	logs := []**csvLog{&om.runs, &om.perf, &om.layers, &om.spectrum}
	names := []string{"runs.csv", "perf.csv", "layers.csv", "spectrum.csv"}
	for i, name := range names {
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			om.Close()
			return nil, fmt.Errorf("creating %s: %w", name, err)
		}
		*logs[i] = &csvLog{name: name, file: f}
	}

	return om, nil
}

// ConfigWriter is implemented by *config.Config.
type ConfigWriter interface {
	WriteYAML(path string) error
}

// WriteConfig saves the effective configuration as YAML.
func (om *OutputManager) WriteConfig(cfg ConfigWriter) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WriteRun appends a run record to runs.csv.
func (om *OutputManager) WriteRun(r RunRecord) error {
	if om == nil {
		return nil
	}
	return om.runs.write([]RunRecord{r})
}

// WritePerf appends a performance record to perf.csv.
func (om *OutputManager) WritePerf(stats PerfStats, run int) error {
	if om == nil {
		return nil
	}
	return om.perf.write([]PerfStatsCSV{stats.ToCSV(run)})
}

// WriteLayerStats appends per-layer statistics to layers.csv.
func (om *OutputManager) WriteLayerStats(stats []LayerStats) error {
	if om == nil || len(stats) == 0 {
		return nil
	}
	return om.layers.write(stats)
}

// WriteSpectrum appends spectrum shells to spectrum.csv.
func (om *OutputManager) WriteSpectrum(bins []SpectrumBin) error {
	if om == nil || len(bins) == 0 {
		return nil
	}
	return om.spectrum.write(bins)
}

// Close closes all output files, returning the first error.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}

	var firstErr error
	for _, l := range []*csvLog{om.runs, om.perf, om.layers, om.spectrum} {
		if l == nil || l.file == nil {
			continue
		}
		if err := l.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
