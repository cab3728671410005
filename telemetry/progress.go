package telemetry

import (
	"fmt"
	"io"
	"log/slog"
)

var progressWheel = []byte{'\\', '|', '/', '-'}

// ProgressBar renders a spinning console progress line:
//
//	Progress [|] : 42%
//
// Repeated reports of the same percentage only advance the wheel.
type ProgressBar struct {
	w     io.Writer
	wheel int
	last  int
}

// NewProgressBar creates a progress bar writing to w.
func NewProgressBar(w io.Writer) *ProgressBar {
	return &ProgressBar{w: w, wheel: -1, last: -1}
}

// Report renders percentage. 100 finishes the line and resets the bar.
func (p *ProgressBar) Report(percentage int) {
	p.wheel = (p.wheel + 1) % len(progressWheel)
	ch := progressWheel[p.wheel]

	switch {
	case percentage == 100:
		fmt.Fprintf(p.w, "\rProgress [X] : %d%%\n", percentage)
		p.wheel = -1
		p.last = -1
		return
	case percentage == p.last:
		fmt.Fprintf(p.w, "%c\b", ch)
	default:
		fmt.Fprintf(p.w, "\rProgress [%c] : %d%%\rProgress [", ch, percentage)
	}
	p.last = percentage
}

// ProgressLogger emits a structured log record each time the percentage
// crosses a new multiple of step.
type ProgressLogger struct {
	logger *slog.Logger
	step   int
	next   int
}

// NewProgressLogger logs through logger (slog.Default when nil) every step percent.
func NewProgressLogger(logger *slog.Logger, step int) *ProgressLogger {
	if logger == nil {
		logger = slog.Default()
	}
	if step < 1 {
		step = 10
	}
	return &ProgressLogger{logger: logger, step: step}
}

// Report logs percentage if it reached the next step.
func (p *ProgressLogger) Report(percentage int) {
	if percentage < p.next {
		return
	}
	p.logger.Info("progress", "percent", percentage)
	p.next = (percentage/p.step + 1) * p.step
}
