package dither

// reporter throttles progress events to every interval-th call and keeps the
// reported percentage from ever going backwards.
type reporter struct {
	fn       ProgressFunc
	interval int
	counter  int
	last     int
}

func newReporter(fn ProgressFunc, interval int) *reporter {
	return &reporter{fn: fn, interval: interval}
}

func (p *reporter) report(percent int) {
	if p.fn == nil {
		return
	}
	p.counter++
	if p.interval <= 0 || p.counter%p.interval != 0 {
		return
	}
	if percent < p.last {
		percent = p.last
	}
	p.last = percent
	p.fn(percent)
}

func (p *reporter) finish() {
	if p.fn == nil {
		return
	}
	p.last = 100
	p.fn(100)
}
