package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kozaktomas/emotion-sense/internal/constants"
	"github.com/kozaktomas/emotion-sense/internal/emotion"
	"github.com/kozaktomas/emotion-sense/internal/faults"
	"github.com/kozaktomas/emotion-sense/internal/source"
	"github.com/sirupsen/logrus"
)

// Capturer is the single-shot operation the monitor repeats.
type Capturer interface {
	CaptureAndClassify(ctx context.Context, src source.FrameSource) (Outcome, error)
}

// Reading is one monitor tick.
type Reading struct {
	Time         time.Time   `json:"time"`
	Emotion      emotion.Tag `json:"emotion,omitempty"`
	Score        float64     `json:"score,omitempty"`
	Icon         string      `json:"icon,omitempty"`
	Error        string      `json:"error,omitempty"`
	Dominant     emotion.Tag `json:"dominant,omitempty"`
	DominantIcon string      `json:"dominant_icon,omitempty"`
}

// Monitor classifies the source on a fixed interval and keeps a tally of
// the emotions seen.
type Monitor struct {
	capturer Capturer
	source   source.FrameSource
	catalog  *emotion.Catalog
	interval time.Duration
	timeout  time.Duration
	log      *logrus.Logger

	mu     sync.Mutex
	latest *Reading
	tally  map[emotion.Tag]int
	order  []emotion.Tag // tags in first-seen order
	subs   map[chan Reading]struct{}
}

// NewMonitor creates a monitor capturing src every interval. Each capture
// must finish within timeout or it is recorded as failed. Non-positive
// values select MonitorInterval and CaptureTimeout.
func NewMonitor(capturer Capturer, src source.FrameSource, catalog *emotion.Catalog, interval, timeout time.Duration, log *logrus.Logger) *Monitor {
	if interval <= 0 {
		interval = constants.MonitorInterval
	}
	if timeout <= 0 {
		timeout = constants.CaptureTimeout
	}
	return &Monitor{
		capturer: capturer,
		source:   src,
		catalog:  catalog,
		interval: interval,
		timeout:  timeout,
		log:      log,
		tally:    make(map[emotion.Tag]int),
		subs:     make(map[chan Reading]struct{}),
	}
}

// Run ticks until ctx is done. The first capture happens immediately.
func (m *Monitor) Run(ctx context.Context) error {
	m.log.WithField("interval", m.interval).Info("[Monitor] started")
	defer m.log.Info("[Monitor] stopped")

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		m.tick(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// tick runs one capture. It returns false when the tick was skipped, which
// happens only while the model loads, while another capture runs, or when
// ctx is done. A faulted model is recorded like any other failure.
func (m *Monitor) tick(ctx context.Context) (Reading, bool) {
	captureCtx, cancel := context.WithTimeout(ctx, m.timeout)
	out, err := m.capturer.CaptureAndClassify(captureCtx, m.source)
	cancel()
	switch {
	case errors.Is(err, faults.ErrBusy), errors.Is(err, faults.ErrModelNotReady):
		return Reading{}, false
	case ctx.Err() != nil:
		return Reading{}, false
	}

	reading := Reading{Time: time.Now()}

	m.mu.Lock()
	if err != nil {
		reading.Error = faults.Describe(err)
	} else {
		reading.Emotion = out.Emotion
		reading.Score = out.Score
		reading.Icon = out.Icon
		if _, seen := m.tally[out.Emotion]; !seen {
			m.order = append(m.order, out.Emotion)
		}
		m.tally[out.Emotion]++
	}
	if dominant, _, ok := m.dominantLocked(); ok {
		reading.Dominant = dominant
		reading.DominantIcon = m.catalog.Icon(dominant)
	}
	m.latest = &reading
	m.publishLocked(reading)
	m.mu.Unlock()

	if err != nil {
		m.log.WithField("error", err).Debug("[Monitor] capture failed")
	}
	return reading, true
}

// Latest returns the most recent reading.
func (m *Monitor) Latest() (Reading, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.latest == nil {
		return Reading{}, false
	}
	return *m.latest, true
}

// Dominant returns the most frequent emotion so far. Ties go to the tag
// seen first.
func (m *Monitor) Dominant() (emotion.Tag, int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dominantLocked()
}

func (m *Monitor) dominantLocked() (emotion.Tag, int, bool) {
	var best emotion.Tag
	count := 0
	for _, tag := range m.order {
		if n := m.tally[tag]; n > count {
			best, count = tag, n
		}
	}
	return best, count, count > 0
}

// Subscribe returns a channel of readings and a function that removes it.
func (m *Monitor) Subscribe() (<-chan Reading, func()) {
	ch := make(chan Reading, constants.EventChannelBuffer)
	m.mu.Lock()
	m.subs[ch] = struct{}{}
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, ch)
			m.mu.Unlock()
			close(ch)
		})
	}
}

func (m *Monitor) publishLocked(r Reading) {
	for ch := range m.subs {
		select {
		case ch <- r:
		default:
			// Slow subscriber, drop.
		}
	}
}
