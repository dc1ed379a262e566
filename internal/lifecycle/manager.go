// Package lifecycle owns the inference worker and tracks model readiness.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kozaktomas/emotion-sense/internal/faults"
	"github.com/kozaktomas/emotion-sense/internal/worker"
	"github.com/sirupsen/logrus"
)

// ErrClosed is returned by Initialize after Close.
var ErrClosed = errors.New("lifecycle manager closed")

// Factory creates a fresh worker.
type Factory func() (worker.Handle, error)

// ReplySink receives the replies that answer classification requests.
type ReplySink interface {
	Resolve(reply worker.Completed)
	Reject(reply worker.Failed)
	// Abort fails every outstanding request.
	Abort(err error)
}

// Manager owns the worker for its whole lifetime. It is the only reader of
// the worker's replies: lifecycle messages update the state, answers to
// classification requests are handed to the sink.
type Manager struct {
	EventBroadcaster

	factory Factory
	log     *logrus.Logger

	mu         sync.Mutex
	state      State
	progress   map[string]ProgressItem
	fault      string
	handle     worker.Handle
	generation int
	settled    chan struct{} // closed when the current load attempt ends
	sink       ReplySink
	closed     bool
}

// New creates a manager. No worker is started until Initialize.
func New(factory Factory, log *logrus.Logger) *Manager {
	return &Manager{
		factory:  factory,
		log:      log,
		state:    StateUninitialized,
		progress: make(map[string]ProgressItem),
		settled:  make(chan struct{}),
	}
}

// SetSink routes classification replies to s.
func (m *Manager) SetSink(s ReplySink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sink = s
}

// Initialize starts the worker and waits until the model is ready, has
// faulted, or ctx is done. While a load is running or the model is ready it
// does not start anything new. From Faulted it replaces the worker.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	switch m.state {
	case StateReady:
		m.mu.Unlock()
		return nil
	case StateDownloading:
		settled := m.settled
		m.mu.Unlock()
		return m.wait(ctx, settled)
	}

	old := m.handle
	m.handle = nil
	m.generation++
	gen := m.generation
	m.progress = make(map[string]ProgressItem)
	m.fault = ""
	m.settled = make(chan struct{})
	settled := m.settled
	m.state = StateDownloading
	m.broadcastLocked("state")
	m.mu.Unlock()

	if old != nil {
		m.log.Info("[Lifecycle] replacing worker")
		old.Terminate()
	}

	h, err := m.factory()

	m.mu.Lock()
	if m.closed || gen != m.generation {
		m.mu.Unlock()
		if h != nil {
			h.Terminate()
		}
		return ErrClosed
	}
	if err != nil {
		m.mu.Unlock()
		m.setFault(gen, "failed to start worker: "+err.Error(), faults.ErrModelFaulted)
		return m.wait(ctx, settled)
	}
	m.handle = h
	m.mu.Unlock()

	go m.dispatch(gen, h)

	m.log.Info("[Lifecycle] loading model")
	if err := h.Send(worker.Initiate{}); err != nil {
		m.setFault(gen, "failed to initiate worker: "+err.Error(), faults.ErrModelFaulted)
	}
	return m.wait(ctx, settled)
}

func (m *Manager) wait(ctx context.Context, settled chan struct{}) error {
	select {
	case <-settled:
	case <-ctx.Done():
		return ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.closed:
		return ErrClosed
	case m.state == StateReady:
		return nil
	case m.state == StateFaulted:
		return fmt.Errorf("%w: %s", faults.ErrModelFaulted, m.fault)
	default:
		return faults.ErrModelNotReady
	}
}

// State returns the current model state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Ready reports whether classification requests are accepted.
func (m *Manager) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateReady && !m.closed
}

// Progress returns the files still downloading, sorted by name.
func (m *Manager) Progress() []ProgressItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.progressLocked()
}

// Snapshot returns the full status.
func (m *Manager) Snapshot() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusLocked()
}

// Post sends a command to the worker. It fails fast with ErrModelNotReady
// unless the model is ready.
func (m *Manager) Post(cmd worker.Command) error {
	m.mu.Lock()
	if m.state != StateReady || m.handle == nil || m.closed {
		m.mu.Unlock()
		return faults.ErrModelNotReady
	}
	h := m.handle
	m.mu.Unlock()
	return h.Send(cmd)
}

// Close terminates the worker, fails outstanding requests and closes all listeners.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	h := m.handle
	m.handle = nil
	m.generation++
	m.settleLocked()
	sink := m.sink
	m.mu.Unlock()

	if h != nil {
		h.Terminate()
	}
	if sink != nil {
		sink.Abort(faults.ErrWorkerTerminated)
	}
	m.EventBroadcaster.Close()
	m.log.Info("[Lifecycle] closed")
}

func (m *Manager) dispatch(gen int, h worker.Handle) {
	for reply := range h.Replies() {
		m.handleReply(gen, reply)
	}

	m.mu.Lock()
	stale := gen != m.generation || m.closed || m.state == StateFaulted
	m.mu.Unlock()
	if !stale {
		m.log.Error("[Lifecycle] worker exited unexpectedly")
		m.setFault(gen, faults.ErrWorkerTerminated.Error(), faults.ErrWorkerTerminated)
	}
}

func (m *Manager) handleReply(gen int, reply worker.Reply) {
	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		return
	}
	sink := m.sink

	switch r := reply.(type) {
	case worker.Initiated:
		m.progress[r.File] = ProgressItem{File: r.File, Phase: PhaseInitiate}
		if m.state == StateUninitialized {
			m.state = StateDownloading
		}
		m.broadcastLocked("progress")
	case worker.Progressed:
		m.progress[r.File] = ProgressItem{File: r.File, Progress: r.Progress, Phase: PhaseProgressing}
		m.broadcastLocked("progress")
	case worker.FileDone:
		delete(m.progress, r.File)
		m.broadcastLocked("progress")
	case worker.Ready:
		if m.state == StateDownloading || m.state == StateUninitialized {
			m.state = StateReady
			m.settleLocked()
			m.log.Info("[Lifecycle] model ready")
			m.broadcastLocked("state")
		}
	case worker.Completed:
		m.mu.Unlock()
		if sink == nil {
			m.log.WithField("request_id", r.ID).Warn("[Lifecycle] dropping classification reply, no sink")
			return
		}
		sink.Resolve(r)
		return
	case worker.Failed:
		m.mu.Unlock()
		if r.ID == "" {
			m.setFault(gen, r.Error, faults.ErrModelFaulted)
			return
		}
		if sink != nil {
			sink.Reject(r)
		}
		return
	default:
		m.log.WithField("reply", fmt.Sprintf("%T", reply)).Warn("[Lifecycle] unknown worker reply")
	}
	m.mu.Unlock()
}

// setFault moves generation gen to Faulted and fails outstanding requests.
func (m *Manager) setFault(gen int, msg string, cause error) {
	m.mu.Lock()
	if gen != m.generation || m.closed {
		m.mu.Unlock()
		return
	}
	m.state = StateFaulted
	m.fault = msg
	clear(m.progress)
	m.settleLocked()
	m.broadcastLocked("fault")
	sink := m.sink
	m.mu.Unlock()

	m.log.WithField("error", msg).Error("[Lifecycle] model faulted")
	if sink != nil {
		sink.Abort(fmt.Errorf("%w: %s", cause, msg))
	}
}

func (m *Manager) settleLocked() {
	select {
	case <-m.settled:
	default:
		close(m.settled)
	}
}

func (m *Manager) progressLocked() []ProgressItem {
	items := make([]ProgressItem, 0, len(m.progress))
	for _, item := range m.progress {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].File < items[j].File })
	return items
}

func (m *Manager) statusLocked() Status {
	return Status{
		State:    m.state,
		Ready:    m.state == StateReady && !m.closed,
		Progress: m.progressLocked(),
		Error:    m.fault,
	}
}

func (m *Manager) broadcastLocked(eventType string) {
	m.SendEvent(Event{Type: eventType, Status: m.statusLocked(), Time: time.Now()})
}
