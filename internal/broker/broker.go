// Package broker correlates classification requests with worker replies.
package broker

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/kozaktomas/emotion-sense/internal/emotion"
	"github.com/kozaktomas/emotion-sense/internal/faults"
	"github.com/kozaktomas/emotion-sense/internal/preprocess"
	"github.com/kozaktomas/emotion-sense/internal/worker"
	"github.com/sirupsen/logrus"
)

// Gate is the model side the broker posts to.
type Gate interface {
	Ready() bool
	Post(cmd worker.Command) error
}

type outcome struct {
	result emotion.Result
	err    error
}

// Broker sends Classify commands and matches replies by correlation ID.
// Any number of requests may be outstanding at once.
type Broker struct {
	gate Gate
	log  *logrus.Logger

	mu      sync.Mutex
	pending map[string]chan outcome
}

// New creates a broker posting to gate.
func New(gate Gate, log *logrus.Logger) *Broker {
	return &Broker{
		gate:    gate,
		log:     log,
		pending: make(map[string]chan outcome),
	}
}

// Classify sends patch to the worker and waits for its answer. It fails
// fast with ErrModelNotReady when the model cannot take requests.
func (b *Broker) Classify(ctx context.Context, patch *preprocess.Patch) (emotion.Result, error) {
	if !b.gate.Ready() {
		return nil, faults.ErrModelNotReady
	}

	data, err := patch.PNG()
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	ch := make(chan outcome, 1)

	b.mu.Lock()
	b.pending[id] = ch
	b.mu.Unlock()

	if err := b.gate.Post(worker.Classify{ID: id, Image: data}); err != nil {
		b.forget(id)
		return nil, err
	}

	select {
	case out := <-ch:
		return out.result, out.err
	case <-ctx.Done():
		b.forget(id)
		return nil, ctx.Err()
	}
}

// Resolve completes the request the reply answers.
func (b *Broker) Resolve(reply worker.Completed) {
	if len(reply.Output) == 0 {
		b.deliver(reply.ID, outcome{err: faults.ErrEmptyResult})
		return
	}
	b.deliver(reply.ID, outcome{result: reply.Output})
}

// Reject fails the request the reply names.
func (b *Broker) Reject(reply worker.Failed) {
	b.deliver(reply.ID, outcome{err: &faults.WorkerError{Message: reply.Error}})
}

// Abort fails every outstanding request with err.
func (b *Broker) Abort(err error) {
	b.mu.Lock()
	pending := b.pending
	b.pending = make(map[string]chan outcome)
	b.mu.Unlock()

	if len(pending) > 0 {
		b.log.WithFields(logrus.Fields{
			"requests": len(pending),
			"error":    err,
		}).Warn("[Broker] aborting pending requests")
	}
	for _, ch := range pending {
		ch <- outcome{err: fmt.Errorf("classification aborted: %w", err)}
	}
}

// Pending returns the number of outstanding requests.
func (b *Broker) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

func (b *Broker) deliver(id string, out outcome) {
	b.mu.Lock()
	ch, ok := b.pending[id]
	delete(b.pending, id)
	b.mu.Unlock()

	if !ok {
		b.log.WithField("request_id", id).Debug("[Broker] dropping reply for unknown request")
		return
	}
	ch <- out
}

func (b *Broker) forget(id string) {
	b.mu.Lock()
	delete(b.pending, id)
	b.mu.Unlock()
}
