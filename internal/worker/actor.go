package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kozaktomas/emotion-sense/internal/constants"
	"github.com/kozaktomas/emotion-sense/internal/emotion"
	"github.com/kozaktomas/emotion-sense/internal/faults"
	"github.com/sirupsen/logrus"
)

// Actor runs a Model in its own goroutine. Commands are handled one at a
// time in arrival order; the model is loaded at most once.
type Actor struct {
	model    Model
	log      *logrus.Logger
	commands chan Command
	replies  chan Reply

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	terminate sync.Once

	loaded bool
}

// Spawn starts an actor hosting model.
func Spawn(model Model, log *logrus.Logger) *Actor {
	ctx, cancel := context.WithCancel(context.Background())
	a := &Actor{
		model:    model,
		log:      log,
		commands: make(chan Command, constants.ReplyChannelBuffer),
		replies:  make(chan Reply, constants.ReplyChannelBuffer),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Actor) Send(cmd Command) error {
	select {
	case <-a.done:
		return faults.ErrWorkerTerminated
	default:
	}
	select {
	case a.commands <- cmd:
		return nil
	case <-a.done:
		return faults.ErrWorkerTerminated
	}
}

func (a *Actor) Replies() <-chan Reply {
	return a.replies
}

func (a *Actor) Terminate() {
	a.terminate.Do(func() {
		a.cancel()
		<-a.done
	})
}

func (a *Actor) run() {
	defer close(a.done)
	defer close(a.replies)

	for {
		select {
		case <-a.ctx.Done():
			return
		case cmd := <-a.commands:
			a.handle(cmd)
		}
	}
}

func (a *Actor) handle(cmd Command) {
	switch c := cmd.(type) {
	case Initiate:
		if a.loaded {
			a.emit(Ready{})
			return
		}
		if err := a.ensureLoaded(); err != nil {
			a.emit(Failed{Error: err.Error()})
		}
	case Classify:
		if err := a.ensureLoaded(); err != nil {
			a.emit(Failed{ID: c.ID, Error: err.Error()})
			return
		}
		out, err := a.classify(c)
		if err != nil {
			a.emit(Failed{ID: c.ID, Error: err.Error()})
			return
		}
		a.emit(Completed{ID: c.ID, Output: out})
	default:
		a.log.WithField("command", fmt.Sprintf("%T", cmd)).Warn("[Worker] ignoring unknown command")
	}
}

// ensureLoaded loads the model on first use and announces readiness.
func (a *Actor) ensureLoaded() error {
	if a.loaded {
		return nil
	}
	if err := a.model.Load(a.ctx, a.emit); err != nil {
		return fmt.Errorf("failed to load model: %w", err)
	}
	a.loaded = true
	a.log.Info("[Worker] model loaded")
	a.emit(Ready{})
	return nil
}

// classify runs the model, turning a panic into an error reply.
func (a *Actor) classify(c Classify) (out emotion.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			a.log.WithField("panic", r).Error("[Worker] classifier panicked")
			err = fmt.Errorf("classifier panic: %v", r)
		}
	}()
	out, err = a.model.Classify(a.ctx, c.Image)
	if err == nil && len(out) == 0 {
		err = faults.ErrEmptyResult
	}
	if errors.Is(err, context.Canceled) && a.ctx.Err() != nil {
		err = faults.ErrWorkerTerminated
	}
	return out, err
}

func (a *Actor) emit(r Reply) {
	select {
	case a.replies <- r:
	case <-a.ctx.Done():
	}
}
