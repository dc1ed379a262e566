package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

// Serve runs the child side of the worker protocol: commands are read from r,
// handled by an Actor hosting model, and replies are written to w. It returns
// when r is exhausted or ctx is cancelled.
func Serve(ctx context.Context, r io.Reader, w io.Writer, model Model, log *logrus.Logger) error {
	actor := Spawn(model, log)

	var wg sync.WaitGroup
	writeErr := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for reply := range actor.Replies() {
			if err := WriteReply(w, reply); err != nil {
				writeErr <- err
				return
			}
		}
	}()

	readErr := make(chan error, 1)
	go func() {
		for {
			cmd, err := ReadCommand(r)
			if err != nil {
				readErr <- err
				return
			}
			if err := actor.Send(cmd); err != nil {
				readErr <- err
				return
			}
		}
	}()

	var result error
	select {
	case <-ctx.Done():
	case err := <-readErr:
		if !errors.Is(err, io.EOF) {
			result = fmt.Errorf("failed to read command: %w", err)
		}
	case err := <-writeErr:
		result = fmt.Errorf("failed to write reply: %w", err)
	}

	actor.Terminate()
	wg.Wait()
	return result
}
