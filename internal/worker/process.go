package worker

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/kozaktomas/emotion-sense/internal/constants"
	"github.com/kozaktomas/emotion-sense/internal/faults"
	"github.com/sirupsen/logrus"
)

// ReplyFD is the file descriptor a child worker writes replies to.
// Stdout stays free for stray prints, stderr carries logs.
const ReplyFD = 3

const stopTimeout = 2 * time.Second

// Process is a worker running in a child process. Commands are framed onto
// the child's stdin, replies are read from a dedicated pipe.
type Process struct {
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	data    io.ReadCloser
	replies chan Reply
	log     *logrus.Logger

	writeMu   sync.Mutex
	exited    chan struct{}
	terminate sync.Once
	readDone  chan struct{}
}

// StartProcess launches path with args as a worker child.
func StartProcess(path string, args []string, log *logrus.Logger) (*Process, error) {
	cmd := exec.Command(path, args...)

	// Create a side-channel pipe (FD 3) for clean reply transfer
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create pipe: %w", err)
	}
	cmd.ExtraFiles = []*os.File{w}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("worker failed to start: %w", err)
	}

	// Close the write-end in the parent so only the child holds it
	w.Close()

	p := &Process{
		cmd:      cmd,
		stdin:    stdin,
		data:     r,
		replies:  make(chan Reply, constants.ReplyChannelBuffer),
		log:      log,
		exited:   make(chan struct{}),
		readDone: make(chan struct{}),
	}

	go p.readReplies()
	go p.logStderr(stderr)
	go p.wait()

	log.WithFields(logrus.Fields{"pid": cmd.Process.Pid, "path": path}).Info("[Worker] process started")
	return p, nil
}

func (p *Process) Send(cmd Command) error {
	select {
	case <-p.exited:
		return faults.ErrWorkerTerminated
	default:
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if err := WriteCommand(p.stdin, cmd); err != nil {
		if errors.Is(err, os.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
			return faults.ErrWorkerTerminated
		}
		return err
	}
	return nil
}

func (p *Process) Replies() <-chan Reply {
	return p.replies
}

// Terminate closes stdin so the child exits on its own, killing it after a grace period.
func (p *Process) Terminate() {
	p.terminate.Do(func() {
		p.stdin.Close()

		select {
		case <-p.exited:
		case <-time.After(stopTimeout):
			p.log.Warn("[Worker] process did not exit, killing")
			if err := p.cmd.Process.Kill(); err != nil {
				p.log.WithError(err).Error("[Worker] failed to kill process")
			}
			<-p.exited
		}
		p.data.Close()
		<-p.readDone
	})
}

func (p *Process) readReplies() {
	defer close(p.readDone)
	defer close(p.replies)

	for {
		reply, err := ReadReply(p.data)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				p.log.WithError(err).Error("[Worker] failed to read reply")
			}
			return
		}
		p.replies <- reply
	}
}

// logStderr forwards the child's log lines.
func (p *Process) logStderr(stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			p.log.WithField("pid", p.cmd.Process.Pid).Debug("[Worker] " + line)
		}
	}
}

func (p *Process) wait() {
	err := p.cmd.Wait()
	if err != nil {
		p.log.WithError(err).Warn("[Worker] process exited")
	} else {
		p.log.Info("[Worker] process exited")
	}
	close(p.exited)
}
