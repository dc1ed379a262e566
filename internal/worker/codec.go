package worker

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/kozaktomas/emotion-sense/internal/emotion"
	"github.com/vmihailenco/msgpack/v5"
)

// maxFrameSize bounds a single protocol frame.
const maxFrameSize = 64 << 20

var (
	// ErrUnknownMessage is returned for a command or status the protocol does not define.
	ErrUnknownMessage = errors.New("unknown worker message")
	// ErrFrameTooLarge is returned when a frame header announces more than maxFrameSize bytes.
	ErrFrameTooLarge = errors.New("worker frame too large")
)

// envelope is the wire form of every command and reply.
type envelope struct {
	Command  string               `msgpack:"command,omitempty"`
	Status   string               `msgpack:"status,omitempty"`
	ID       string               `msgpack:"id,omitempty"`
	Image    []byte               `msgpack:"image,omitempty"`
	File     string               `msgpack:"file,omitempty"`
	Progress float64              `msgpack:"progress,omitempty"`
	Output   []emotion.Prediction `msgpack:"output,omitempty"`
	Error    string               `msgpack:"error,omitempty"`
}

func commandEnvelope(cmd Command) (envelope, error) {
	switch c := cmd.(type) {
	case Initiate:
		return envelope{Command: CommandInitiate}, nil
	case Classify:
		return envelope{Command: CommandClassify, ID: c.ID, Image: c.Image}, nil
	default:
		return envelope{}, fmt.Errorf("%w: command %T", ErrUnknownMessage, cmd)
	}
}

func (e envelope) command() (Command, error) {
	switch e.Command {
	case CommandInitiate:
		return Initiate{}, nil
	case CommandClassify:
		return Classify{ID: e.ID, Image: e.Image}, nil
	default:
		return nil, fmt.Errorf("%w: command %q", ErrUnknownMessage, e.Command)
	}
}

func replyEnvelope(r Reply) (envelope, error) {
	switch m := r.(type) {
	case Initiated:
		return envelope{Status: StatusInitiate, File: m.File}, nil
	case Progressed:
		return envelope{Status: StatusProgress, File: m.File, Progress: m.Progress}, nil
	case FileDone:
		return envelope{Status: StatusDone, File: m.File}, nil
	case Ready:
		return envelope{Status: StatusReady}, nil
	case Completed:
		return envelope{Status: StatusComplete, ID: m.ID, Output: m.Output}, nil
	case Failed:
		return envelope{Status: StatusError, ID: m.ID, Error: m.Error}, nil
	default:
		return envelope{}, fmt.Errorf("%w: reply %T", ErrUnknownMessage, r)
	}
}

func (e envelope) reply() (Reply, error) {
	switch e.Status {
	case StatusInitiate:
		return Initiated{File: e.File}, nil
	case StatusProgress:
		return Progressed{File: e.File, Progress: e.Progress}, nil
	case StatusDone:
		return FileDone{File: e.File}, nil
	case StatusReady:
		return Ready{}, nil
	case StatusComplete:
		return Completed{ID: e.ID, Output: e.Output}, nil
	case StatusError:
		return Failed{ID: e.ID, Error: e.Error}, nil
	default:
		return nil, fmt.Errorf("%w: status %q", ErrUnknownMessage, e.Status)
	}
}

// Protocol: [uint32 big-endian length][msgpack envelope]
func writeFrame(w io.Writer, e envelope) error {
	data, err := msgpack.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	if err := binary.Write(w, binary.BigEndian, uint32(len(data))); err != nil {
		return fmt.Errorf("failed to write frame header: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// readFrame returns io.EOF when the stream ends cleanly between frames.
func readFrame(r io.Reader) (envelope, error) {
	header := make([]byte, 4)
	if _, err := io.ReadFull(r, header); err != nil {
		return envelope{}, err
	}

	size := binary.BigEndian.Uint32(header)
	if size > maxFrameSize {
		return envelope{}, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, size)
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return envelope{}, fmt.Errorf("failed to read frame: %w", err)
	}

	var e envelope
	if err := msgpack.Unmarshal(body, &e); err != nil {
		return envelope{}, fmt.Errorf("failed to decode message: %w", err)
	}
	return e, nil
}

// WriteCommand encodes one command frame.
func WriteCommand(w io.Writer, cmd Command) error {
	e, err := commandEnvelope(cmd)
	if err != nil {
		return err
	}
	return writeFrame(w, e)
}

// ReadCommand decodes one command frame.
func ReadCommand(r io.Reader) (Command, error) {
	e, err := readFrame(r)
	if err != nil {
		return nil, err
	}
	return e.command()
}

// WriteReply encodes one reply frame.
func WriteReply(w io.Writer, reply Reply) error {
	e, err := replyEnvelope(reply)
	if err != nil {
		return err
	}
	return writeFrame(w, e)
}

// ReadReply decodes one reply frame.
func ReadReply(r io.Reader) (Reply, error) {
	e, err := readFrame(r)
	if err != nil {
		return nil, err
	}
	return e.reply()
}
