// Package worker hosts the emotion classifier behind a message-passing boundary.
//
// The orchestrating side only ever sends Commands and receives Replies; a
// worker may live in a goroutine (Actor) or in a child process (Process).
package worker

import (
	"github.com/kozaktomas/emotion-sense/internal/emotion"
)

// Command is a message to the worker. The set is closed: Initiate, Classify.
type Command interface {
	isCommand()
}

// Initiate asks the worker to load its model.
type Initiate struct{}

// Classify asks the worker to classify an encoded image.
type Classify struct {
	ID    string
	Image []byte
}

func (Initiate) isCommand() {}
func (Classify) isCommand() {}

// Reply is a message from the worker. The set is closed: Initiated,
// Progressed, FileDone, Ready, Completed, Failed.
type Reply interface {
	isReply()
}

// Initiated announces that a model file download has started.
type Initiated struct {
	File string
}

// Progressed reports download progress of a model file in percent.
type Progressed struct {
	File     string
	Progress float64
}

// FileDone announces that a model file has been loaded.
type FileDone struct {
	File string
}

// Ready announces that the model can classify.
type Ready struct{}

// Completed answers the Classify command with the same ID.
type Completed struct {
	ID     string
	Output emotion.Result
}

// Failed reports an error. A Failed without ID is a model load failure.
type Failed struct {
	ID    string
	Error string
}

func (Initiated) isReply()  {}
func (Progressed) isReply() {}
func (FileDone) isReply()   {}
func (Ready) isReply()      {}
func (Completed) isReply()  {}
func (Failed) isReply()     {}

// Wire names of commands and reply statuses.
const (
	CommandInitiate = "initiate"
	CommandClassify = "classify"

	StatusInitiate = "initiate"
	StatusProgress = "progress"
	StatusDone     = "done"
	StatusReady    = "ready"
	StatusComplete = "complete"
	StatusError    = "error"
)

// Handle is the orchestrator's end of a worker.
type Handle interface {
	// Send posts a command. It fails once the worker has terminated.
	Send(cmd Command) error
	// Replies delivers worker messages in send order. It is closed when the worker exits.
	Replies() <-chan Reply
	// Terminate stops the worker and waits for it to exit.
	Terminate()
}
