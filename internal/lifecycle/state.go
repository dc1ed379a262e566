package lifecycle

import "time"

// State represents the model lifecycle.
type State string

// State constants define the lifecycle of the hosted model.
const (
	StateUninitialized State = "uninitialized"
	StateDownloading   State = "downloading"
	StateReady         State = "ready"
	StateFaulted       State = "faulted"
)

// Phase is the download phase of a single model file.
type Phase string

const (
	PhaseInitiate    Phase = "initiate"
	PhaseProgressing Phase = "progress"
	PhaseDone        Phase = "done"
)

// ProgressItem tracks the download of one model file.
type ProgressItem struct {
	File     string  `json:"file"`
	Progress float64 `json:"progress"` // 0-100
	Phase    Phase   `json:"phase"`
}

// Status is a point-in-time view of the manager.
type Status struct {
	State    State          `json:"state"`
	Ready    bool           `json:"ready"`
	Progress []ProgressItem `json:"progress"`
	Error    string         `json:"error,omitempty"`
}

// Event is broadcast to listeners on every lifecycle change.
type Event struct {
	Type   string    `json:"type"` // state, progress or fault
	Status Status    `json:"status"`
	Time   time.Time `json:"time"`
}
