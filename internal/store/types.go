package store

// Batch outcomes.
const (
	OutcomeIgnored   = "ignored"
	OutcomePending   = "pending"
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
)

// RunStatus is the lifecycle state of a journaled run.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunCompleted RunStatus = "completed"
	RunReset     RunStatus = "reset"
)

// Batch is one processed change batch.
type Batch struct {
	Seq      int64
	Token    string
	Records  int
	Internal bool
	Outcome  string
}

// Run is one registered derivation run.
type Run struct {
	ID            string
	Token         string
	Kind          string
	SourcePath    string
	OutputPath    string
	Status        RunStatus
	RegisteredSeq int64

	// FinishedSeq is 0 while the run is pending.
	FinishedSeq int64
}

// Notification is one callback delivered to a listener.
type Notification struct {
	Seq        int64
	ListenerID string
	Token      string
	Outcome    string
	Message    string
}
