package harness

// Trace event ops.
const (
	OpState    = "state"
	OpRotate   = "rotate"
	OpFeatured = "featured"
	OpAdvance  = "advance"
	OpFail     = "fail"
)

// Outcomes recorded on rotate and featured events.
const (
	OutcomeOK               = "ok"
	OutcomeNone             = "none"
	OutcomeNoEligible       = "no_eligible"
	OutcomeConflict         = "conflict"
	OutcomeStoreUnavailable = "store_unavailable"
	OutcomeError            = "error"
)

// Sources recorded on featured events.
const (
	SourceCache = "cache"
	SourceStore = "store"
)

// TraceEvent is one recorded step or state transition.
type TraceEvent struct {
	Seq     int    `json:"seq"`
	Op      string `json:"op"`
	CycleID string `json:"cycle_id,omitempty"`
	State   string `json:"state,omitempty"`
	Artist  string `json:"artist,omitempty"`
	Outcome string `json:"outcome,omitempty"`
	Source  string `json:"source,omitempty"`
	Method  string `json:"method,omitempty"`
	At      string `json:"at,omitempty"`
}

// field returns the named field for subset matching.
func (e TraceEvent) field(name string) (string, bool) {
	switch name {
	case "op":
		return e.Op, true
	case "cycle_id":
		return e.CycleID, true
	case "state":
		return e.State, true
	case "artist":
		return e.Artist, true
	case "outcome":
		return e.Outcome, true
	case "source":
		return e.Source, true
	case "method":
		return e.Method, true
	case "at":
		return e.At, true
	default:
		return "", false
	}
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success: every step expectation and every
	// assertion held.
	Pass bool `json:"pass"`

	// Trace contains all recorded events in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Record appends e to the trace with the next sequence number.
func (r *Result) Record(e TraceEvent) TraceEvent {
	e.Seq = len(r.Trace) + 1
	r.Trace = append(r.Trace, e)
	return e
}
