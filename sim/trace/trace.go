package trace

// TraceLevel controls the verbosity of decision tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelDecisions captures every fulfillment decision.
	TraceLevelDecisions TraceLevel = "decisions"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:      true,
	TraceLevelDecisions: true,
	"":                  true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
}

// Enabled reports whether decisions should be recorded.
func (c TraceConfig) Enabled() bool {
	return c.Level == TraceLevelDecisions
}

// DispatchTrace collects decision records during a simulation.
type DispatchTrace struct {
	Config     TraceConfig
	Dispatches []DispatchRecord
}

// NewDispatchTrace creates a DispatchTrace ready for recording.
func NewDispatchTrace(config TraceConfig) *DispatchTrace {
	return &DispatchTrace{
		Config:     config,
		Dispatches: make([]DispatchRecord, 0),
	}
}

// RecordDispatch appends a dispatch record. Safe on a nil trace.
func (dt *DispatchTrace) RecordDispatch(r DispatchRecord) {
	if dt == nil {
		return
	}
	dt.Dispatches = append(dt.Dispatches, r)
}
