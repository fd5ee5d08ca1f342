package ir

// Version constants for the interchange format and engine.
const (
	// TraceFormat identifies the interchange trace format emitted for
	// retained traces.
	TraceFormat = "ITF"

	// EngineVersion is the tracewalk engine version.
	EngineVersion = "0.1.0"
)
