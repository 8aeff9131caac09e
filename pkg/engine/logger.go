package engine

import "log"

// Logger mirrors engine activity to the standard logger for --debug runs.
// The user-facing trace lives in the session console; this exists for
// developers of the engine itself.
type Logger struct{}

// NewLogger creates a debug logger.
func NewLogger() *Logger {
	return &Logger{}
}

// LogStep logs one node step.
func (l *Logger) LogStep(stepCount int, nodeID, nodeType string) {
	log.Printf("step %d: node %s (%s)", stepCount, nodeID, nodeType)
}

// LogVariableChange logs a variable mutation.
func (l *Logger) LogVariableChange(ref string, oldValue, newValue interface{}) {
	log.Printf("variable %s: %v -> %v", ref, oldValue, newValue)
}
