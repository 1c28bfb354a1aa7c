package diag

// Severity orders diagnostics; lowering failures are SevError, findings that
// leave the output usable are SevWarning.
type Severity uint8

const (
	SevInfo Severity = iota
	SevWarning
	SevError
)

var severityNames = [...]string{"INFO", "WARNING", "ERROR"}

func (s Severity) String() string {
	if int(s) < len(severityNames) {
		return severityNames[s]
	}
	return "UNKNOWN"
}

// Blocking reports whether a diagnostic of this severity fails the run.
func (s Severity) Blocking() bool { return s >= SevError }
