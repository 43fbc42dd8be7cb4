// Package validator runs the validation engine for a source snapshot and
// describes its outcome. The engine itself is the external amphtml-validator
// command; this package only invokes it and parses what it reports.
package validator

// Profile selects the validation rules, i.e. the validator's html format.
type Profile string

// Profiles understood by amphtml-validator.
const (
	ProfileAMP       Profile = "AMP"
	ProfileAMP4Email Profile = "AMP4EMAIL"
	ProfileAMP4Ads   Profile = "AMP4ADS"
)

// Status is the overall outcome of a validation run.
type Status string

const (
	StatusUnknown Status = "UNKNOWN"
	StatusPass    Status = "PASS"
	StatusFail    Status = "FAIL"
)

// Severity of a single finding.
type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
)

// Error is one finding reported by the validator.
type Error struct {
	Severity Severity
	Line     int
	Col      int
	Code     string
	Message  string
	SpecURL  string
	Params   []string
}

// Result is the outcome of validating exactly one source snapshot.
type Result struct {
	Status Status
	Errors []Error
}

// Passed reports whether the validator accepted the source.
func (r Result) Passed() bool {
	return r.Status == StatusPass
}

// ErrorCount returns the number of findings with error severity.
func (r Result) ErrorCount() int {
	return r.count(SeverityError)
}

// WarningCount returns the number of findings with warning severity.
func (r Result) WarningCount() int {
	return r.count(SeverityWarning)
}

func (r Result) count(s Severity) int {
	n := 0
	for _, e := range r.Errors {
		if e.Severity == s {
			n++
		}
	}
	return n
}
