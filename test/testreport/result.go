package testreport

import "fmt"

// SkipCode is the negated "operation not supported" errno (EOPNOTSUPP on
// Linux) the test runner reports for cases the device does not support.
const SkipCode = -95

// Result is the classified outcome of a case or subcase.
type Result int

// Result values
const (
	Pass Result = iota
	Fail
	Skip
)

// Classify maps a raw result code to a Result: negative codes fail, except
// SkipCode which skips.
func Classify(code int64) Result {
	switch {
	case code >= 0:
		return Pass
	case code == SkipCode:
		return Skip
	default:
		return Fail
	}
}

// String ...
func (r Result) String() string {
	switch r {
	case Pass:
		return "pass"
	case Fail:
		return "fail"
	case Skip:
		return "skip"
	default:
		return fmt.Sprintf("result(%d)", int(r))
	}
}

// Symbol returns the check mark used in rendered tables.
func (r Result) Symbol() string {
	switch r {
	case Pass:
		return "✓"
	case Fail:
		return "✗"
	case Skip:
		return "─"
	default:
		return "?"
	}
}

// MarshalText ...
func (r Result) MarshalText() ([]byte, error) {
	switch r {
	case Pass, Fail, Skip:
		return []byte(r.String()), nil
	default:
		return nil, fmt.Errorf("invalid result: %d", int(r))
	}
}

// UnmarshalText ...
func (r *Result) UnmarshalText(text []byte) error {
	switch string(text) {
	case "pass":
		*r = Pass
	case "fail":
		*r = Fail
	case "skip":
		*r = Skip
	default:
		return fmt.Errorf("invalid result: %s", text)
	}
	return nil
}

// ResultOf returns a pointer to the classified code, the form optional
// result fields are stored in.
func ResultOf(code int64) *Result {
	r := Classify(code)
	return &r
}
