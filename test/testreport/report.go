// Package testreport holds the parsed form of an NVMe test report.
//
// Optional fields are pointers (or nil slices): a nil value means the key was
// absent in the source file, which consumers must keep apart from zero values.
package testreport

import (
	"fmt"
	"strings"
)

// Report is the root of a parsed report file.
type Report struct {
	Date    *string `json:"date,omitempty"`
	Version *string `json:"version,omitempty"`
	// Cases keeps the key order of the source "case" object.
	Cases []Case `json:"cases"`
}

// Case is a named unit of test work.
type Case struct {
	Name          string   `json:"name"`
	Time          *int64   `json:"time,omitempty"`
	SpeedGTPerSec *float64 `json:"speed,omitempty"`
	WidthLanes    *int64   `json:"width,omitempty"`
	Result        *Result  `json:"result,omitempty"`
	Steps         []string `json:"step"`
	// Score is set only when the source declared a non-empty subcase object.
	Score *Score `json:"score,omitempty"`
	// Subcases is nil when the case has no subcase key and empty (not nil)
	// when the subcase object is {}. The two encode as null and [].
	Subcases []Subcase `json:"subcase"`
}

// Subcase is a named unit of work inside a Case.
type Subcase struct {
	Name   string   `json:"name"`
	Result *Result  `json:"result,omitempty"`
	Steps  []string `json:"step"`
}

// HasSubcases reports whether the case declared a subcase object, even an empty one.
func (c Case) HasSubcases() bool {
	return c.Subcases != nil
}

// HasSteps ...
func (c Case) HasSteps() bool {
	return c.Steps != nil
}

// HasSteps ...
func (s Subcase) HasSteps() bool {
	return s.Steps != nil
}

// CaseByName returns the case introduced by the given key.
func (r Report) CaseByName(name string) (Case, bool) {
	for _, c := range r.Cases {
		if c.Name == name {
			return c, true
		}
	}
	return Case{}, false
}

// Outcomes tallies the case level results of the report.
func (r Report) Outcomes() Score {
	var score Score
	for _, c := range r.Cases {
		score.add(c.Result)
	}
	return score
}

// NumberedSteps renders steps as "1. step" lines.
func NumberedSteps(steps []string) string {
	lines := make([]string, 0, len(steps))
	for i, step := range steps {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, step))
	}
	return strings.Join(lines, "\n")
}
