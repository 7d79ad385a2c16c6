package testreport

import "fmt"

// Score counts the subcase outcomes of a case.
type Score struct {
	Pass int `json:"pass"`
	Fail int `json:"fail"`
	Skip int `json:"skip"`
}

// Aggregate tallies the subcases that declared a result. Subcases without a
// result are not counted at all.
func Aggregate(subcases []Subcase) Score {
	var score Score
	for _, subcase := range subcases {
		score.add(subcase.Result)
	}
	return score
}

// Total ...
func (s Score) Total() int {
	return s.Pass + s.Fail + s.Skip
}

// String renders the score the way the report tables show it.
func (s Score) String() string {
	return fmt.Sprintf("Pass:%d, Fail:%d, Skip:%d", s.Pass, s.Fail, s.Skip)
}

func (s *Score) add(result *Result) {
	if result == nil {
		return
	}

	switch *result {
	case Pass:
		s.Pass++
	case Fail:
		s.Fail++
	case Skip:
		s.Skip++
	}
}
