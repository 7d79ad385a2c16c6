// Package nvmejson parses the JSON report written by the NVMe test runner.
//
// The report is walked on three nesting levels (top, case, subcase). Every
// level has its own table of recognized keys; unknown keys are skipped and the
// first malformed value aborts the whole parse.
package nvmejson

import (
	"io"

	"github.com/bitrise-io/go-utils/fileutil"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-steplib/steps-nvme-test-report/test/testreport"
	"github.com/buger/jsonparser"
	"github.com/docker/go-units"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
)

// State is the traversal phase of a Parser.
type State int

// Parser states
const (
	Idle State = iota
	Reading
	TraversingCases
	TraversingSubcases
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Reading:
		return "reading"
	case TraversingCases:
		return "traversing cases"
	case TraversingSubcases:
		return "traversing subcases"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Parser builds a testreport.Report from a report file. It is not reentrant:
// a Parser runs one parse at a time.
type Parser struct {
	logger   log.Logger
	progress io.Writer
	state    State

	topKeys     topTable
	caseKeys    caseTable
	subcaseKeys subcaseTable
}

// NewParser ...
func NewParser(logger log.Logger) *Parser {
	p := &Parser{logger: logger}
	p.topKeys = p.newTopTable()
	p.caseKeys = p.newCaseTable()
	p.subcaseKeys = newSubcaseTable()
	return p
}

// SetProgressWriter enables a progress bar over the case loop. A nil writer disables it.
func (p *Parser) SetProgressWriter(w io.Writer) {
	p.progress = w
}

// State returns the phase of the current or the last parse.
func (p *Parser) State() State {
	return p.state
}

// ParseFile reads and parses the report file at pth.
func (p *Parser) ParseFile(pth string) (testreport.Report, error) {
	p.setState(Reading)

	data, err := fileutil.ReadBytesFromFile(pth)
	if err != nil {
		p.setState(Failed)
		return testreport.Report{}, errors.Wrapf(err, "failed to read %s", pth)
	}

	p.logger.Infof("Start parse %s (%s) ...", pth, units.HumanSize(float64(len(data))))

	return p.parse(data)
}

// Parse parses the raw content of a report file.
func (p *Parser) Parse(data []byte) (testreport.Report, error) {
	p.setState(Reading)
	return p.parse(data)
}

func (p *Parser) parse(data []byte) (testreport.Report, error) {
	report, err := p.parseTop(data)
	if err != nil {
		p.setState(Failed)
		return testreport.Report{}, err
	}

	p.setState(Done)
	return report, nil
}

func (p *Parser) parseTop(data []byte) (testreport.Report, error) {
	var root interface{}
	if err := json.Unmarshal(data, &root); err != nil {
		return testreport.Report{}, errors.Wrapf(ErrMalformedJSON, "%s", err)
	}
	if _, ok := root.(map[string]interface{}); !ok {
		return testreport.Report{}, errors.Wrap(ErrSchemaViolation, "required an object at the report root")
	}

	var report testreport.Report
	if err := dispatch(p.logger, data, &report, p.topKeys); err != nil {
		return testreport.Report{}, err
	}

	return report, nil
}

func (p *Parser) parseTopCase(r *testreport.Report, value []byte, dataType jsonparser.ValueType) error {
	if dataType != jsonparser.Object {
		return shapeError("case", "an object", dataType)
	}

	count, err := countKeys(value)
	if err != nil {
		return valueError("case", err)
	}

	p.setState(TraversingCases)

	bar := p.newProgressBar(count, "Parsing Case")
	defer func() {
		if bar != nil {
			if err := bar.Finish(); err != nil {
				p.logger.Warnf("Failed to finish progress bar: %s", err)
			}
		}
	}()

	cases := make([]testreport.Case, 0, count)
	index := map[string]int{}

	if err := eachEntry(value, func(name string, entry []byte) error {
		p.logger.Debugf("Parse %s", name)

		c := testreport.Case{Name: name}
		if err := dispatch(p.logger, entry, &c, p.caseKeys); err != nil {
			return errors.Wrapf(err, "case |%s|", name)
		}

		// a repeated key replaces the earlier entry in place
		if i, ok := index[name]; ok {
			cases[i] = c
		} else {
			index[name] = len(cases)
			cases = append(cases, c)
		}

		if bar != nil {
			if err := bar.Add(1); err != nil {
				p.logger.Warnf("Failed to update progress bar: %s", err)
			}
		}
		return nil
	}); err != nil {
		return err
	}

	r.Cases = cases
	return nil
}

// parseCaseSubcase attaches a Score only for a non-empty subcase object; {}
// yields an empty Subcases slice without a Score.
func (p *Parser) parseCaseSubcase(c *testreport.Case, value []byte, dataType jsonparser.ValueType) error {
	if dataType != jsonparser.Object {
		return shapeError("subcase", "an object", dataType)
	}

	count, err := countKeys(value)
	if err != nil {
		return valueError("subcase", err)
	}
	if count == 0 {
		c.Subcases = []testreport.Subcase{}
		c.Score = nil
		return nil
	}

	p.setState(TraversingSubcases)

	subcases := make([]testreport.Subcase, 0, count)
	index := map[string]int{}

	if err := eachEntry(value, func(name string, entry []byte) error {
		p.logger.Debugf("Parse %s", name)

		s := testreport.Subcase{Name: name}
		if err := dispatch(p.logger, entry, &s, p.subcaseKeys); err != nil {
			return errors.Wrapf(err, "subcase |%s|", name)
		}

		if i, ok := index[name]; ok {
			subcases[i] = s
		} else {
			index[name] = len(subcases)
			subcases = append(subcases, s)
		}
		return nil
	}); err != nil {
		return err
	}

	score := testreport.Aggregate(subcases)
	c.Subcases = subcases
	c.Score = &score

	p.setState(TraversingCases)
	return nil
}

func (p *Parser) newProgressBar(total int, description string) *progressbar.ProgressBar {
	if p.progress == nil {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(p.progress),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
	)
}

func (p *Parser) setState(state State) {
	if p.state == state {
		return
	}
	p.logger.Debugf("parser state: %s -> %s", p.state, state)
	p.state = state
}
