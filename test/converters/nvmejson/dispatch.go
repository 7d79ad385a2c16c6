package nvmejson

import (
	"strconv"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-steplib/steps-nvme-test-report/test/testreport"
	"github.com/buger/jsonparser"
	"github.com/pkg/errors"
)

// handler consumes the raw value of a recognized key into the accumulator.
type handler[T any] func(acc *T, value []byte, dataType jsonparser.ValueType) error

type (
	topTable     map[string]handler[testreport.Report]
	caseTable    map[string]handler[testreport.Case]
	subcaseTable map[string]handler[testreport.Subcase]
)

func (p *Parser) newTopTable() topTable {
	return topTable{
		"case":    p.parseTopCase,
		"date":    parseTopDate,
		"version": parseTopVersion,
	}
}

func (p *Parser) newCaseTable() caseTable {
	return caseTable{
		"result":  parseCaseResult,
		"speed":   parseCaseSpeed,
		"step":    parseCaseStep,
		"subcase": p.parseCaseSubcase,
		"time":    parseCaseTime,
		"width":   parseCaseWidth,
	}
}

func newSubcaseTable() subcaseTable {
	return subcaseTable{
		"result": parseSubcaseResult,
		"step":   parseSubcaseStep,
	}
}

// dispatch applies table to every key of the object in source order.
// Unknown keys are skipped, the first handler error aborts the walk.
func dispatch[T any](logger log.Logger, object []byte, acc *T, table map[string]handler[T]) error {
	return jsonparser.ObjectEach(object, func(key []byte, value []byte, dataType jsonparser.ValueType, _ int) error {
		h, ok := table[string(key)]
		if !ok {
			logger.Debugf("key |%s| is not supported! skip ...", key)
			return nil
		}
		return h(acc, value, dataType)
	})
}

// eachEntry walks the named entries of a case or subcase object. Every entry
// has to be an object itself.
func eachEntry(object []byte, fn func(name string, entry []byte) error) error {
	return jsonparser.ObjectEach(object, func(key []byte, value []byte, dataType jsonparser.ValueType, _ int) error {
		if dataType != jsonparser.Object {
			return shapeError(string(key), "an object", dataType)
		}
		return fn(string(key), value)
	})
}

func countKeys(object []byte) (int, error) {
	count := 0
	err := jsonparser.ObjectEach(object, func(_ []byte, _ []byte, _ jsonparser.ValueType, _ int) error {
		count++
		return nil
	})
	return count, err
}

func parseTopDate(r *testreport.Report, value []byte, dataType jsonparser.ValueType) error {
	date, err := stringValue("date", value, dataType)
	if err != nil {
		return err
	}
	r.Date = &date
	return nil
}

func parseTopVersion(r *testreport.Report, value []byte, dataType jsonparser.ValueType) error {
	version, err := stringValue("version", value, dataType)
	if err != nil {
		return err
	}
	r.Version = &version
	return nil
}

func parseCaseResult(c *testreport.Case, value []byte, dataType jsonparser.ValueType) error {
	code, err := resultValue(value, dataType)
	if err != nil {
		return err
	}
	c.Result = testreport.ResultOf(code)
	return nil
}

func parseCaseSpeed(c *testreport.Case, value []byte, dataType jsonparser.ValueType) error {
	speed, err := numberValue("speed", value, dataType)
	if err != nil {
		return err
	}
	c.SpeedGTPerSec = &speed
	return nil
}

func parseCaseStep(c *testreport.Case, value []byte, dataType jsonparser.ValueType) error {
	steps, err := stepsValue(value, dataType)
	if err != nil {
		return err
	}
	c.Steps = steps
	return nil
}

func parseCaseTime(c *testreport.Case, value []byte, dataType jsonparser.ValueType) error {
	t, err := intValue("time", value, dataType)
	if err != nil {
		return err
	}
	c.Time = &t
	return nil
}

func parseCaseWidth(c *testreport.Case, value []byte, dataType jsonparser.ValueType) error {
	width, err := intValue("width", value, dataType)
	if err != nil {
		return err
	}
	c.WidthLanes = &width
	return nil
}

func parseSubcaseResult(s *testreport.Subcase, value []byte, dataType jsonparser.ValueType) error {
	code, err := resultValue(value, dataType)
	if err != nil {
		return err
	}
	s.Result = testreport.ResultOf(code)
	return nil
}

func parseSubcaseStep(s *testreport.Subcase, value []byte, dataType jsonparser.ValueType) error {
	steps, err := stepsValue(value, dataType)
	if err != nil {
		return err
	}
	s.Steps = steps
	return nil
}

func stringValue(key string, value []byte, dataType jsonparser.ValueType) (string, error) {
	if dataType != jsonparser.String {
		return "", shapeError(key, "a string", dataType)
	}
	s, err := jsonparser.ParseString(value)
	if err != nil {
		return "", valueError(key, err)
	}
	return s, nil
}

// intValue accepts JSON integers only, 1.0 or 1e3 are rejected.
func intValue(key string, value []byte, dataType jsonparser.ValueType) (int64, error) {
	if dataType != jsonparser.Number {
		return 0, shapeError(key, "an integer", dataType)
	}
	i, err := jsonparser.ParseInt(value)
	if err != nil {
		return 0, valueError(key, err)
	}
	return i, nil
}

// resultValue accepts any JSON integer. Codes beyond int64 are clamped to
// the nearest bound, which keeps their sign and so their classification.
func resultValue(value []byte, dataType jsonparser.ValueType) (int64, error) {
	if dataType != jsonparser.Number {
		return 0, shapeError("result", "an integer", dataType)
	}
	code, err := strconv.ParseInt(string(value), 10, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, valueError("result", jsonparser.MalformedValueError)
	}
	return code, nil
}

func numberValue(key string, value []byte, dataType jsonparser.ValueType) (float64, error) {
	if dataType != jsonparser.Number {
		return 0, shapeError(key, "a number", dataType)
	}
	f, err := jsonparser.ParseFloat(value)
	if err != nil {
		return 0, valueError(key, err)
	}
	return f, nil
}

// stepsValue returns a non-nil slice for an empty array.
func stepsValue(value []byte, dataType jsonparser.ValueType) ([]string, error) {
	if dataType != jsonparser.Array {
		return nil, shapeError("step", "an array of strings", dataType)
	}

	steps := []string{}
	var itemErr error
	if _, err := jsonparser.ArrayEach(value, func(item []byte, itemType jsonparser.ValueType, _ int, err error) {
		if itemErr != nil {
			return
		}
		if err != nil {
			itemErr = valueError("step", err)
			return
		}

		step, err := stringValue("step", item, itemType)
		if err != nil {
			itemErr = err
			return
		}
		steps = append(steps, step)
	}); err != nil {
		return nil, valueError("step", err)
	}
	if itemErr != nil {
		return nil, itemErr
	}

	return steps, nil
}
