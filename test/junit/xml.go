package junit

import (
	"encoding/xml"
	"strconv"

	"github.com/bitrise-steplib/steps-nvme-test-report/test/testreport"
)

const xmlHeader = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"

// XML ...
type XML struct {
	XMLName    xml.Name    `xml:"testsuites"`
	Name       string      `xml:"name,attr,omitempty"`
	Tests      int         `xml:"tests,attr"`
	Failures   int         `xml:"failures,attr"`
	Skipped    int         `xml:"skipped,attr"`
	Properties *Properties `xml:"properties,omitempty"`
	TestSuites []TestSuite `xml:"testsuite"`
}

// TestSuite ...
type TestSuite struct {
	XMLName    xml.Name    `xml:"testsuite"`
	Name       string      `xml:"name,attr"`
	Tests      int         `xml:"tests,attr"`
	Failures   int         `xml:"failures,attr"`
	Skipped    int         `xml:"skipped,attr"`
	Time       float64     `xml:"time,attr"`
	Properties *Properties `xml:"properties,omitempty"`
	TestCases  []TestCase  `xml:"testcase"`
}

// TestCase ...
type TestCase struct {
	XMLName   xml.Name `xml:"testcase"`
	Name      string   `xml:"name,attr"`
	ClassName string   `xml:"classname,attr"`
	Time      float64  `xml:"time,attr"`
	Failure   *Failure `xml:"failure,omitempty"`
	Skipped   *Skipped `xml:"skipped,omitempty"`
	SystemOut string   `xml:"system-out,omitempty"`
}

// Failure ...
type Failure struct {
	XMLName xml.Name `xml:"failure"`
	Message string   `xml:"message,attr,omitempty"`
}

// Skipped ...
type Skipped struct {
	XMLName xml.Name `xml:"skipped"`
	Message string   `xml:"message,attr,omitempty"`
}

// Property ...
type Property struct {
	XMLName xml.Name `xml:"property"`
	Name    string   `xml:"name,attr"`
	Value   string   `xml:"value,attr"`
}

// Properties ...
type Properties struct {
	XMLName  xml.Name   `xml:"properties"`
	Property []Property `xml:"property"`
}

// Convert maps a parsed report to JUnit: every case becomes a testsuite.
// Subcases become its testcases, a case without subcases is its own single
// testcase.
func Convert(report testreport.Report) XML {
	x := XML{Name: "NVMe Test Report"}

	var props []Property
	if report.Version != nil {
		props = append(props, Property{Name: "version", Value: *report.Version})
	}
	if report.Date != nil {
		props = append(props, Property{Name: "date", Value: *report.Date})
	}
	x.Properties = newProperties(props)

	for _, c := range report.Cases {
		suite := convertCase(c)
		x.Tests += suite.Tests
		x.Failures += suite.Failures
		x.Skipped += suite.Skipped
		x.TestSuites = append(x.TestSuites, suite)
	}

	return x
}

// Marshal renders the document with an XML declaration.
func (x XML) Marshal() ([]byte, error) {
	data, err := xml.MarshalIndent(x, "", " ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xmlHeader), data...), nil
}

func convertCase(c testreport.Case) TestSuite {
	suite := TestSuite{Name: c.Name}
	if c.Time != nil {
		suite.Time = float64(*c.Time)
	}

	var props []Property
	if c.SpeedGTPerSec != nil {
		props = append(props, Property{Name: "speed", Value: strconv.FormatFloat(*c.SpeedGTPerSec, 'g', -1, 64)})
	}
	if c.WidthLanes != nil {
		props = append(props, Property{Name: "width", Value: strconv.FormatInt(*c.WidthLanes, 10)})
	}
	if c.Result != nil {
		props = append(props, Property{Name: "result", Value: c.Result.String()})
	}
	suite.Properties = newProperties(props)

	if len(c.Subcases) == 0 {
		tc := newTestCase(c.Name, c.Name, c.Result, c.Steps)
		tc.Time = suite.Time
		suite.TestCases = []TestCase{tc}
	} else {
		for _, s := range c.Subcases {
			suite.TestCases = append(suite.TestCases, newTestCase(s.Name, c.Name, s.Result, s.Steps))
		}
	}

	for _, tc := range suite.TestCases {
		suite.Tests++
		if tc.Failure != nil {
			suite.Failures++
		}
		if tc.Skipped != nil {
			suite.Skipped++
		}
	}

	return suite
}

func newTestCase(name, className string, result *testreport.Result, steps []string) TestCase {
	tc := TestCase{
		Name:      name,
		ClassName: className,
		SystemOut: testreport.NumberedSteps(steps),
	}

	if result != nil {
		switch *result {
		case testreport.Fail:
			tc.Failure = &Failure{Message: "failed"}
		case testreport.Skip:
			tc.Skipped = &Skipped{Message: "operation not supported"}
		}
	}

	return tc
}

func newProperties(props []Property) *Properties {
	if len(props) == 0 {
		return nil
	}
	return &Properties{Property: props}
}
