// Package test connects the report file, the change detector and the parser,
// and hands complete reports to the registered handlers.
package test

import (
	"sync"
	"sync/atomic"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-steplib/steps-nvme-test-report/test/detector"
	"github.com/bitrise-steplib/steps-nvme-test-report/test/testreport"
	"github.com/pkg/errors"
)

// ErrParseInProgress is returned when a parse is requested while another one runs.
var ErrParseInProgress = errors.New("a report parse is already in progress")

// ReportParser parses a report file.
type ReportParser interface {
	ParseFile(pth string) (testreport.Report, error)
}

// ParsedHandler receives every successfully parsed report.
type ParsedHandler func(report testreport.Report)

// FailedHandler receives the error of a rejected or failed parse.
type FailedHandler func(pth string, err error)

// Loader serves parse requests one at a time. Only complete reports reach
// the ParsedHandlers; after a failure the last good report stays current.
type Loader struct {
	detector detector.ChangeDetector
	parser   ReportParser
	logger   log.Logger

	inFlight atomic.Bool
	current  atomic.Pointer[testreport.Report]

	mu             sync.Mutex
	parsedHandlers []ParsedHandler
	failedHandlers []FailedHandler
}

// NewLoader ...
func NewLoader(changeDetector detector.ChangeDetector, parser ReportParser, logger log.Logger) *Loader {
	return &Loader{
		detector: changeDetector,
		parser:   parser,
		logger:   logger,
	}
}

// OnParsed registers a handler for parsed reports.
func (l *Loader) OnParsed(handler ParsedHandler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.parsedHandlers = append(l.parsedHandlers, handler)
}

// OnFailed registers a handler for failed parses.
func (l *Loader) OnFailed(handler FailedHandler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failedHandlers = append(l.failedHandlers, handler)
}

// Report returns the last successfully parsed report.
func (l *Loader) Report() (testreport.Report, bool) {
	report := l.current.Load()
	if report == nil {
		return testreport.Report{}, false
	}
	return *report, true
}

// RequestParse parses pth unless it is unchanged since the previous request.
// Requests made while a parse runs are rejected with ErrParseInProgress.
// Handlers are notified after the request is released, so they may request
// a new parse.
func (l *Loader) RequestParse(pth string) error {
	if !l.inFlight.CompareAndSwap(false, true) {
		l.logger.Warnf("Parse of %s rejected: %s", pth, ErrParseInProgress)
		return ErrParseInProgress
	}

	report, parsed, err := l.parse(pth)
	l.inFlight.Store(false)

	if err != nil {
		l.logger.Errorf("Failed to parse %s: %s", pth, err)
		l.notifyFailed(pth, err)
		return err
	}
	if !parsed {
		l.logger.Debugf("%s is up to date, skip parsing", pth)
		return nil
	}

	l.current.Store(&report)
	l.logger.Donef("Parsed %d case(s) from %s", len(report.Cases), pth)
	l.notifyParsed(report)

	return nil
}

func (l *Loader) parse(pth string) (testreport.Report, bool, error) {
	shouldParse, err := l.detector.ShouldReparse(pth)
	if err != nil {
		return testreport.Report{}, false, err
	}
	if !shouldParse {
		return testreport.Report{}, false, nil
	}

	report, err := l.parser.ParseFile(pth)
	if err != nil {
		return testreport.Report{}, false, err
	}
	return report, true, nil
}

func (l *Loader) notifyParsed(report testreport.Report) {
	l.mu.Lock()
	handlers := append([]ParsedHandler(nil), l.parsedHandlers...)
	l.mu.Unlock()

	for _, handler := range handlers {
		handler(report)
	}
}

func (l *Loader) notifyFailed(pth string, err error) {
	l.mu.Lock()
	handlers := append([]FailedHandler(nil), l.failedHandlers...)
	l.mu.Unlock()

	for _, handler := range handlers {
		handler(pth, err)
	}
}
