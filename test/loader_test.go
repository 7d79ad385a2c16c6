package test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/pathutil"
	"github.com/bitrise-steplib/steps-nvme-test-report/mocks"
	"github.com/bitrise-steplib/steps-nvme-test-report/test/converters/nvmejson"
	"github.com/bitrise-steplib/steps-nvme-test-report/test/detector"
	"github.com/bitrise-steplib/steps-nvme-test-report/test/testreport"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const reportPth = "/reports/report.json"

type recorder struct {
	parsed []testreport.Report
	failed []error
}

func newRecordedLoader(d detector.ChangeDetector, p ReportParser) (*Loader, *recorder) {
	rec := &recorder{}
	loader := NewLoader(d, p, log.NewLogger())
	loader.OnParsed(func(report testreport.Report) {
		rec.parsed = append(rec.parsed, report)
	})
	loader.OnFailed(func(_ string, err error) {
		rec.failed = append(rec.failed, err)
	})
	return loader, rec
}

func bootReport(code int64) testreport.Report {
	return testreport.Report{Cases: []testreport.Case{{Name: "boot", Result: testreport.ResultOf(code)}}}
}

func TestLoader_RequestParse(t *testing.T) {
	changeDetector := new(mocks.ChangeDetector)
	parser := new(mocks.ReportParser)
	loader, rec := newRecordedLoader(changeDetector, parser)

	_, ok := loader.Report()
	require.False(t, ok)

	changeDetector.On("ShouldReparse", reportPth).Return(true, nil).Once()
	parser.On("ParseFile", reportPth).Return(bootReport(0), nil).Once()

	require.NoError(t, loader.RequestParse(reportPth))
	require.Len(t, rec.parsed, 1)
	assert.Equal(t, bootReport(0), rec.parsed[0])

	current, ok := loader.Report()
	require.True(t, ok)
	assert.Equal(t, bootReport(0), current)

	// unchanged file: no parse, no notification
	changeDetector.On("ShouldReparse", reportPth).Return(false, nil).Once()

	require.NoError(t, loader.RequestParse(reportPth))
	assert.Len(t, rec.parsed, 1)
	assert.Empty(t, rec.failed)

	changeDetector.AssertExpectations(t)
	parser.AssertExpectations(t)
}

func TestLoader_RequestParse_FailureKeepsLastReport(t *testing.T) {
	tests := []struct {
		name        string
		detectorErr error
		parserErr   error
		wantErr     error
	}{
		{
			name:        "invalid source",
			detectorErr: errors.Wrap(detector.ErrInvalidSource, "missing"),
			wantErr:     detector.ErrInvalidSource,
		},
		{
			name:      "malformed json",
			parserErr: errors.Wrap(nvmejson.ErrMalformedJSON, "bad"),
			wantErr:   nvmejson.ErrMalformedJSON,
		},
		{
			name:      "schema violation",
			parserErr: errors.Wrap(nvmejson.ErrSchemaViolation, "case"),
			wantErr:   nvmejson.ErrSchemaViolation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changeDetector := new(mocks.ChangeDetector)
			parser := new(mocks.ReportParser)
			loader, rec := newRecordedLoader(changeDetector, parser)

			changeDetector.On("ShouldReparse", reportPth).Return(true, nil).Once()
			parser.On("ParseFile", reportPth).Return(bootReport(0), nil).Once()
			require.NoError(t, loader.RequestParse(reportPth))

			if tt.detectorErr != nil {
				changeDetector.On("ShouldReparse", reportPth).Return(false, tt.detectorErr).Once()
			} else {
				changeDetector.On("ShouldReparse", reportPth).Return(true, nil).Once()
				parser.On("ParseFile", reportPth).Return(testreport.Report{}, tt.parserErr).Once()
			}

			err := loader.RequestParse(reportPth)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			assert.Len(t, rec.parsed, 1)
			require.Len(t, rec.failed, 1)
			assert.ErrorIs(t, rec.failed[0], tt.wantErr)

			current, ok := loader.Report()
			require.True(t, ok)
			assert.Equal(t, bootReport(0), current)

			changeDetector.AssertExpectations(t)
			parser.AssertExpectations(t)
		})
	}
}

func TestLoader_RequestParse_RejectsConcurrentRequest(t *testing.T) {
	changeDetector := new(mocks.ChangeDetector)
	parser := new(mocks.ReportParser)
	loader, rec := newRecordedLoader(changeDetector, parser)

	var nestedErr error
	changeDetector.On("ShouldReparse", reportPth).Return(true, nil).Once()
	parser.On("ParseFile", reportPth).Run(func(mock.Arguments) {
		nestedErr = loader.RequestParse("/reports/other.json")
	}).Return(bootReport(0), nil).Once()

	require.NoError(t, loader.RequestParse(reportPth))
	assert.ErrorIs(t, nestedErr, ErrParseInProgress)
	assert.Len(t, rec.parsed, 1)
	assert.Len(t, rec.failed, 0)

	changeDetector.AssertExpectations(t)
	parser.AssertExpectations(t)
}

func TestLoader_RequestParse_FromHandler(t *testing.T) {
	changeDetector := new(mocks.ChangeDetector)
	parser := new(mocks.ReportParser)
	loader := NewLoader(changeDetector, parser, log.NewLogger())

	changeDetector.On("ShouldReparse", reportPth).Return(true, nil).Once()
	changeDetector.On("ShouldReparse", reportPth).Return(false, nil).Once()
	parser.On("ParseFile", reportPth).Return(bootReport(0), nil).Once()

	var nestedErr error
	loader.OnParsed(func(testreport.Report) {
		nestedErr = loader.RequestParse(reportPth)
	})

	require.NoError(t, loader.RequestParse(reportPth))
	assert.NoError(t, nestedErr)

	changeDetector.AssertExpectations(t)
	parser.AssertExpectations(t)
}

func newFileLoader() (*Loader, *recorder) {
	changeDetector := detector.NewChangeDetector(detector.NewFileInfoProvider(), pathutil.NewPathModifier(), log.NewLogger())
	return newRecordedLoader(changeDetector, nvmejson.NewParser(log.NewLogger()))
}

func writeReport(t *testing.T, pth, content string, modTime time.Time) {
	require.NoError(t, os.WriteFile(pth, []byte(content), 0644))
	require.NoError(t, os.Chtimes(pth, modTime, modTime))
}

func TestLoader_ReportFile(t *testing.T) {
	pth := filepath.Join(t.TempDir(), "report.json")
	modTime := time.Date(2023, 10, 16, 8, 0, 0, 0, time.UTC)
	writeReport(t, pth, `{"case":{"boot":{"result":0}}}`, modTime)

	loader, rec := newFileLoader()

	require.NoError(t, loader.RequestParse(pth))
	require.NoError(t, loader.RequestParse(pth))
	require.Len(t, rec.parsed, 1, "unchanged file is parsed once")

	// byte-identical content, new modification time
	writeReport(t, pth, `{"case":{"boot":{"result":0}}}`, modTime.Add(time.Minute))
	require.NoError(t, loader.RequestParse(pth))
	require.Len(t, rec.parsed, 2)
	assert.Equal(t, rec.parsed[0], rec.parsed[1])

	writeReport(t, pth, `{"case": "not-an-object"}`, modTime.Add(2*time.Minute))
	err := loader.RequestParse(pth)
	assert.ErrorIs(t, err, nvmejson.ErrSchemaViolation)
	assert.Len(t, rec.parsed, 2)

	current, ok := loader.Report()
	require.True(t, ok)
	assert.Equal(t, rec.parsed[1], current)

	err = loader.RequestParse(filepath.Join(filepath.Dir(pth), "report.txt"))
	assert.ErrorIs(t, err, detector.ErrInvalidSource)
	assert.Len(t, rec.failed, 2)
}
