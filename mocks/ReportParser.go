package mocks

import (
	"github.com/bitrise-steplib/steps-nvme-test-report/test/testreport"
	"github.com/stretchr/testify/mock"
)

// ReportParser mocks test.ReportParser.
type ReportParser struct {
	mock.Mock
}

func (_m *ReportParser) ParseFile(pth string) (testreport.Report, error) {
	args := _m.Called(pth)
	var err error
	if len(args) > 1 {
		err = args.Error(1)
	}
	report, _ := args.Get(0).(testreport.Report)
	return report, err
}
