package mocks

import "github.com/stretchr/testify/mock"

// ChangeDetector mocks detector.ChangeDetector.
type ChangeDetector struct {
	mock.Mock
}

func (_m *ChangeDetector) ShouldReparse(pth string) (bool, error) {
	args := _m.Called(pth)
	var err error
	if len(args) > 1 {
		err = args.Error(1)
	}
	return args.Bool(0), err
}
