package mocks

import (
	"io/fs"
	"os"
	"time"

	"github.com/stretchr/testify/mock"
)

// FileInfoProvider mocks detector.FileInfoProvider.
type FileInfoProvider struct {
	mock.Mock
}

func (_m *FileInfoProvider) Stat(pth string) (os.FileInfo, error) {
	args := _m.Called(pth)
	var err error
	if len(args) > 1 {
		err = args.Error(1)
	}
	info, _ := args.Get(0).(os.FileInfo)
	return info, err
}

// FileInfo is a static os.FileInfo for Stat expectations.
type FileInfo struct {
	FileName    string
	FileSize    int64
	FileMode    fs.FileMode
	FileModTime time.Time
}

func (f FileInfo) Name() string       { return f.FileName }
func (f FileInfo) Size() int64        { return f.FileSize }
func (f FileInfo) Mode() fs.FileMode  { return f.FileMode }
func (f FileInfo) ModTime() time.Time { return f.FileModTime }
func (f FileInfo) IsDir() bool        { return f.FileMode.IsDir() }
func (f FileInfo) Sys() any           { return nil }
