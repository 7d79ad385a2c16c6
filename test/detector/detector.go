// Package detector decides whether a report file has to be parsed again.
package detector

import (
	"os"
	"path/filepath"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/pathutil"
	"github.com/pkg/errors"
)

// ReportExt is the only extension accepted as a report file.
const ReportExt = ".json"

// ErrInvalidSource is returned for paths that are not regular report files.
var ErrInvalidSource = errors.New("invalid report source")

// FileInfoProvider returns the metadata of a file.
type FileInfoProvider interface {
	Stat(pth string) (os.FileInfo, error)
}

type osFileInfoProvider struct{}

// NewFileInfoProvider returns a FileInfoProvider backed by the file system.
func NewFileInfoProvider() FileInfoProvider {
	return osFileInfoProvider{}
}

func (osFileInfoProvider) Stat(pth string) (os.FileInfo, error) {
	return os.Stat(pth)
}

// ChangeDetector remembers the last accepted report file.
type ChangeDetector interface {
	ShouldReparse(pth string) (bool, error)
}

// changeDetector is a single-slot memo: it tracks one file at a time.
type changeDetector struct {
	fileInfo     FileInfoProvider
	pathModifier pathutil.PathModifier
	logger       log.Logger

	recorded bool
	path     string
	modTime  time.Time
}

// NewChangeDetector ...
func NewChangeDetector(fileInfo FileInfoProvider, pathModifier pathutil.PathModifier, logger log.Logger) ChangeDetector {
	return &changeDetector{
		fileInfo:     fileInfo,
		pathModifier: pathModifier,
		logger:       logger,
	}
}

// ShouldReparse returns true on the first call, and whenever the path or
// the modification time differs from the recorded one. The recorded tuple is
// updated in both cases. Invalid sources leave the memo untouched.
func (d *changeDetector) ShouldReparse(pth string) (bool, error) {
	absPth, err := d.pathModifier.AbsPath(pth)
	if err != nil {
		return false, errors.Wrapf(ErrInvalidSource, "failed to expand path (%s): %s", pth, err)
	}

	info, err := d.fileInfo.Stat(absPth)
	if err != nil {
		return false, errors.Wrapf(ErrInvalidSource, "\"%s\" isn't a file: %s", absPth, err)
	}
	if !info.Mode().IsRegular() {
		return false, errors.Wrapf(ErrInvalidSource, "\"%s\" isn't a file", absPth)
	}
	if filepath.Ext(absPth) != ReportExt {
		return false, errors.Wrapf(ErrInvalidSource, "\"%s\" isn't a JSON file", absPth)
	}

	modTime := info.ModTime()
	if d.recorded && d.path == absPth && d.modTime.Equal(modTime) {
		d.logger.Debugf("%s is unchanged since %s", absPth, modTime.Format(time.RFC3339Nano))
		return false, nil
	}

	d.recorded = true
	d.path = absPth
	d.modTime = modTime

	return true, nil
}
