package nvmejson

import (
	"github.com/buger/jsonparser"
	"github.com/pkg/errors"
)

var (
	// ErrMalformedJSON is returned when the report file can't be decoded.
	ErrMalformedJSON = errors.New("malformed report JSON")
	// ErrSchemaViolation is returned when a recognized key holds a value of the wrong shape.
	ErrSchemaViolation = errors.New("report schema violation")
)

func shapeError(key, want string, dataType jsonparser.ValueType) error {
	return errors.Wrapf(ErrSchemaViolation, "key |%s| requires %s, got %s", key, want, dataType)
}

func valueError(key string, err error) error {
	return errors.Wrapf(ErrSchemaViolation, "key |%s|: %s", key, err)
}
