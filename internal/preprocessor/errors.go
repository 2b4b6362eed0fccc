package preprocessor

import "github.com/pkg/errors"

// ErrConfig is wrapped by every error caused by the pipeline definition or by
// a frame that does not match it: unknown operations, missing fields, bad
// parameters. Check with errors.Is.
var ErrConfig = errors.New("invalid preprocessing configuration")

func configError(format string, args ...any) error {
	return errors.Wrapf(ErrConfig, format, args...)
}

// wrapOp prefixes err with the operation it came from.
func wrapOp(err error, op Op) error {
	return errors.Wrapf(err, "%s", op)
}
