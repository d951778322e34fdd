package build

import "errors"

// ErrCanceled is wrapped by the StageError returned when the context was
// already done before a build started.
var ErrCanceled = errors.New("build canceled before start")
