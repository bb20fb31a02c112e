// Package sentinel holds cross-package sentinel errors. Stores return these
// wrapped so callers can translate infrastructure facts at the boundary.
package sentinel

import "errors"

// ErrUnavailable reports that a backing service could not be reached.
var ErrUnavailable = errors.New("unavailable")
