package migrate

import (
	"errors"
	"fmt"
)

// ErrRemoteCanonical is returned when merge is asked to write to a URL.
var ErrRemoteCanonical = errors.New("canonical source is a URL; merge needs a local file")

// WriteError reports a failed write of the canonical document. When Backup
// is set, the original content is preserved there.
type WriteError struct {
	Path   string
	Backup string
	Err    error
}

func (e *WriteError) Error() string {
	if e.Backup != "" {
		return fmt.Sprintf("write %s (backup kept at %s): %v", e.Path, e.Backup, e.Err)
	}
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// SideError reports that one source could not be extracted.
type SideError struct {
	Side string
	Err  error
}

func (e *SideError) Error() string { return fmt.Sprintf("%s source: %v", e.Side, e.Err) }

func (e *SideError) Unwrap() error { return e.Err }
