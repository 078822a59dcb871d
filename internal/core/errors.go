package core

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedTranscript   = errors.New("malformed transcript")
	ErrNoSufficientDirectory = errors.New("no directory is large enough")
)

// TranscriptError describes where a transcript stopped making sense.
// Line is set by the parser, Command and Path by the shell. A Path with no
// Command points at a directory whose total size cannot be represented.
type TranscriptError struct {
	Line    int
	Command int
	Path    string
	Cause   string
}

func (e *TranscriptError) Error() string {
	switch {
	case e.Line > 0:
		return fmt.Sprintf("malformed transcript at line %d: %s", e.Line, e.Cause)
	case e.Command == 0 && e.Path != "":
		return fmt.Sprintf("malformed transcript at %s: %s", e.Path, e.Cause)
	case e.Path != "":
		return fmt.Sprintf("malformed transcript at command %d (%s): %s", e.Command, e.Path, e.Cause)
	default:
		return fmt.Sprintf("malformed transcript at command %d: %s", e.Command, e.Cause)
	}
}

func (e *TranscriptError) Unwrap() error {
	return ErrMalformedTranscript
}
