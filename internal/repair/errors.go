package repair

import "fmt"

// EmptyInputError reports that frequency analysis found no usable data lines:
// the file was empty, all-blank, or header-only.
//
// It is fatal for the file it names but must not abort a batch; the runner
// records it and moves on.
type EmptyInputError struct {
	Path string
}

func (e *EmptyInputError) Error() string {
	return fmt.Sprintf("repair: no usable data lines in %s", e.Path)
}

// UnreadableFileError reports that a file could not be decoded even under the
// fallback encoding. Like EmptyInputError it is fatal per file, not per batch.
type UnreadableFileError struct {
	Path string
	Err  error
}

func (e *UnreadableFileError) Error() string {
	return fmt.Sprintf("repair: cannot read %s: %v", e.Path, e.Err)
}

func (e *UnreadableFileError) Unwrap() error { return e.Err }
