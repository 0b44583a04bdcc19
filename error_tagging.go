package asyncrt

import (
	"errors"
	"fmt"
)

// TaskMetaError exposes correlation metadata for a failure that occurred
// while a specific Task was running — its monotonic id (spec §3 Task.id)
// and, if the failure happened inside a batch helper (All, Map, ForEach),
// its position in that batch.
type TaskMetaError interface {
	error
	Unwrap() error
	TaskID() (uint64, bool)
	TaskIndex() (int, bool)
}

type taskTaggedError struct {
	err   error
	id    uint64
	index int
	hasID bool
}

// newTaskTaggedError wraps err with the failing Task's id and, if index >= 0,
// its position within a batch. Returns nil if err is nil.
func newTaskTaggedError(err error, id uint64, hasID bool, index int) error {
	if err == nil {
		return nil
	}
	return &taskTaggedError{err: err, id: id, hasID: hasID, index: index}
}

func (e *taskTaggedError) Error() string { return e.err.Error() }
func (e *taskTaggedError) Unwrap() error { return e.err }

func (e *taskTaggedError) TaskID() (uint64, bool) {
	if !e.hasID {
		return 0, false
	}
	return e.id, true
}

func (e *taskTaggedError) TaskIndex() (int, bool) {
	if e.index < 0 {
		return 0, false
	}
	return e.index, true
}

func (e *taskTaggedError) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			_, _ = fmt.Fprintf(s, "task(id=%d,index=%d): %+v", e.id, e.index, e.err)
			return
		}
		fallthrough
	case 's':
		_, _ = fmt.Fprint(s, e.Error())
	case 'q':
		_, _ = fmt.Fprintf(s, "%q", e.Error())
	}
}

// ExtractTaskID returns the failing Task's id from err, if present.
func ExtractTaskID(err error) (uint64, bool) {
	var tme TaskMetaError
	if errors.As(err, &tme) {
		return tme.TaskID()
	}
	return 0, false
}

// ExtractTaskIndex returns the failing Task's batch index from err, if present.
func ExtractTaskIndex(err error) (int, bool) {
	var tme TaskMetaError
	if errors.As(err, &tme) {
		return tme.TaskIndex()
	}
	return 0, false
}
