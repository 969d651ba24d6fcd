package jobstore

import "fmt"

// ErrJobNotFound is returned when the referenced job is not in the store.
type ErrJobNotFound struct {
	JobID string
}

func NewErrJobNotFound(id string) ErrJobNotFound {
	return ErrJobNotFound{JobID: id}
}

func (e ErrJobNotFound) Error() string {
	return "job not found: " + e.JobID
}

// ErrJobAlreadyExists is returned on a duplicate Create.
type ErrJobAlreadyExists struct {
	JobID string
}

func NewErrJobAlreadyExists(id string) ErrJobAlreadyExists {
	return ErrJobAlreadyExists{JobID: id}
}

func (e ErrJobAlreadyExists) Error() string {
	return "job already exists: " + e.JobID
}

// ErrInvalidJobState is returned when a conditional update's expectation
// does not hold, or the requested transition breaks the lifecycle.
type ErrInvalidJobState struct {
	JobID    string
	Actual   string
	Expected string
}

func NewErrInvalidJobState(id, actual, expected string) ErrInvalidJobState {
	return ErrInvalidJobState{JobID: id, Actual: actual, Expected: expected}
}

func (e ErrInvalidJobState) Error() string {
	return fmt.Sprintf("job %s in state %s, expected %s", e.JobID, e.Actual, e.Expected)
}
