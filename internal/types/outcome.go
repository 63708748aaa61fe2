package types

import "fmt"

// Outcome is the result of handling one IncomingJob. It is one of
// Success, Poison or Transient.
type Outcome interface {
	isOutcome()
	String() string
}

type Success struct {
	ArtifactURL string
	SceneCount  int
}

// Poison means the input can never be processed; the message is dropped.
type Poison struct {
	Reason error
}

// Transient means a retry may succeed; the message is redelivered.
type Transient struct {
	Reason error
}

func (Success) isOutcome()   {}
func (Poison) isOutcome()    {}
func (Transient) isOutcome() {}

func (s Success) String() string {
	return fmt.Sprintf("success(%s, %d scenes)", s.ArtifactURL, s.SceneCount)
}

func (p Poison) String() string { return "poison(" + reason(p.Reason) + ")" }

func (t Transient) String() string { return "transient(" + reason(t.Reason) + ")" }

func reason(err error) string {
	if err == nil {
		return "unknown"
	}
	return err.Error()
}
