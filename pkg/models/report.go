package models

import (
	"fmt"
	"time"
)

// Phase is the part of a test a report describes
type Phase string

const (
	PhaseSetup    Phase = "setup"
	PhaseCall     Phase = "call"
	PhaseTeardown Phase = "teardown"
)

// TestState tracks a single test from start to report
type TestState string

const (
	StateNotStarted TestState = "NOT_STARTED"
	StateRunning    TestState = "RUNNING"
	StatePassed     TestState = "PASSED"
	StateFailed     TestState = "FAILED"
	StateErrored    TestState = "ERRORED"
	StateSkipped    TestState = "SKIPPED"
	StateReported   TestState = "REPORTED"
)

var transitions = map[TestState][]TestState{
	StateNotStarted: {StateRunning},
	StateRunning:    {StatePassed, StateFailed, StateErrored, StateSkipped},
	StatePassed:     {StateReported},
	StateFailed:     {StateReported},
	StateErrored:    {StateReported},
	StateSkipped:    {StateReported},
}

// Terminal reports whether the state is a finished outcome awaiting report
func (s TestState) Terminal() bool {
	switch s {
	case StatePassed, StateFailed, StateErrored, StateSkipped:
		return true
	}
	return false
}

// ScreenshotArtifact is a captured image written once to Path
type ScreenshotArtifact struct {
	TestName   string    `json:"testName"`
	CapturedAt time.Time `json:"capturedAt"`
	Path       string    `json:"path"`
	Size       int       `json:"size"`
}

// TestReport is the outcome record handed to observers and sinks
type TestReport struct {
	Name       string              `json:"name"`
	Phase      Phase               `json:"phase"`
	State      TestState           `json:"state"`
	Start      time.Time           `json:"start"`
	Stop       time.Time           `json:"stop"`
	Message    string              `json:"message,omitempty"`
	Screenshot *ScreenshotArtifact `json:"screenshot,omitempty"`
	Outcome    TestState           `json:"outcome"`
}

// NewTestReport creates a report for a test that has not started yet
func NewTestReport(name string) *TestReport {
	return &TestReport{
		Name:  name,
		Phase: PhaseSetup,
		State: StateNotStarted,
	}
}

// Transition moves the report to the next state, rejecting illegal moves.
// Outcome keeps the last terminal state once the report is marked reported.
func (r *TestReport) Transition(to TestState) error {
	for _, allowed := range transitions[r.State] {
		if allowed == to {
			r.State = to
			if to.Terminal() {
				r.Outcome = to
			}
			return nil
		}
	}
	return fmt.Errorf("illegal test state transition %s -> %s", r.State, to)
}

// Failed reports whether the outcome should be treated as a failure
func (r *TestReport) Failed() bool {
	return r.Outcome == StateFailed || r.Outcome == StateErrored
}
