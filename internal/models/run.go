package models

import (
	"time"
)

// Run status values.
const (
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// Run records one execution of a pipeline stage.
type Run struct {
	ID         string
	Stage      string
	Interval   string
	Status     string
	Rows       int
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}
