package ospackage

import "fmt"

// TaskState is the lifecycle state of a DownloadTask.
type TaskState int

const (
	TaskPending TaskState = iota
	TaskInFlight
	TaskRetrying
	TaskSucceeded
	TaskFailed
	TaskSkipped
	TaskPlanned
)

func (s TaskState) String() string {
	switch s {
	case TaskPending:
		return "pending"
	case TaskInFlight:
		return "in-flight"
	case TaskRetrying:
		return "retrying"
	case TaskSucceeded:
		return "succeeded"
	case TaskFailed:
		return "failed"
	case TaskSkipped:
		return "skipped"
	case TaskPlanned:
		return "planned"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transition is allowed.
func (s TaskState) Terminal() bool {
	return s == TaskSucceeded || s == TaskFailed || s == TaskSkipped || s == TaskPlanned
}

var allowedTransitions = map[TaskState][]TaskState{
	TaskPending:  {TaskInFlight, TaskSkipped, TaskPlanned, TaskFailed},
	TaskInFlight: {TaskSucceeded, TaskFailed, TaskRetrying},
	TaskRetrying: {TaskInFlight, TaskFailed},
}

// DownloadTask is one artifact to retrieve. A task is owned by a single
// worker while it runs.
type DownloadTask struct {
	Record   *PackageRecord
	URL      string
	Dest     string
	Attempts int
	State    TaskState
	Err      error
}

// NewDownloadTask builds a pending task for record.
func NewDownloadTask(record *PackageRecord, url, dest string) *DownloadTask {
	return &DownloadTask{Record: record, URL: url, Dest: dest, State: TaskPending}
}

// Transition moves the task to next, rejecting moves the state machine
// does not allow.
func (t *DownloadTask) Transition(next TaskState) error {
	for _, s := range allowedTransitions[t.State] {
		if s == next {
			if next == TaskInFlight {
				t.Attempts++
			}
			t.State = next
			return nil
		}
	}
	return fmt.Errorf("illegal task transition %s -> %s for %s", t.State, next, t.URL)
}
