package entities

// Task represents one search-and-open-product task against a single page
type Task struct {
	ID     string     `json:"id"`
	URL    string     `json:"url"`
	Query  string     `json:"query"`
	Status TaskStatus `json:"status"`
}

// TaskStatus represents the status of a task
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
	TaskStatusWaiting    TaskStatus = "waiting_approval"
)

// ResultStatus is the structured outcome reported at public boundaries
type ResultStatus string

const (
	ResultSuccess  ResultStatus = "success"
	ResultNotFound ResultStatus = "not_found"
	ResultError    ResultStatus = "error"
)

// TaskResult is returned instead of raw errors at the task boundary
type TaskResult struct {
	Status  ResultStatus           `json:"status"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data,omitempty"`
}
