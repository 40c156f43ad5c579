package taskqueue

import (
	"context"
	"encoding/json"
	"time"
)

// Queue enqueues ingestion tasks and tracks their state.
type Queue interface {
	// Enqueue adds a task to the queue
	Enqueue(ctx context.Context, taskType TaskType, documentID string, payload interface{}) (string, error)

	// EnqueueIn adds a task after a delay
	EnqueueIn(ctx context.Context, taskType TaskType, documentID string, payload interface{}, delay time.Duration) (string, error)

	// GetTask fetches a task by id
	GetTask(ctx context.Context, taskID string) (*Task, error)

	// GetTasksByDocument lists every task for a document
	GetTasksByDocument(ctx context.Context, documentID string) ([]*Task, error)

	// UpdateTaskStatus transitions a task and optionally attaches a result
	UpdateTaskStatus(ctx context.Context, taskID string, status TaskStatus, result interface{}, errorMsg string) error

	// DeleteTask removes a task record
	DeleteTask(ctx context.Context, taskID string) error

	// Close releases queue connections
	Close() error
}

// Handler executes the tasks a worker pulls off the queue.
type Handler interface {
	// ProcessTask runs one task to completion
	ProcessTask(ctx context.Context, task *Task) error

	// GetTaskTypes lists the task types this handler accepts
	GetTaskTypes() []TaskType
}

// Worker runs handlers against the queue until stopped.
type Worker interface {
	// RegisterHandler binds a handler to a task type
	RegisterHandler(taskType TaskType, handler Handler)

	// Start begins consuming tasks
	Start() error

	// Stop shuts the worker down, letting in-flight tasks finish
	Stop()
}

// Config holds queue connection and processing settings.
type Config struct {
	RedisAddr     string         // redis address
	RedisPassword string         // redis password
	RedisDB       int            // redis database number
	Concurrency   int            // concurrent tasks per worker process
	RetryLimit    int            // max retries per task
	RetryDelay    time.Duration  // delay between retries
	Queues        map[string]int // queue name to priority
}

// DefaultConfig returns the default queue configuration.
func DefaultConfig() *Config {
	return &Config{
		RedisAddr:   "localhost:6379",
		RedisDB:     0,
		Concurrency: 4,
		RetryLimit:  3,
		RetryDelay:  time.Minute,
		Queues: map[string]int{
			"default": 3,
			"low":     1,
		},
	}
}

// TaskError is a sentinel error from queue operations.
type TaskError string

// Error implements the error interface.
func (e TaskError) Error() string {
	return string(e)
}

var (
	// ErrTaskNotFound - no task with that id
	ErrTaskNotFound = TaskError("task not found")
	// ErrInvalidPayload - payload failed to decode
	ErrInvalidPayload = TaskError("invalid task payload")
)

// MarshalPayload serializes a task payload to JSON.
func MarshalPayload(payload interface{}) (json.RawMessage, error) {
	if payload == nil {
		return json.RawMessage("{}"), nil
	}
	return json.Marshal(payload)
}

// UnmarshalPayload deserializes a task payload.
func UnmarshalPayload(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

// Factory builds a queue implementation from a config.
type Factory func(cfg *Config) (Queue, error)

var queueFactories = make(map[string]Factory)

// RegisterQueueFactory registers a queue implementation under a name.
func RegisterQueueFactory(name string, factory Factory) {
	queueFactories[name] = factory
}

// NewQueue creates a queue by implementation name.
func NewQueue(name string, cfg *Config) (Queue, error) {
	factory, exists := queueFactories[name]
	if !exists {
		return nil, TaskError("unknown queue implementation: " + name)
	}
	return factory(cfg)
}
