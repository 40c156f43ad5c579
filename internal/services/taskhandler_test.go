package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyerfyer/manual-ingest/pkg/taskqueue"
)

// recordingQueue captures UpdateTaskStatus calls so tests can assert
// on the result the handler attaches.
type recordingQueue struct {
	taskID  string
	status  taskqueue.TaskStatus
	result  *taskqueue.IngestResult
	errMsg  string
	updates int
}

func (q *recordingQueue) Enqueue(ctx context.Context, taskType taskqueue.TaskType, documentID string, payload interface{}) (string, error) {
	return "", nil
}

func (q *recordingQueue) EnqueueIn(ctx context.Context, taskType taskqueue.TaskType, documentID string, payload interface{}, delay time.Duration) (string, error) {
	return "", nil
}

func (q *recordingQueue) GetTask(ctx context.Context, taskID string) (*taskqueue.Task, error) {
	return nil, taskqueue.ErrTaskNotFound
}

func (q *recordingQueue) GetTasksByDocument(ctx context.Context, documentID string) ([]*taskqueue.Task, error) {
	return nil, nil
}

func (q *recordingQueue) UpdateTaskStatus(ctx context.Context, taskID string, status taskqueue.TaskStatus, result interface{}, errorMsg string) error {
	q.taskID = taskID
	q.status = status
	q.result, _ = result.(*taskqueue.IngestResult)
	q.errMsg = errorMsg
	q.updates++
	return nil
}

func (q *recordingQueue) DeleteTask(ctx context.Context, taskID string) error { return nil }

func (q *recordingQueue) Close() error { return nil }

func layoutTask(t *testing.T, path string) *taskqueue.Task {
	t.Helper()
	payload, err := taskqueue.MarshalPayload(taskqueue.IngestLayoutPayload{ExtractPath: path})
	require.NoError(t, err)
	return &taskqueue.Task{
		ID:      "task-1",
		Type:    taskqueue.TaskIngestLayout,
		Status:  taskqueue.StatusProcessing,
		Payload: payload,
	}
}

func TestIngestTaskHandler_GetTaskTypes(t *testing.T) {
	h := NewIngestTaskHandler(newTestService(t, setupTestRepo(t)), nil, quietLogger())

	types := h.GetTaskTypes()
	assert.Contains(t, types, taskqueue.TaskIngestLayout)
	assert.Contains(t, types, taskqueue.TaskIngestFlat)
}

func TestIngestTaskHandler_ProcessLayoutTask(t *testing.T) {
	service := newTestService(t, setupTestRepo(t))
	queue := &recordingQueue{}
	h := NewIngestTaskHandler(service, queue, quietLogger())

	path := writeExtract(t, t.TempDir(), "manual-01.json", "manual-01")

	err := h.ProcessTask(context.Background(), layoutTask(t, path))
	require.NoError(t, err)

	require.Equal(t, 1, queue.updates)
	assert.Equal(t, "task-1", queue.taskID)
	// the worker owns the lifecycle; the handler leaves status alone
	assert.Equal(t, taskqueue.StatusProcessing, queue.status)

	require.NotNil(t, queue.result)
	assert.Equal(t, "manual-01", queue.result.DocID)
	assert.Equal(t, 2, queue.result.UnitCount)
	assert.Equal(t, 1, queue.result.ImageCount)
	assert.False(t, queue.result.Skipped)
}

func TestIngestTaskHandler_ProcessFlatTask(t *testing.T) {
	service := newTestService(t, setupTestRepo(t))
	queue := &recordingQueue{}
	h := NewIngestTaskHandler(service, queue, quietLogger())

	path := writeFlatDoc(t, "press-manual.md",
		"# Installation\n\nmount the frame to the base plate using the supplied bolts")

	payload, err := taskqueue.MarshalPayload(taskqueue.IngestFlatPayload{FilePath: path, TotalPages: 4})
	require.NoError(t, err)

	err = h.ProcessTask(context.Background(), &taskqueue.Task{
		ID:      "task-2",
		Type:    taskqueue.TaskIngestFlat,
		Status:  taskqueue.StatusProcessing,
		Payload: payload,
	})
	require.NoError(t, err)

	require.NotNil(t, queue.result)
	assert.Equal(t, "press-manual", queue.result.DocID)
	assert.Equal(t, 1, queue.result.ChunkCount)
}

func TestIngestTaskHandler_FailureRecorded(t *testing.T) {
	service := newTestService(t, setupTestRepo(t))
	queue := &recordingQueue{}
	h := NewIngestTaskHandler(service, queue, quietLogger())

	err := h.ProcessTask(context.Background(), layoutTask(t, "/nonexistent/manual.json"))
	require.Error(t, err)

	require.NotNil(t, queue.result)
	assert.NotEmpty(t, queue.result.Error)
	assert.Equal(t, queue.result.Error, queue.errMsg)
}

func TestIngestTaskHandler_InvalidPayload(t *testing.T) {
	h := NewIngestTaskHandler(newTestService(t, setupTestRepo(t)), nil, quietLogger())

	err := h.ProcessTask(context.Background(), &taskqueue.Task{
		ID:      "task-3",
		Type:    taskqueue.TaskIngestLayout,
		Payload: json.RawMessage("{"),
	})
	assert.ErrorIs(t, err, taskqueue.ErrInvalidPayload)
}

func TestIngestTaskHandler_UnknownTaskType(t *testing.T) {
	h := NewIngestTaskHandler(newTestService(t, setupTestRepo(t)), nil, quietLogger())

	err := h.ProcessTask(context.Background(), &taskqueue.Task{
		ID:   "task-4",
		Type: taskqueue.TaskType("reindex"),
	})
	assert.Error(t, err)
}

func TestIngestTaskHandler_NilQueue(t *testing.T) {
	service := newTestService(t, setupTestRepo(t))
	h := NewIngestTaskHandler(service, nil, quietLogger())

	path := writeExtract(t, t.TempDir(), "manual-01.json", "manual-01")
	assert.NoError(t, h.ProcessTask(context.Background(), layoutTask(t, path)))
}
