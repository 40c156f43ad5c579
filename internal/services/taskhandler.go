package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/manual-ingest/pkg/taskqueue"
)

// IngestTaskHandler runs queued ingestion tasks against the service.
// It implements taskqueue.Handler so a worker process can consume both
// task types.
type IngestTaskHandler struct {
	service *IngestService
	queue   taskqueue.Queue
	logger  *logrus.Logger
}

// NewIngestTaskHandler creates a handler. The queue is used to attach
// the ingestion report to the task record; it may be nil in tests.
func NewIngestTaskHandler(service *IngestService, queue taskqueue.Queue, logger *logrus.Logger) *IngestTaskHandler {
	if logger == nil {
		logger = logrus.New()
	}
	return &IngestTaskHandler{
		service: service,
		queue:   queue,
		logger:  logger,
	}
}

// GetTaskTypes lists the task types this handler accepts.
func (h *IngestTaskHandler) GetTaskTypes() []taskqueue.TaskType {
	return []taskqueue.TaskType{taskqueue.TaskIngestLayout, taskqueue.TaskIngestFlat}
}

// ProcessTask runs one queued ingestion to completion.
func (h *IngestTaskHandler) ProcessTask(ctx context.Context, task *taskqueue.Task) error {
	h.logger.WithFields(logrus.Fields{
		"task_id":   task.ID,
		"task_type": task.Type,
	}).Info("Processing ingestion task")

	var report *IngestReport
	var err error

	switch task.Type {
	case taskqueue.TaskIngestLayout:
		var payload taskqueue.IngestLayoutPayload
		if perr := taskqueue.UnmarshalPayload(task.Payload, &payload); perr != nil {
			return taskqueue.ErrInvalidPayload
		}
		report, err = h.service.ProcessLayoutDocument(ctx, payload.ExtractPath, payload.Force)

	case taskqueue.TaskIngestFlat:
		var payload taskqueue.IngestFlatPayload
		if perr := taskqueue.UnmarshalPayload(task.Payload, &payload); perr != nil {
			return taskqueue.ErrInvalidPayload
		}
		report, err = h.service.ProcessFlatDocument(ctx, payload.FilePath, payload.TotalPages, payload.Force)

	default:
		return fmt.Errorf("unknown task type: %s", task.Type)
	}

	if err != nil {
		h.recordResult(ctx, task, &taskqueue.IngestResult{Error: err.Error()})
		return err
	}

	h.recordResult(ctx, task, &taskqueue.IngestResult{
		DocID:      report.DocID,
		UnitCount:  report.UnitCount,
		ChunkCount: report.ChunkCount,
		ImageCount: report.ImageCount,
		Skipped:    report.Skipped,
	})

	h.logger.WithFields(logrus.Fields{
		"task_id": task.ID,
		"doc_id":  report.DocID,
		"skipped": report.Skipped,
	}).Info("Ingestion task finished")

	return nil
}

// recordResult attaches the ingestion report to the task record without
// changing its status; the worker owns the status transition.
func (h *IngestTaskHandler) recordResult(ctx context.Context, task *taskqueue.Task, result *taskqueue.IngestResult) {
	if h.queue == nil {
		return
	}
	if err := h.queue.UpdateTaskStatus(ctx, task.ID, task.Status, result, result.Error); err != nil {
		h.logger.WithError(err).WithField("task_id", task.ID).Warn("Failed to record task result")
	}
}
