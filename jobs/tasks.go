package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/garagedesk/garagedesk/internal/documents"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskDocumentFinalized announces a finalized invoice or quotation.
	TaskDocumentFinalized = "documents:finalized"
)

// NewDocumentFinalizedTask constructs an Asynq task for a finalized document.
// The task id is derived from the document so a retried finalize request
// does not queue a second notification.
func NewDocumentFinalizedTask(event documents.FinalizedEvent) (*asynq.Task, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDocumentFinalized, data,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(5),
		asynq.TaskID(finalizedTaskID(event)),
		asynq.Retention(24*time.Hour),
	), nil
}

func finalizedTaskID(event documents.FinalizedEvent) string {
	return TaskDocumentFinalized + ":" + event.DocNumber + ":" + event.FinalizedAt.UTC().Format(time.RFC3339)
}
