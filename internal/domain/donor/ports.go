package donor

import "context"

type UploadJobEnqueuer interface {
	Enqueue(ctx context.Context, job UploadJob) (string, error)
}

type UploadJobReader interface {
	GetByID(ctx context.Context, jobID string) (*UploadJob, error)
}

type AuditEntry struct {
	OrganizationID string
	UserID         string
	Action         string
	ResourceType   string
	ResourceID     string
	Details        map[string]any
}

type AuditSink interface {
	Record(ctx context.Context, entry AuditEntry) error
}
