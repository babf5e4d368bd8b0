package donor

import "time"

type UploadStatus string

const (
	UploadQueued              UploadStatus = "queued"
	UploadProcessing          UploadStatus = "processing"
	UploadCompleted           UploadStatus = "completed"
	UploadCompletedWithErrors UploadStatus = "completed_with_errors"
	UploadFailed              UploadStatus = "failed"
)

type DataType string

const (
	DataTypeConstituents DataType = "constituents"
	DataTypeGifts        DataType = "gifts"
	DataTypeContacts     DataType = "contacts"
)

// FieldMapping maps a source CSV column to a canonical field name.
// An empty target means the column is deliberately ignored.
type FieldMapping map[string]string

type RowError struct {
	Row     int    `json:"row"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// MaxStoredRowErrors bounds the error list persisted on a job. The true
// error count is tracked separately in ErrorCount.
const MaxStoredRowErrors = 100

type UploadJob struct {
	ID             string
	OrganizationID string
	UserID         string
	Filename       string
	StoragePath    string
	Status         UploadStatus
	DataType       DataType
	FieldMapping   FieldMapping
	RowCount       int
	ProcessedCount int
	ErrorCount     int
	Progress       int
	Errors         []RowError
	CreatedAt      time.Time
	StartedAt      *time.Time
	CompletedAt    *time.Time
}

// FinalUploadStatus applies the terminal-status rule: no errors means
// completed, some errors means completed_with_errors, and a job where every
// row failed means failed.
func FinalUploadStatus(errorCount, rowCount int) UploadStatus {
	switch {
	case errorCount == 0:
		return UploadCompleted
	case errorCount < rowCount:
		return UploadCompletedWithErrors
	default:
		return UploadFailed
	}
}

type UploadResult struct {
	Status         UploadStatus
	RowCount       int
	ProcessedCount int
	ErrorCount     int
	Errors         []RowError
}
