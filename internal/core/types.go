package core

import (
	"context"
	"time"

	"github.com/JonMunkholm/ovdsync/internal/ovd"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// SyncType tells manual runs from scheduled ones.
type SyncType string

const (
	SyncManual    SyncType = "MANUAL"
	SyncAutomated SyncType = "AUTOMATED"
)

// Operation is what a sync history row did.
type Operation string

const (
	OpImport        Operation = "IMPORT"
	OpExport        Operation = "EXPORT"
	OpBidirectional Operation = "BIDIRECTIONAL"
)

// Flow is the data direction recorded on sync history.
type Flow string

const (
	FlowFromOVD       Flow = "FROM_OVD"
	FlowToOVD         Flow = "TO_OVD"
	FlowBidirectional Flow = "BIDIRECTIONAL"
)

// flowFor returns the direction recorded for an operation.
func flowFor(op Operation) Flow {
	switch op {
	case OpImport:
		return FlowFromOVD
	case OpExport:
		return FlowToOVD
	default:
		return FlowBidirectional
	}
}

// SyncStatus is the outcome of a sync history row.
type SyncStatus string

const (
	StatusInProgress     SyncStatus = "IN_PROGRESS"
	StatusSuccess        SyncStatus = "SUCCESS"
	StatusPartialSuccess SyncStatus = "PARTIAL_SUCCESS"
	StatusFailed         SyncStatus = "FAILED"
)

// ProcessingStatus tracks a file through import or export.
type ProcessingStatus string

const (
	ProcessingPending    ProcessingStatus = "PENDING"
	ProcessingInProgress ProcessingStatus = "PROCESSING"
	ProcessingCompleted  ProcessingStatus = "COMPLETED"
	ProcessingFailed     ProcessingStatus = "FAILED"
)

// Actor is the already-authenticated caller an operation runs as.
type Actor struct {
	ID             string `json:"id"`
	Email          string `json:"email,omitempty"`
	Role           string `json:"role,omitempty"`
	OrganizationID string `json:"organizationId,omitempty"`
}

// SystemActor runs scheduled syncs.
var SystemActor = Actor{ID: "system", Email: "system", Role: "SYSTEM"}

// FileMetadata describes an imported or exported spreadsheet.
type FileMetadata struct {
	ID               string           `json:"id"`
	FileName         string           `json:"fileName"`
	FilePath         string           `json:"filePath"`
	FileSizeBytes    int64            `json:"fileSizeBytes"`
	FileType         string           `json:"fileType"`
	OperationType    Operation        `json:"operationType"`
	UploadedBy       string           `json:"uploadedBy"`
	VoyageID         string           `json:"voyageId,omitempty"`
	ShipID           string           `json:"shipId,omitempty"`
	IMONumber        string           `json:"imoNumber,omitempty"`
	RecordCount      int              `json:"recordCount"`
	DateRangeStart   string           `json:"dateRangeStart,omitempty"`
	DateRangeEnd     string           `json:"dateRangeEnd,omitempty"`
	ProcessingStatus ProcessingStatus `json:"processingStatus"`
	ErrorMessage     string           `json:"errorMessage,omitempty"`
	CreatedAt        time.Time        `json:"createdAt"`
}

// SyncHistory is one import, export or sync run.
type SyncHistory struct {
	ID               string     `json:"id"`
	SyncType         SyncType   `json:"syncType"`
	Operation        Operation  `json:"operation"`
	Direction        Flow       `json:"direction"`
	InitiatedBy      string     `json:"initiatedBy"`
	SyncConfigID     string     `json:"syncConfigId,omitempty"`
	FileMetadataID   string     `json:"fileMetadataId,omitempty"`
	Status           SyncStatus `json:"status"`
	RecordsProcessed int        `json:"recordsProcessed"`
	RecordsImported  int        `json:"recordsImported"`
	RecordsExported  int        `json:"recordsExported"`
	RecordsFailed    int        `json:"recordsFailed"`
	ErrorLog         string     `json:"errorLog,omitempty"`
	ExecutionTimeMs  int64      `json:"executionTimeMs,omitempty"`
	InitiatedAt      time.Time  `json:"initiatedAt"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
}

// SyncCompletion closes a SyncHistory row.
type SyncCompletion struct {
	Status           SyncStatus
	RecordsProcessed int
	RecordsImported  int
	RecordsExported  int
	RecordsFailed    int
	ErrorLog         string
	ExecutionTime    time.Duration
	CompletedAt      time.Time
}

// SyncStatusEntry is a history row with its file, newest first in the
// status feed.
type SyncStatusEntry struct {
	SyncHistory
	FileName string `json:"fileName,omitempty"`
	FileType string `json:"fileType,omitempty"`
}

// ValidationErrorRow records why one spreadsheet row was not imported.
type ValidationErrorRow struct {
	SyncHistoryID  string
	FileMetadataID string
	RowNumber      int
	FieldName      string
	ErrorType      string
	ErrorMessage   string
	Severity       string
}

// Validation error types.
const (
	ErrorTypeMissingField = "MISSING_REQUIRED_FIELD"
	ErrorTypeInvalidValue = "VALIDATION_FAILED"
	ErrorTypeRejected     = "DATABASE_REJECTED"
)

// LedgerFilter selects fuel-consumption rows for export.
type LedgerFilter struct {
	VoyageID   string
	ShipID     string
	IMONumbers []string
	Start      time.Time
	End        time.Time
}

// DateRange is an inclusive span of days.
type DateRange struct {
	Start time.Time `json:"startDate"`
	End   time.Time `json:"endDate"`
}

// Valid reports whether both ends are set and ordered.
func (r DateRange) Valid() bool {
	return !r.Start.IsZero() && !r.End.IsZero() && !r.End.Before(r.Start)
}

// ImportRequest describes one spreadsheet to import.
type ImportRequest struct {
	FilePath string
	FileName string
	VoyageID string
	ShipID   string
	SyncType SyncType
	ConfigID string
}

// ImportResult reports an import. RecordsImported + RecordsFailed always
// equals RecordsProcessed.
type ImportResult struct {
	RecordsProcessed int          `json:"recordsProcessed"`
	RecordsImported  int          `json:"recordsImported"`
	RecordsFailed    int          `json:"recordsFailed"`
	EntriesCreated   int          `json:"entriesCreated"`
	Errors           []string     `json:"errors"`
	SyncHistoryID    string       `json:"syncHistoryId"`
	FileMetadataID   string       `json:"fileMetadataId"`
	Metadata         ovd.Metadata `json:"metadata"`
}

// ExportRequest selects ledger rows to export.
type ExportRequest struct {
	VoyageID   string
	ShipID     string
	IMONumbers []string
	DateRange  DateRange
	SyncType   SyncType
	ConfigID   string
}

// ExportResult reports a written export.
type ExportResult struct {
	FileName        string `json:"fileName"`
	FilePath        string `json:"filePath"`
	RecordsExported int    `json:"recordCount"`
	FileSizeBytes   int64  `json:"fileSize"`
	SyncHistoryID   string `json:"syncHistoryId"`
	FileMetadataID  string `json:"fileMetadataId"`
}

// Direction is what a sync run should do.
type Direction string

const (
	DirectionImport        Direction = "IMPORT"
	DirectionExport        Direction = "EXPORT"
	DirectionBidirectional Direction = "BIDIRECTIONAL"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	switch d {
	case DirectionImport, DirectionExport, DirectionBidirectional:
		return true
	}
	return false
}

func (d Direction) exports() bool { return d == DirectionExport || d == DirectionBidirectional }
func (d Direction) imports() bool { return d == DirectionImport || d == DirectionBidirectional }

// SyncRequest starts a sync run.
type SyncRequest struct {
	Direction    Direction
	SyncType     SyncType
	ConfigID     string
	VoyageID     string
	ShipID       string
	VesselFilter []string
	DateRange    *DateRange
	DateFilter   *DateRangeFilter // used when DateRange is nil
}

// BatchImportResult aggregates the imports of one sync run.
type BatchImportResult struct {
	FilesProcessed   int      `json:"filesProcessed"`
	FilesFailed      int      `json:"filesFailed"`
	RecordsProcessed int      `json:"recordsProcessed"`
	RecordsImported  int      `json:"recordsImported"`
	RecordsFailed    int      `json:"recordsFailed"`
	Errors           []string `json:"errors,omitempty"`
}

// SyncRunResult reports a sync run.
type SyncRunResult struct {
	SyncHistoryID string             `json:"syncHistoryId"`
	Status        SyncStatus         `json:"status"`
	Export        *ExportResult      `json:"export,omitempty"`
	Import        *BatchImportResult `json:"import,omitempty"`
	Duration      time.Duration      `json:"-"`
	DurationMs    int64              `json:"executionTimeMs"`
}
