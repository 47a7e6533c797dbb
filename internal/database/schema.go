package database

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	JobQueued    string = "QUEUED"
	JobRunning   string = "RUNNING"
	JobCompleted string = "COMPLETED"
	JobFailed    string = "FAILED"
)

type Dataset struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Name   string `gorm:"not null"`
	Format string `gorm:"size:10;not null"`

	Bucket    string
	ObjectKey string
	SizeBytes int64

	UploadTime time.Time

	ProfileJobs []ProfileJob `gorm:"foreignKey:DatasetId;constraint:OnDelete:CASCADE"`
}

type ProfileJob struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	DatasetId uuid.UUID `gorm:"type:uuid"`
	Dataset   *Dataset  `gorm:"foreignKey:DatasetId"`

	Status string `gorm:"size:20;not null"`

	// Job options captured at submission time.
	Filter                string
	WithNarrative         bool
	Model                 string
	SignificanceThreshold float64

	CreationTime   time.Time
	StartTime      sql.NullTime
	CompletionTime sql.NullTime

	RowCount    int
	ColumnCount int

	ReportJSON datatypes.JSON `gorm:"type:jsonb"`

	Columns   []ColumnSummary `gorm:"foreignKey:JobId;constraint:OnDelete:CASCADE"`
	Narrative *Narrative      `gorm:"foreignKey:JobId;constraint:OnDelete:CASCADE"`
	Errors    []JobError      `gorm:"foreignKey:JobId;constraint:OnDelete:CASCADE"`
}

type ColumnSummary struct {
	JobId uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name  string    `gorm:"primaryKey"`

	Type         string `gorm:"size:10"`
	Count        int
	MissingCount int

	Stats datatypes.JSON `gorm:"type:jsonb"`
}

type Narrative struct {
	JobId uuid.UUID `gorm:"type:uuid;primaryKey"`

	Status string `gorm:"size:20;not null"`
	Model  string

	Text     string
	Sections datatypes.JSON `gorm:"type:jsonb"` // {"bullets": [...], "recommendations": [...]}

	CreationTime   time.Time
	CompletionTime sql.NullTime
}

type JobError struct {
	JobId   uuid.UUID `gorm:"type:uuid;primaryKey"`
	ErrorId uuid.UUID `gorm:"type:uuid;primaryKey"`

	Stage     string `gorm:"size:20"`
	Error     string
	Timestamp time.Time
}

type ChatSession struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	JobId uuid.UUID `gorm:"type:uuid"`
	Title string

	CreationTime time.Time
}

type ChatHistory struct {
	ID          uint           `gorm:"primary_key"`
	SessionID   string         `gorm:"index"`
	MessageType string         // 'user' or 'ai'
	Content     string
	Timestamp   time.Time      `gorm:"autoCreateTime"`
	Metadata    datatypes.JSON `gorm:"type:jsonb"`
}
