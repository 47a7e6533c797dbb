package api

import (
	"time"

	"github.com/google/uuid"
)

type Dataset struct {
	Id         uuid.UUID
	Name       string
	Format     string
	SizeBytes  int64
	UploadTime time.Time
}

type UploadDatasetResponse struct {
	DatasetId uuid.UUID
}

type ListDatasetsQuery struct {
	Limit  int `schema:"limit"`
	Offset int `schema:"offset"`
}

type CreateProfileJobRequest struct {
	Filter                string  `json:"filter"`
	WithNarrative         bool    `json:"with_narrative"`
	Model                 string  `json:"model"`
	SignificanceThreshold float64 `json:"significance_threshold"`
}

type CreateProfileJobResponse struct {
	JobId uuid.UUID
}

type JobError struct {
	Stage     string
	Error     string
	Timestamp time.Time
}

type ColumnSummary struct {
	Name         string
	Type         string
	Count        int
	MissingCount int
	Stats        any `json:"Stats,omitempty"`
}

type ProfileJob struct {
	Id        uuid.UUID
	DatasetId uuid.UUID

	Status        string
	Filter        string
	WithNarrative bool

	CreationTime   time.Time
	StartTime      *time.Time `json:"StartTime,omitempty"`
	CompletionTime *time.Time `json:"CompletionTime,omitempty"`

	RowCount    int
	ColumnCount int

	Errors []JobError `json:"Errors,omitempty"`
}

type ListJobsQuery struct {
	DatasetId string `schema:"dataset_id"`
	Status    string `schema:"status"`
	Limit     int    `schema:"limit"`
	Offset    int    `schema:"offset"`
}

type Narrative struct {
	Status string
	Model  string

	Text            string
	Bullets         []string
	Recommendations []string
}

type ExperimentRow struct {
	Geo       string  `json:"geo"`
	Treatment float64 `json:"treatment"`
	Control   float64 `json:"control"`
	Lift      float64 `json:"lift"`
	CILow     float64 `json:"ci_low"`
	CIHigh    float64 `json:"ci_high"`
	PValue    float64 `json:"p_value"`
}

type ExperimentNarrativeRequest struct {
	Rows                  []ExperimentRow `json:"rows"`
	SignificanceThreshold float64         `json:"significance_threshold"`
}

type ExperimentNarrativeResponse struct {
	Text            string
	Bullets         []string
	Recommendations []string
}
