package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"eda-backend/internal/database"
	"eda-backend/internal/messaging"
	"eda-backend/internal/narrative"
	"eda-backend/internal/profile"
	"eda-backend/internal/storage"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testBucket = "test-reports"

type stubLLM struct {
	response string
	err      error
}

func (s *stubLLM) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func setupTestProcessor(t *testing.T, llm narrative.LLM) (*TaskProcessor, *gorm.DB, *storage.LocalObjectStore, *messaging.InMemoryQueue) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, database.GetMigrator(db).Migrate())

	objectStore, err := storage.NewLocalObjectStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, objectStore.CreateBucket(context.Background(), testBucket))

	queue := messaging.NewInMemoryQueue()

	proc := NewTaskProcessor(db, objectStore, queue, queue, profile.NewEngine(), narrative.NewComposer(llm), testBucket, t.TempDir())

	return proc, db, objectStore, queue
}

func createTestJob(t *testing.T, db *gorm.DB, objectStore storage.ObjectStore, csv string, withNarrative bool, filter string) uuid.UUID {
	t.Helper()

	datasetId := uuid.New()
	key := "datasets/" + datasetId.String() + "/data.csv"
	require.NoError(t, objectStore.PutObject(context.Background(), testBucket, key, bytes.NewReader([]byte(csv))))

	ds := database.Dataset{
		Id:         datasetId,
		Name:       "data.csv",
		Format:     "csv",
		Bucket:     testBucket,
		ObjectKey:  key,
		SizeBytes:  int64(len(csv)),
		UploadTime: time.Now().UTC(),
	}
	require.NoError(t, db.Create(&ds).Error)

	job := database.ProfileJob{
		Id:            uuid.New(),
		DatasetId:     datasetId,
		Status:        database.JobQueued,
		Filter:        filter,
		WithNarrative: withNarrative,
		CreationTime:  time.Now().UTC(),
	}
	require.NoError(t, db.Create(&job).Error)

	return job.Id
}

const testCSV = "geo,spend,clicks\nNY,100,10\nCA,200,20\nTX,300,30\n"

func TestProcessProfileTask(t *testing.T) {
	proc, db, objectStore, _ := setupTestProcessor(t, &stubLLM{response: "ok"})

	jobId := createTestJob(t, db, objectStore, testCSV, false, "")

	err := proc.processProfileTask(context.Background(), messaging.ProfileTaskPayload{JobId: jobId})
	require.NoError(t, err)

	job, err := database.GetProfileJob(context.Background(), db, jobId, "Columns")
	require.NoError(t, err)

	assert.Equal(t, database.JobCompleted, job.Status)
	assert.Equal(t, 3, job.RowCount)
	assert.Equal(t, 3, job.ColumnCount)
	assert.Len(t, job.Columns, 3)
	assert.True(t, job.CompletionTime.Valid)

	var report profile.Report
	require.NoError(t, json.Unmarshal(job.ReportJSON, &report))
	spend, ok := report.Column("spend")
	require.True(t, ok)
	require.NotNil(t, spend.Numeric)
	assert.InDelta(t, 200.0, spend.Numeric.Mean, 1e-9)

	objects, err := objectStore.ListObjects(context.Background(), testBucket, "jobs/"+jobId.String())
	require.NoError(t, err)
	assert.Len(t, objects, 2)
}

func TestProcessProfileTaskWithFilter(t *testing.T) {
	proc, db, objectStore, _ := setupTestProcessor(t, &stubLLM{response: "ok"})

	jobId := createTestJob(t, db, objectStore, testCSV, false, `spend > 150`)

	err := proc.processProfileTask(context.Background(), messaging.ProfileTaskPayload{JobId: jobId})
	require.NoError(t, err)

	job, err := database.GetProfileJob(context.Background(), db, jobId)
	require.NoError(t, err)
	assert.Equal(t, 2, job.RowCount)
}

func TestProcessProfileTaskEmptyDataset(t *testing.T) {
	proc, db, objectStore, _ := setupTestProcessor(t, &stubLLM{response: "ok"})

	jobId := createTestJob(t, db, objectStore, "", false, "")

	err := proc.processProfileTask(context.Background(), messaging.ProfileTaskPayload{JobId: jobId})
	require.Error(t, err)

	job, err := database.GetProfileJob(context.Background(), db, jobId, "Errors")
	require.NoError(t, err)
	assert.Equal(t, database.JobFailed, job.Status)
	require.Len(t, job.Errors, 1)
	assert.Equal(t, StageLoad, job.Errors[0].Stage)
}

func TestProcessProfileTaskPublishesNarrative(t *testing.T) {
	proc, db, objectStore, queue := setupTestProcessor(t, &stubLLM{response: "ok"})

	jobId := createTestJob(t, db, objectStore, testCSV, true, "")

	err := proc.processProfileTask(context.Background(), messaging.ProfileTaskPayload{JobId: jobId})
	require.NoError(t, err)

	select {
	case task := <-queue.Tasks():
		assert.Equal(t, messaging.NarrativeQueue, task.Type())
		var payload messaging.NarrativeTaskPayload
		require.NoError(t, json.Unmarshal(task.Payload(), &payload))
		assert.Equal(t, jobId, payload.JobId)
	default:
		t.Fatal("expected a narrative task to be published")
	}

	var narrativeRow database.Narrative
	require.NoError(t, db.First(&narrativeRow, "job_id = ?", jobId).Error)
	assert.Equal(t, database.JobQueued, narrativeRow.Status)
}

type failingPublisher struct {
	messaging.Publisher
}

func (p *failingPublisher) PublishNarrativeTask(ctx context.Context, payload messaging.NarrativeTaskPayload) error {
	return errors.New("connection closed")
}

func TestProcessProfileTaskNarrativePublishFailure(t *testing.T) {
	proc, db, objectStore, _ := setupTestProcessor(t, &stubLLM{response: "ok"})
	proc.publisher = &failingPublisher{}

	jobId := createTestJob(t, db, objectStore, testCSV, true, "")

	err := proc.processProfileTask(context.Background(), messaging.ProfileTaskPayload{JobId: jobId})
	require.NoError(t, err)

	// The report is stored, so the profile job completes even though the
	// narration could not be queued.
	job, err := database.GetProfileJob(context.Background(), db, jobId, "Errors")
	require.NoError(t, err)
	assert.Equal(t, database.JobCompleted, job.Status)
	assert.NotEmpty(t, job.ReportJSON)
	require.Len(t, job.Errors, 1)
	assert.Equal(t, StageNarrative, job.Errors[0].Stage)

	var narrativeRow database.Narrative
	require.NoError(t, db.First(&narrativeRow, "job_id = ?", jobId).Error)
	assert.Equal(t, database.JobFailed, narrativeRow.Status)
}

func TestProcessNarrativeTask(t *testing.T) {
	llm := &stubLLM{response: "The dataset looks healthy.\n\nRecommendations\n- Nothing to fix."}
	proc, db, objectStore, queue := setupTestProcessor(t, llm)

	jobId := createTestJob(t, db, objectStore, testCSV, true, "")

	require.NoError(t, proc.processProfileTask(context.Background(), messaging.ProfileTaskPayload{JobId: jobId}))
	<-queue.Tasks()

	err := proc.processNarrativeTask(context.Background(), messaging.NarrativeTaskPayload{JobId: jobId})
	require.NoError(t, err)

	var narrativeRow database.Narrative
	require.NoError(t, db.First(&narrativeRow, "job_id = ?", jobId).Error)
	assert.Equal(t, database.JobCompleted, narrativeRow.Status)
	assert.Equal(t, llm.response, narrativeRow.Text)

	var sections map[string][]string
	require.NoError(t, json.Unmarshal(narrativeRow.Sections, &sections))
	assert.Equal(t, []string{"Nothing to fix."}, sections["recommendations"])
}

func TestProcessNarrativeTaskFailureKeepsReport(t *testing.T) {
	llm := &stubLLM{response: "unused"}
	proc, db, objectStore, queue := setupTestProcessor(t, llm)

	jobId := createTestJob(t, db, objectStore, testCSV, true, "")
	require.NoError(t, proc.processProfileTask(context.Background(), messaging.ProfileTaskPayload{JobId: jobId}))
	<-queue.Tasks()

	llm.err = narrative.ErrCompletion
	err := proc.processNarrativeTask(context.Background(), messaging.NarrativeTaskPayload{JobId: jobId})
	require.Error(t, err)

	var narrativeRow database.Narrative
	require.NoError(t, db.First(&narrativeRow, "job_id = ?", jobId).Error)
	assert.Equal(t, database.JobFailed, narrativeRow.Status)

	// The stored profile is untouched by the narration failure.
	job, err := database.GetProfileJob(context.Background(), db, jobId)
	require.NoError(t, err)
	assert.Equal(t, database.JobCompleted, job.Status)
	assert.NotEmpty(t, job.ReportJSON)
}
