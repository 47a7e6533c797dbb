package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	backend "eda-backend/internal/api"
	"eda-backend/internal/database"
	"eda-backend/internal/messaging"
	"eda-backend/internal/narrative"
	"eda-backend/internal/storage"
	"eda-backend/pkg/api"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func createDB(t *testing.T, create ...any) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, database.GetMigrator(db).Migrate())

	for _, c := range create {
		require.NoError(t, db.Create(c).Error)
	}

	return db
}

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

func setupRouter(t *testing.T, db *gorm.DB, llm narrative.LLM) (chi.Router, *messaging.InMemoryQueue, *storage.LocalObjectStore) {
	t.Helper()

	objectStore, err := storage.NewLocalObjectStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, objectStore.CreateBucket(context.Background(), "datasets"))
	require.NoError(t, objectStore.CreateBucket(context.Background(), "reports"))

	queue := messaging.NewInMemoryQueue()

	service := backend.NewBackendService(db, queue, objectStore, narrative.NewComposer(llm), "datasets", "reports", "gpt-4o-mini")
	router := chi.NewRouter()
	service.AddRoutes(router)

	return router, queue, objectStore
}

func uploadRequest(t *testing.T, filename, content string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/datasets", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestUploadDataset(t *testing.T) {
	db := createDB(t)
	router, _, objectStore := setupRouter(t, db, &stubLLM{response: "ok"})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "sales.csv", "geo,spend\nNY,100\n"))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var response api.UploadDatasetResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))

	var record database.Dataset
	require.NoError(t, db.First(&record, "id = ?", response.DatasetId).Error)
	assert.Equal(t, "sales.csv", record.Name)
	assert.Equal(t, "csv", record.Format)

	objects, err := objectStore.ListObjects(context.Background(), "datasets", "datasets/"+response.DatasetId.String())
	require.NoError(t, err)
	assert.Len(t, objects, 1)
}

func TestUploadDatasetRejectsUnknownFormat(t *testing.T) {
	db := createDB(t)
	router, _, _ := setupRouter(t, db, &stubLLM{response: "ok"})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "notes.txt", "hello"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadDatasetRejectsOversizedFile(t *testing.T) {
	db := createDB(t)
	router, _, objectStore := setupRouter(t, db, &stubLLM{response: "ok"})

	prev := *backend.MaxUploadBytes
	*backend.MaxUploadBytes = 16
	t.Cleanup(func() { *backend.MaxUploadBytes = prev })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "sales.csv", "geo,spend\nNY,100\nCA,200\n"))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	var count int64
	require.NoError(t, db.Model(&database.Dataset{}).Count(&count).Error)
	assert.Zero(t, count, "no dataset record for a rejected upload")

	objects, err := objectStore.ListObjects(context.Background(), "datasets", "datasets/")
	require.NoError(t, err)
	assert.Empty(t, objects)
}

func TestListDatasets(t *testing.T) {
	id1, id2 := uuid.New(), uuid.New()
	db := createDB(t,
		&database.Dataset{Id: id1, Name: "a.csv", Format: "csv", UploadTime: time.Now().Add(-time.Hour)},
		&database.Dataset{Id: id2, Name: "b.json", Format: "json", UploadTime: time.Now()},
	)
	router, _, _ := setupRouter(t, db, &stubLLM{response: "ok"})

	req := httptest.NewRequest(http.MethodGet, "/datasets", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var response []api.Dataset
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	require.Len(t, response, 2)
	assert.Equal(t, id2, response[0].Id, "most recent upload first")
	assert.Equal(t, id1, response[1].Id)
}

func TestSubmitProfileJob(t *testing.T) {
	datasetId := uuid.New()
	db := createDB(t, &database.Dataset{Id: datasetId, Name: "a.csv", Format: "csv", UploadTime: time.Now()})
	router, queue, _ := setupRouter(t, db, &stubLLM{response: "ok"})

	body := `{"filter": "geo = \"NY\"", "with_narrative": true}`
	req := httptest.NewRequest(http.MethodPost, "/datasets/"+datasetId.String()+"/profile", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var response api.CreateProfileJobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))

	var job database.ProfileJob
	require.NoError(t, db.First(&job, "id = ?", response.JobId).Error)
	assert.Equal(t, database.JobQueued, job.Status)
	assert.Equal(t, `geo = "NY"`, job.Filter)
	assert.True(t, job.WithNarrative)
	assert.Equal(t, narrative.DefaultSignificanceThreshold, job.SignificanceThreshold)

	task := <-queue.Tasks()
	assert.Equal(t, messaging.ProfileQueue, task.Type())
}

func TestSubmitProfileJobInvalidFilter(t *testing.T) {
	datasetId := uuid.New()
	db := createDB(t, &database.Dataset{Id: datasetId, Name: "a.csv", Format: "csv", UploadTime: time.Now()})
	router, _, _ := setupRouter(t, db, &stubLLM{response: "ok"})

	body := `{"filter": "geo = = NY"}`
	req := httptest.NewRequest(http.MethodPost, "/datasets/"+datasetId.String()+"/profile", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestSubmitProfileJobUnknownDataset(t *testing.T) {
	db := createDB(t)
	router, _, _ := setupRouter(t, db, &stubLLM{response: "ok"})

	req := httptest.NewRequest(http.MethodPost, "/datasets/"+uuid.NewString()+"/profile", strings.NewReader("{}"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetJobWithErrors(t *testing.T) {
	datasetId, jobId := uuid.New(), uuid.New()
	db := createDB(t,
		&database.Dataset{Id: datasetId, Name: "a.csv", Format: "csv", UploadTime: time.Now()},
		&database.ProfileJob{Id: jobId, DatasetId: datasetId, Status: database.JobFailed, CreationTime: time.Now()},
		&database.JobError{JobId: jobId, ErrorId: uuid.New(), Stage: "load", Error: "empty input", Timestamp: time.Now()},
	)
	router, _, _ := setupRouter(t, db, &stubLLM{response: "ok"})

	req := httptest.NewRequest(http.MethodGet, "/jobs/"+jobId.String(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var response api.ProfileJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, database.JobFailed, response.Status)
	require.Len(t, response.Errors, 1)
	assert.Equal(t, "load", response.Errors[0].Stage)
}

func TestGetReportRequiresCompletedJob(t *testing.T) {
	datasetId, jobId := uuid.New(), uuid.New()
	db := createDB(t,
		&database.Dataset{Id: datasetId, Name: "a.csv", Format: "csv", UploadTime: time.Now()},
		&database.ProfileJob{Id: jobId, DatasetId: datasetId, Status: database.JobRunning, CreationTime: time.Now()},
	)
	router, _, _ := setupRouter(t, db, &stubLLM{response: "ok"})

	req := httptest.NewRequest(http.MethodGet, "/jobs/"+jobId.String()+"/report", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetNarrative(t *testing.T) {
	datasetId, jobId := uuid.New(), uuid.New()
	sections, err := json.Marshal(map[string][]string{"bullets": {"a"}, "recommendations": {"b"}})
	require.NoError(t, err)

	db := createDB(t,
		&database.Dataset{Id: datasetId, Name: "a.csv", Format: "csv", UploadTime: time.Now()},
		&database.ProfileJob{Id: jobId, DatasetId: datasetId, Status: database.JobCompleted, WithNarrative: true, CreationTime: time.Now()},
		&database.Narrative{JobId: jobId, Status: database.JobCompleted, Model: "gpt-4o-mini", Text: "a\nRecommendations\nb", Sections: datatypes.JSON(sections), CreationTime: time.Now()},
	)
	router, _, _ := setupRouter(t, db, &stubLLM{response: "ok"})

	req := httptest.NewRequest(http.MethodGet, "/jobs/"+jobId.String()+"/narrative", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var response api.Narrative
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, database.JobCompleted, response.Status)
	assert.Equal(t, []string{"a"}, response.Bullets)
	assert.Equal(t, []string{"b"}, response.Recommendations)
}

func TestExperimentNarrative(t *testing.T) {
	db := createDB(t)
	llm := &stubLLM{response: "Summary:\n- NY and TX show significant lifts.\n\nRecommendations:\n- Scale NY."}
	router, _, _ := setupRouter(t, db, llm)

	body := `{"rows": [
		{"geo": "NY", "treatment": 120, "control": 100, "lift": 0.12, "ci_low": 0.05, "ci_high": 0.19, "p_value": 0.01},
		{"geo": "CA", "treatment": 98, "control": 96, "lift": 0.02, "ci_low": -0.05, "ci_high": 0.09, "p_value": 0.20}
	]}`
	req := httptest.NewRequest(http.MethodPost, "/experiments/narrative", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var response api.ExperimentNarrativeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, []string{"NY and TX show significant lifts."}, response.Bullets)
	assert.Equal(t, []string{"Scale NY."}, response.Recommendations)
}

func TestExperimentNarrativeInvalidRow(t *testing.T) {
	db := createDB(t)
	router, _, _ := setupRouter(t, db, &stubLLM{response: "ok"})

	body := `{"rows": [{"geo": "NY", "lift": 0.5, "ci_low": 0.05, "ci_high": 0.19, "p_value": 0.01}]}`
	req := httptest.NewRequest(http.MethodPost, "/experiments/narrative", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestExperimentNarrativeCompletionFailure(t *testing.T) {
	db := createDB(t)
	router, _, _ := setupRouter(t, db, &stubLLM{err: narrative.ErrCompletion})

	body := `{"rows": [{"geo": "NY", "treatment": 120, "control": 100, "lift": 0.12, "ci_low": 0.05, "ci_high": 0.19, "p_value": 0.01}]}`
	req := httptest.NewRequest(http.MethodPost, "/experiments/narrative", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
