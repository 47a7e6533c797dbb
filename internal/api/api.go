package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"eda-backend/internal/database"
	"eda-backend/internal/dataset"
	"eda-backend/internal/messaging"
	"eda-backend/internal/narrative"
	"eda-backend/internal/storage"
	"eda-backend/pkg/api"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var maxUploadBytes int64 = 512 * 1024 * 1024

type BackendService struct {
	db        *gorm.DB
	publisher messaging.Publisher
	storage   storage.ObjectStore
	composer  *narrative.Composer

	datasetBucket string
	reportBucket  string
	defaultModel  string
}

func NewBackendService(db *gorm.DB, publisher messaging.Publisher, objectStore storage.ObjectStore, composer *narrative.Composer, datasetBucket, reportBucket, defaultModel string) *BackendService {
	return &BackendService{
		db:            db,
		publisher:     publisher,
		storage:       objectStore,
		composer:      composer,
		datasetBucket: datasetBucket,
		reportBucket:  reportBucket,
		defaultModel:  defaultModel,
	}
}

func (s *BackendService) AddRoutes(r chi.Router) {
	r.Get("/health", RestHandler(func(r *http.Request) (any, error) { return nil, nil }))
	r.Route("/datasets", func(r chi.Router) {
		r.Post("/", RestHandler(s.UploadDataset))
		r.Get("/", RestHandler(s.ListDatasets))
		r.Get("/{dataset_id}", RestHandler(s.GetDataset))
		r.Delete("/{dataset_id}", RestHandler(s.DeleteDataset))
		r.Post("/{dataset_id}/profile", RestHandler(s.SubmitProfileJob))
	})
	r.Route("/jobs", func(r chi.Router) {
		r.Get("/", RestHandler(s.ListJobs))
		r.Get("/{job_id}", RestHandler(s.GetJob))
		r.Get("/{job_id}/report", RestHandler(s.GetReport))
		r.Get("/{job_id}/report/html", s.GetReportHTML)
		r.Get("/{job_id}/narrative", RestHandler(s.GetNarrative))
	})
	r.Route("/experiments", func(r chi.Router) {
		r.Post("/narrative", RestHandler(s.ExperimentNarrative))
	})
}

func datasetFormat(filename string) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return "csv", nil
	case ".json":
		return "json", nil
	case ".db", ".sqlite", ".sqlite3":
		return "sqlite", nil
	default:
		return "", CodedErrorf(http.StatusBadRequest, "unsupported dataset format '%s': expected .csv, .json, or a sqlite database", filepath.Ext(filename))
	}
}

func (s *BackendService) UploadDataset(r *http.Request) (any, error) {
	ctx := r.Context()

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, CodedErrorf(http.StatusBadRequest, "unable to parse multipart form: %v", err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, CodedErrorf(http.StatusBadRequest, "missing 'file' form field")
	}
	defer file.Close()

	name := header.Filename
	if override := r.FormValue("name"); override != "" {
		name = override
	}
	if err := validateDatasetName(name); err != nil {
		return nil, err
	}

	format, err := datasetFormat(name)
	if err != nil {
		return nil, err
	}

	if header.Size > maxUploadBytes {
		return nil, CodedErrorf(http.StatusRequestEntityTooLarge, "dataset is %d bytes, the upload limit is %d bytes", header.Size, maxUploadBytes)
	}

	datasetId := uuid.New()
	key := fmt.Sprintf("datasets/%s/%s", datasetId, name)

	if err := s.storage.PutObject(ctx, s.datasetBucket, key, file); err != nil {
		slog.Error("error uploading dataset to object store", "dataset_id", datasetId, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to store dataset")
	}

	record := database.Dataset{
		Id:         datasetId,
		Name:       name,
		Format:     format,
		Bucket:     s.datasetBucket,
		ObjectKey:  key,
		SizeBytes:  header.Size,
		UploadTime: time.Now().UTC(),
	}

	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		slog.Error("error creating dataset record", "dataset_id", datasetId, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to create dataset entry")
	}

	slog.Info("dataset uploaded", "dataset_id", datasetId, "name", name, "format", format, "size_bytes", header.Size)

	return api.UploadDatasetResponse{DatasetId: datasetId}, nil
}

func (s *BackendService) ListDatasets(r *http.Request) (any, error) {
	params, err := ParseRequestQueryParams[api.ListDatasetsQuery](r)
	if err != nil {
		return nil, err
	}

	query := s.db.WithContext(r.Context()).Order("upload_time DESC")
	if params.Limit > 0 {
		query = query.Limit(params.Limit)
	}
	if params.Offset > 0 {
		query = query.Offset(params.Offset)
	}

	var datasets []database.Dataset
	if err := query.Find(&datasets).Error; err != nil {
		slog.Error("error listing datasets", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error retrieving dataset records")
	}

	return convertDatasets(datasets), nil
}

func (s *BackendService) getDataset(r *http.Request) (database.Dataset, error) {
	datasetId, err := URLParamUUID(r, "dataset_id")
	if err != nil {
		return database.Dataset{}, err
	}

	var record database.Dataset
	if err := s.db.WithContext(r.Context()).First(&record, "id = ?", datasetId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return database.Dataset{}, CodedErrorf(http.StatusNotFound, "dataset not found")
		}
		slog.Error("error getting dataset", "dataset_id", datasetId, "error", err)
		return database.Dataset{}, CodedErrorf(http.StatusInternalServerError, "error retrieving dataset record")
	}
	return record, nil
}

func (s *BackendService) GetDataset(r *http.Request) (any, error) {
	record, err := s.getDataset(r)
	if err != nil {
		return nil, err
	}
	return convertDataset(record), nil
}

func (s *BackendService) DeleteDataset(r *http.Request) (any, error) {
	record, err := s.getDataset(r)
	if err != nil {
		return nil, err
	}

	ctx := r.Context()

	if err := s.storage.DeleteObjects(ctx, record.Bucket, fmt.Sprintf("datasets/%s/", record.Id)); err != nil {
		slog.Error("error deleting dataset objects", "dataset_id", record.Id, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to delete dataset objects")
	}

	if err := s.db.WithContext(ctx).Select("ProfileJobs").Delete(&record).Error; err != nil {
		slog.Error("error deleting dataset record", "dataset_id", record.Id, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to delete dataset entry")
	}

	return nil, nil
}

func (s *BackendService) SubmitProfileJob(r *http.Request) (any, error) {
	record, err := s.getDataset(r)
	if err != nil {
		return nil, err
	}

	req, err := ParseRequest[api.CreateProfileJobRequest](r)
	if err != nil {
		return nil, err
	}

	if req.Filter != "" {
		if _, err := dataset.ParseFilter(req.Filter); err != nil {
			return nil, CodedErrorf(http.StatusUnprocessableEntity, "invalid row filter: %v", err)
		}
	}

	threshold := req.SignificanceThreshold
	if threshold == 0 {
		threshold = narrative.DefaultSignificanceThreshold
	}
	if threshold < 0 || threshold > 1 {
		return nil, CodedErrorf(http.StatusUnprocessableEntity, "significance_threshold must be in [0, 1]")
	}

	model := req.Model
	if model == "" {
		model = s.defaultModel
	}

	ctx := r.Context()

	job := database.ProfileJob{
		Id:                    uuid.New(),
		DatasetId:             record.Id,
		Status:                database.JobQueued,
		Filter:                req.Filter,
		WithNarrative:         req.WithNarrative,
		Model:                 model,
		SignificanceThreshold: threshold,
		CreationTime:          time.Now().UTC(),
	}

	if err := s.db.WithContext(ctx).Create(&job).Error; err != nil {
		slog.Error("error creating profile job", "dataset_id", record.Id, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to create profile job entry")
	}

	if err := s.publisher.PublishProfileTask(ctx, messaging.ProfileTaskPayload{JobId: job.Id}); err != nil {
		slog.Error("error publishing profile task", "job_id", job.Id, "error", err)
		database.UpdateProfileJobStatus(ctx, s.db, job.Id, database.JobFailed) //nolint:errcheck
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to queue profile job")
	}

	slog.Info("submitted profile job", "job_id", job.Id, "dataset_id", record.Id, "with_narrative", req.WithNarrative)

	return api.CreateProfileJobResponse{JobId: job.Id}, nil
}

func (s *BackendService) ListJobs(r *http.Request) (any, error) {
	params, err := ParseRequestQueryParams[api.ListJobsQuery](r)
	if err != nil {
		return nil, err
	}

	query := s.db.WithContext(r.Context()).Order("creation_time DESC")
	if params.DatasetId != "" {
		datasetId, err := uuid.Parse(params.DatasetId)
		if err != nil {
			return nil, CodedErrorf(http.StatusBadRequest, "invalid dataset_id query param")
		}
		query = query.Where("dataset_id = ?", datasetId)
	}
	if params.Status != "" {
		query = query.Where("status = ?", strings.ToUpper(params.Status))
	}
	if params.Limit > 0 {
		query = query.Limit(params.Limit)
	}
	if params.Offset > 0 {
		query = query.Offset(params.Offset)
	}

	var jobs []database.ProfileJob
	if err := query.Find(&jobs).Error; err != nil {
		slog.Error("error listing profile jobs", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error retrieving profile job records")
	}

	return convertJobs(jobs), nil
}

func (s *BackendService) getJob(r *http.Request, preloads ...string) (database.ProfileJob, error) {
	jobId, err := URLParamUUID(r, "job_id")
	if err != nil {
		return database.ProfileJob{}, err
	}

	query := s.db.WithContext(r.Context())
	for _, preload := range preloads {
		query = query.Preload(preload)
	}

	var job database.ProfileJob
	if err := query.First(&job, "id = ?", jobId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return database.ProfileJob{}, CodedErrorf(http.StatusNotFound, "profile job not found")
		}
		slog.Error("error getting profile job", "job_id", jobId, "error", err)
		return database.ProfileJob{}, CodedErrorf(http.StatusInternalServerError, "error retrieving profile job record")
	}
	return job, nil
}

func (s *BackendService) GetJob(r *http.Request) (any, error) {
	job, err := s.getJob(r, "Errors")
	if err != nil {
		return nil, err
	}
	return convertJob(job), nil
}

func (s *BackendService) GetReport(r *http.Request) (any, error) {
	job, err := s.getJob(r)
	if err != nil {
		return nil, err
	}

	if job.Status != database.JobCompleted {
		return nil, CodedErrorf(http.StatusConflict, "profile job has status %s, report is only available once the job is %s", job.Status, database.JobCompleted)
	}

	return job.ReportJSON, nil
}

func (s *BackendService) GetReportHTML(w http.ResponseWriter, r *http.Request) {
	job, err := s.getJob(r)
	if err != nil {
		var cerr *codedError
		if errors.As(err, &cerr) {
			http.Error(w, err.Error(), cerr.code)
		} else {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	if job.Status != database.JobCompleted {
		http.Error(w, fmt.Sprintf("profile job has status %s", job.Status), http.StatusConflict)
		return
	}

	key := fmt.Sprintf("jobs/%s/report.html", job.Id)
	reader, err := s.storage.GetObject(r.Context(), s.reportBucket, key)
	if err != nil {
		slog.Error("error fetching report html", "job_id", job.Id, "error", err)
		http.Error(w, "report not found in object store", http.StatusNotFound)
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := io.Copy(w, reader); err != nil {
		slog.Error("error streaming report html", "job_id", job.Id, "error", err)
	}
}

func (s *BackendService) GetNarrative(r *http.Request) (any, error) {
	job, err := s.getJob(r, "Narrative")
	if err != nil {
		return nil, err
	}

	if !job.WithNarrative {
		return nil, CodedErrorf(http.StatusNotFound, "profile job was submitted without a narrative")
	}
	if job.Narrative == nil {
		return nil, CodedErrorf(http.StatusConflict, "narrative has not been queued yet")
	}

	return convertNarrative(*job.Narrative), nil
}

func (s *BackendService) ExperimentNarrative(r *http.Request) (any, error) {
	req, err := ParseRequest[api.ExperimentNarrativeRequest](r)
	if err != nil {
		return nil, err
	}

	if len(req.Rows) == 0 {
		return nil, CodedErrorf(http.StatusUnprocessableEntity, "at least one experiment row is required")
	}

	rows := convertExperimentRows(req.Rows)
	for i, row := range rows {
		if err := row.Validate(); err != nil {
			return nil, CodedErrorf(http.StatusUnprocessableEntity, "invalid experiment row %d: %v", i, err)
		}
	}

	composer := s.composer
	if req.SignificanceThreshold != 0 {
		if req.SignificanceThreshold < 0 || req.SignificanceThreshold > 1 {
			return nil, CodedErrorf(http.StatusUnprocessableEntity, "significance_threshold must be in [0, 1]")
		}
		scoped := *composer
		scoped.SignificanceThreshold = req.SignificanceThreshold
		composer = &scoped
	}

	summary, err := composer.SummarizeExperiment(r.Context(), rows)
	if err != nil {
		if errors.Is(err, narrative.ErrCompletion) {
			return nil, CodedErrorf(http.StatusBadGateway, "completion service failed: %v", err)
		}
		return nil, CodedErrorf(http.StatusInternalServerError, "error composing experiment narrative: %v", err)
	}

	return api.ExperimentNarrativeResponse{
		Text:            summary.Text,
		Bullets:         summary.Bullets,
		Recommendations: summary.Recommendations,
	}, nil
}
