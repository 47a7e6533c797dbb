package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"eda-backend/internal/database"
	"eda-backend/internal/dataset"
	"eda-backend/internal/messaging"
	"eda-backend/internal/narrative"
	"eda-backend/internal/profile"
	"eda-backend/internal/storage"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	StageLoad      = "load"
	StageProfile   = "profile"
	StageStorage   = "storage"
	StageNarrative = "narrative"
)

type TaskProcessor struct {
	db        *gorm.DB
	storage   storage.ObjectStore
	publisher messaging.Publisher
	reciever  messaging.Reciever

	profiler profile.Profiler
	composer *narrative.Composer

	reportBucket string
	workDir      string
}

func NewTaskProcessor(db *gorm.DB, objectStore storage.ObjectStore, publisher messaging.Publisher, reciever messaging.Reciever, profiler profile.Profiler, composer *narrative.Composer, reportBucket, workDir string) *TaskProcessor {
	return &TaskProcessor{
		db:           db,
		storage:      objectStore,
		publisher:    publisher,
		reciever:     reciever,
		profiler:     profiler,
		composer:     composer,
		reportBucket: reportBucket,
		workDir:      workDir,
	}
}

func (proc *TaskProcessor) Start() {
	slog.Info("starting task processor")

	for task := range proc.reciever.Tasks() {
		proc.ProcessTask(task)
	}
}

func (proc *TaskProcessor) Stop() {
	slog.Info("stopping task processor")

	proc.publisher.Close()
	proc.reciever.Close()
}

func (proc *TaskProcessor) ProcessTask(task messaging.Task) {
	ctx := context.Background()

	var err error
	switch task.Type() {

	case messaging.ProfileQueue:
		var payload messaging.ProfileTaskPayload
		if err = json.Unmarshal(task.Payload(), &payload); err != nil {
			slog.Error("error unmarshalling profile task", "error", err)
			if err := task.Reject(); err != nil { // Discard malformed message
				slog.Error("error rejecting message from queue", "error", err)
			}
			return
		}
		err = proc.processProfileTask(ctx, payload)

	case messaging.NarrativeQueue:
		var payload messaging.NarrativeTaskPayload
		if err = json.Unmarshal(task.Payload(), &payload); err != nil {
			slog.Error("error unmarshalling narrative task", "error", err)
			if err := task.Reject(); err != nil { // Discard malformed message
				slog.Error("error rejecting message from queue", "error", err)
			}
			return
		}
		err = proc.processNarrativeTask(ctx, payload)

	default:
		slog.Error("received unknown task type", "queue", task.Type())
		if err := task.Reject(); err != nil {
			slog.Error("error rejecting message from queue", "error", err)
		}
		return
	}

	if err != nil {
		slog.Error("error processing task", "queue", task.Type(), "error", err)
		if err := task.Nack(); err != nil {
			slog.Error("error reporting processing failure on message from queue", "error", err)
		}
	} else {
		slog.Info("successfully processed task", "queue", task.Type())
		if err := task.Ack(); err != nil {
			slog.Error("error acknowledging message from queue", "error", err)
		}
	}
}

func (proc *TaskProcessor) loadDataset(ctx context.Context, ds *database.Dataset) (*dataset.Table, error) {
	localPath := filepath.Join(proc.workDir, ds.Id.String(), ds.Name)

	if err := proc.storage.DownloadObject(ctx, ds.Bucket, ds.ObjectKey, localPath); err != nil {
		return nil, fmt.Errorf("error downloading dataset: %w", err)
	}
	defer os.RemoveAll(filepath.Dir(localPath))

	table, err := dataset.Load(localPath)
	if err != nil {
		return nil, fmt.Errorf("error loading dataset %s: %w", ds.Name, err)
	}
	return table, nil
}

func (proc *TaskProcessor) failProfileJob(ctx context.Context, jobId uuid.UUID, stage string, cause error) {
	database.SaveJobError(ctx, proc.db, jobId, stage, cause.Error())
	database.UpdateProfileJobStatus(ctx, proc.db, jobId, database.JobFailed) //nolint:errcheck
}

func (proc *TaskProcessor) processProfileTask(ctx context.Context, payload messaging.ProfileTaskPayload) error {
	jobId := payload.JobId

	slog.Info("processing profile task", "job_id", jobId)

	job, err := database.GetProfileJob(ctx, proc.db, jobId, "Dataset")
	if err != nil {
		slog.Error("error fetching profile job", "job_id", jobId, "error", err)
		return fmt.Errorf("error getting profile job: %w", err)
	}

	if err := database.UpdateProfileJobStatus(ctx, proc.db, jobId, database.JobRunning); err != nil {
		slog.Error("error marking job as running", "job_id", jobId, "error", err)
	}

	table, err := proc.loadDataset(ctx, job.Dataset)
	if err != nil {
		proc.failProfileJob(ctx, jobId, StageLoad, err)
		return err
	}

	if job.Filter != "" {
		filter, err := dataset.ParseFilter(job.Filter)
		if err != nil {
			proc.failProfileJob(ctx, jobId, StageLoad, err)
			return fmt.Errorf("error parsing row filter: %w", err)
		}
		table = dataset.Apply(table, filter)
	}

	report, err := proc.profiler.Profile(ctx, table)
	if err != nil {
		proc.failProfileJob(ctx, jobId, StageProfile, err)
		return fmt.Errorf("error profiling dataset: %w", err)
	}

	if err := proc.saveReport(ctx, jobId, report); err != nil {
		proc.failProfileJob(ctx, jobId, StageStorage, err)
		return err
	}

	if job.WithNarrative {
		// The report is already stored at this point, so a failure to queue the
		// narration is recorded on the narrative and never fails the profile job.
		if err := proc.queueNarrative(ctx, jobId, job.Model); err != nil {
			slog.Error("error queueing narrative task", "job_id", jobId, "error", err)
			proc.failNarrative(ctx, jobId, err)
		}
	}

	if err := database.UpdateProfileJobStatus(ctx, proc.db, jobId, database.JobCompleted); err != nil {
		return fmt.Errorf("error updating profile job status to complete: %w", err)
	}

	slog.Info("profile task completed successfully", "job_id", jobId)

	return nil
}

func (proc *TaskProcessor) saveReport(ctx context.Context, jobId uuid.UUID, report *profile.Report) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("error marshalling report: %w", err)
	}

	summaries := make([]database.ColumnSummary, len(report.Columns))
	for i, col := range report.Columns {
		var stats []byte
		if col.Numeric != nil {
			stats, err = json.Marshal(col.Numeric)
		} else if col.Text != nil {
			stats, err = json.Marshal(col.Text)
		}
		if err != nil {
			return fmt.Errorf("error marshalling column stats for %s: %w", col.Name, err)
		}

		summaries[i] = database.ColumnSummary{
			JobId:        jobId,
			Name:         col.Name,
			Type:         string(col.Type),
			Count:        col.Count,
			MissingCount: col.MissingCount,
			Stats:        datatypes.JSON(stats),
		}
	}

	err = proc.db.WithContext(ctx).Transaction(func(txn *gorm.DB) error {
		if err := txn.Model(&database.ProfileJob{Id: jobId}).Updates(map[string]any{
			"row_count":    report.RowCount,
			"column_count": report.ColumnCount,
			"report_json":  datatypes.JSON(reportJSON),
		}).Error; err != nil {
			return err
		}
		return txn.CreateInBatches(&summaries, 100).Error
	})
	if err != nil {
		return fmt.Errorf("error saving report to database: %w", err)
	}

	var html bytes.Buffer
	if err := profile.RenderHTML(&html, report); err != nil {
		return fmt.Errorf("error rendering report html: %w", err)
	}

	if err := proc.storage.PutObject(ctx, proc.reportBucket, reportKey(jobId, "report.html"), &html); err != nil {
		return fmt.Errorf("error uploading report html: %w", err)
	}
	if err := proc.storage.PutObject(ctx, proc.reportBucket, reportKey(jobId, "report.json"), bytes.NewReader(reportJSON)); err != nil {
		return fmt.Errorf("error uploading report json: %w", err)
	}

	return nil
}

func reportKey(jobId uuid.UUID, name string) string {
	return filepath.ToSlash(filepath.Join("jobs", jobId.String(), name))
}

func (proc *TaskProcessor) queueNarrative(ctx context.Context, jobId uuid.UUID, model string) error {
	narrativeRow := database.Narrative{
		JobId:        jobId,
		Status:       database.JobQueued,
		Model:        model,
		CreationTime: time.Now().UTC(),
	}
	if err := proc.db.WithContext(ctx).Where(database.Narrative{JobId: jobId}).FirstOrCreate(&narrativeRow).Error; err != nil {
		return fmt.Errorf("error creating narrative record: %w", err)
	}

	if err := proc.publisher.PublishNarrativeTask(ctx, messaging.NarrativeTaskPayload{JobId: jobId}); err != nil {
		return fmt.Errorf("error publishing narrative task: %w", err)
	}
	return nil
}

func (proc *TaskProcessor) processNarrativeTask(ctx context.Context, payload messaging.NarrativeTaskPayload) error {
	jobId := payload.JobId

	slog.Info("processing narrative task", "job_id", jobId)

	job, err := database.GetProfileJob(ctx, proc.db, jobId)
	if err != nil {
		slog.Error("error fetching profile job for narrative", "job_id", jobId, "error", err)
		return fmt.Errorf("error getting profile job: %w", err)
	}

	if len(job.ReportJSON) == 0 {
		err := errors.New("profile job has no stored report")
		proc.failNarrative(ctx, jobId, err)
		return err
	}

	var report profile.Report
	if err := json.Unmarshal(job.ReportJSON, &report); err != nil {
		proc.failNarrative(ctx, jobId, err)
		return fmt.Errorf("error unmarshalling stored report: %w", err)
	}

	database.UpdateNarrativeStatus(ctx, proc.db, jobId, database.JobRunning) //nolint:errcheck

	summary, err := proc.composer.SummarizeProfile(ctx, &report)
	if err != nil {
		// The profile results are already stored, a narration failure never
		// invalidates them.
		proc.failNarrative(ctx, jobId, err)
		return fmt.Errorf("error composing narrative: %w", err)
	}

	if err := database.SaveNarrative(ctx, proc.db, jobId, summary.Text, summary.Bullets, summary.Recommendations); err != nil {
		proc.failNarrative(ctx, jobId, err)
		return err
	}

	slog.Info("narrative task completed successfully", "job_id", jobId)

	return nil
}

func (proc *TaskProcessor) failNarrative(ctx context.Context, jobId uuid.UUID, cause error) {
	database.SaveJobError(ctx, proc.db, jobId, StageNarrative, cause.Error())
	database.UpdateNarrativeStatus(ctx, proc.db, jobId, database.JobFailed) //nolint:errcheck
}
