package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func UpdateProfileJobStatus(ctx context.Context, txn *gorm.DB, jobId uuid.UUID, status string) error {
	updates := map[string]any{"status": status}
	if status == JobRunning {
		updates["start_time"] = time.Now().UTC()
	}
	if status == JobCompleted || status == JobFailed {
		updates["completion_time"] = time.Now().UTC()
	}

	if err := txn.WithContext(ctx).Model(&ProfileJob{Id: jobId}).Updates(updates).Error; err != nil {
		slog.Error("error updating profile job status", "job_id", jobId, "status", status, "error", err)
		return err
	}
	return nil
}

func UpdateNarrativeStatus(ctx context.Context, txn *gorm.DB, jobId uuid.UUID, status string) error {
	updates := map[string]any{"status": status}
	if status == JobCompleted || status == JobFailed {
		updates["completion_time"] = time.Now().UTC()
	}

	if err := txn.WithContext(ctx).Model(&Narrative{JobId: jobId}).Updates(updates).Error; err != nil {
		slog.Error("error updating narrative status", "job_id", jobId, "status", status, "error", err)
		return err
	}
	return nil
}

func SaveJobError(ctx context.Context, txn *gorm.DB, jobId uuid.UUID, stage, errorMessage string) {
	jobError := JobError{
		JobId:     jobId,
		ErrorId:   uuid.New(),
		Stage:     stage,
		Error:     errorMessage,
		Timestamp: time.Now().UTC(),
	}

	if err := txn.WithContext(ctx).Create(&jobError).Error; err != nil {
		slog.Error("error saving job error", "job_id", jobId, "error", err)
	}
}

func SaveNarrative(ctx context.Context, db *gorm.DB, jobId uuid.UUID, text string, bullets, recommendations []string) error {
	sections, err := json.Marshal(map[string][]string{
		"bullets":         bullets,
		"recommendations": recommendations,
	})
	if err != nil {
		return fmt.Errorf("could not marshal narrative sections: %w", err)
	}

	updates := map[string]any{
		"status":          JobCompleted,
		"text":            text,
		"sections":        sections,
		"completion_time": time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Model(&Narrative{JobId: jobId}).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to save narrative: %w", err)
	}
	return nil
}

func GetProfileJob(ctx context.Context, db *gorm.DB, jobId uuid.UUID, preloads ...string) (*ProfileJob, error) {
	query := db.WithContext(ctx)
	for _, preload := range preloads {
		query = query.Preload(preload)
	}

	var job ProfileJob
	if err := query.First(&job, "id = ?", jobId).Error; err != nil {
		return nil, err
	}
	return &job, nil
}
