package api

import (
	"encoding/json"
	"time"

	"eda-backend/internal/database"
	"eda-backend/internal/narrative"
	"eda-backend/pkg/api"
)

func convertDataset(d database.Dataset) api.Dataset {
	return api.Dataset{
		Id:         d.Id,
		Name:       d.Name,
		Format:     d.Format,
		SizeBytes:  d.SizeBytes,
		UploadTime: d.UploadTime,
	}
}

func convertDatasets(ds []database.Dataset) []api.Dataset {
	datasets := make([]api.Dataset, 0, len(ds))
	for _, d := range ds {
		datasets = append(datasets, convertDataset(d))
	}
	return datasets
}

func convertJobError(e database.JobError) api.JobError {
	return api.JobError{
		Stage:     e.Stage,
		Error:     e.Error,
		Timestamp: e.Timestamp,
	}
}

func convertJob(j database.ProfileJob) api.ProfileJob {
	job := api.ProfileJob{
		Id:            j.Id,
		DatasetId:     j.DatasetId,
		Status:        j.Status,
		Filter:        j.Filter,
		WithNarrative: j.WithNarrative,
		CreationTime:  j.CreationTime,
		RowCount:      j.RowCount,
		ColumnCount:   j.ColumnCount,
	}

	if j.StartTime.Valid {
		start := j.StartTime.Time
		job.StartTime = &start
	}
	if j.CompletionTime.Valid {
		completion := j.CompletionTime.Time
		job.CompletionTime = &completion
	}

	for _, e := range j.Errors {
		job.Errors = append(job.Errors, convertJobError(e))
	}

	return job
}

func convertJobs(js []database.ProfileJob) []api.ProfileJob {
	jobs := make([]api.ProfileJob, 0, len(js))
	for _, j := range js {
		jobs = append(jobs, convertJob(j))
	}
	return jobs
}

func convertNarrative(n database.Narrative) api.Narrative {
	resp := api.Narrative{
		Status: n.Status,
		Model:  n.Model,
		Text:   n.Text,
	}

	if len(n.Sections) > 0 {
		var sections map[string][]string
		if err := json.Unmarshal(n.Sections, &sections); err == nil {
			resp.Bullets = sections["bullets"]
			resp.Recommendations = sections["recommendations"]
		}
	}

	return resp
}

func convertExperimentRows(rows []api.ExperimentRow) []narrative.ExperimentRow {
	out := make([]narrative.ExperimentRow, len(rows))
	for i, r := range rows {
		out[i] = narrative.ExperimentRow{
			Geo:       r.Geo,
			Treatment: r.Treatment,
			Control:   r.Control,
			Lift:      r.Lift,
			CILow:     r.CILow,
			CIHigh:    r.CIHigh,
			PValue:    r.PValue,
		}
	}
	return out
}

func formatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}
