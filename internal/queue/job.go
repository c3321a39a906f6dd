package queue

import (
	"encoding/json"
	"fmt"
)

// PipelineJob asks a worker to run Pipeline over the objects at Inputs and
// store the zipped outputs at ResultKey.
type PipelineJob struct {
	JobID     string          `json:"jobId"`
	ProjectID int64           `json:"projectId"`
	Inputs    []string        `json:"inputs"`
	Pipeline  json.RawMessage `json:"pipeline"`
	ResultKey string          `json:"resultKey"`
}

// PipelineResult is the worker's reply. Error is set instead of ResultKey
// when the run failed.
type PipelineResult struct {
	JobID     string `json:"jobId"`
	ResultKey string `json:"resultKey,omitempty"`
	Files     int    `json:"files,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (j PipelineJob) Validate() error {
	if j.JobID == "" {
		return fmt.Errorf("job id missing")
	}
	if len(j.Inputs) == 0 {
		return fmt.Errorf("job %s has no inputs", j.JobID)
	}
	if len(j.Pipeline) == 0 {
		return fmt.Errorf("job %s has no pipeline", j.JobID)
	}
	if j.ResultKey == "" {
		return fmt.Errorf("job %s has no result key", j.JobID)
	}
	return nil
}

// JobPrefix is the object prefix holding everything that belongs to a job.
func JobPrefix(jobID string) string {
	return "jobs/" + jobID + "/"
}

func InputKey(jobID, name string) string {
	return JobPrefix(jobID) + "input/" + name
}

func ResultKey(jobID string) string {
	return JobPrefix(jobID) + "processed.zip"
}
