package models

import (
	"fmt"
	"time"
)

// BatchRequest is the body of POST /zup.
type BatchRequest struct {
	Title   string   `json:"title" yaml:"title"`
	URLs    []string `json:"img_url_array" yaml:"img_url_array"`
	PageURL string   `json:"page_url" yaml:"page_url"`
}

// DownloadJob is one URL to file transfer inside a batch.
type DownloadJob struct {
	Index     int
	SourceURL string
	DestPath  string
}

// FileName returns the destination file name for the job at index.
func FileName(index int) string {
	return fmt.Sprintf("%04d.jpg", index+1)
}

type OutcomeKind string

const (
	OutcomeSkipped   OutcomeKind = "skipped"
	OutcomeSucceeded OutcomeKind = "succeeded"
	OutcomeFailed    OutcomeKind = "failed"
)

// ErrorKind classifies why a job failed.
type ErrorKind string

const (
	KindNetwork      ErrorKind = "network"
	KindStatus       ErrorKind = "http_status"
	KindEmptyContent ErrorKind = "empty_content"
	KindWrite        ErrorKind = "write"
	KindTaskFault    ErrorKind = "task_fault"
)

type Outcome struct {
	Job     DownloadJob
	Kind    OutcomeKind
	ErrKind ErrorKind
	Reason  string
	Bytes   int64
}

func Skipped(job DownloadJob) Outcome   { return Outcome{Job: job, Kind: OutcomeSkipped} }
func Succeeded(job DownloadJob) Outcome { return Outcome{Job: job, Kind: OutcomeSucceeded} }

func Failed(job DownloadJob, kind ErrorKind, reason string) Outcome {
	return Outcome{Job: job, Kind: OutcomeFailed, ErrKind: kind, Reason: reason}
}

type FailedItem struct {
	Index     int       `json:"index"`
	SourceURL string    `json:"url"`
	Kind      ErrorKind `json:"kind"`
	Reason    string    `json:"reason"`
}

// BatchResult aggregates every job outcome of one batch.
// SucceededOrSkipped + len(Failed) == Total once the batch is done.
type BatchResult struct {
	ID                 string       `json:"id"`
	Collection         string       `json:"collection"`
	Dir                string       `json:"dir"`
	PageURL            string       `json:"pageUrl"`
	Total              int          `json:"total"`
	SucceededOrSkipped int          `json:"succeededOrSkipped"`
	Succeeded          int          `json:"succeeded"`
	Skipped            int          `json:"skipped"`
	Failed             []FailedItem `json:"failed"`
	BytesWritten       int64        `json:"bytesWritten"`
	StartedAt          time.Time    `json:"startedAt"`
	FinishedAt         time.Time    `json:"finishedAt"`
}

// Add folds one outcome into the result.
func (r *BatchResult) Add(o Outcome) {
	switch o.Kind {
	case OutcomeSkipped:
		r.Skipped++
		r.SucceededOrSkipped++
	case OutcomeSucceeded:
		r.Succeeded++
		r.SucceededOrSkipped++
		r.BytesWritten += o.Bytes
	default:
		r.Failed = append(r.Failed, FailedItem{
			Index:     o.Job.Index,
			SourceURL: o.Job.SourceURL,
			Kind:      o.ErrKind,
			Reason:    o.Reason,
		})
	}
}

// Done reports how many outcomes have been folded in so far.
func (r *BatchResult) Done() int {
	return r.SucceededOrSkipped + len(r.Failed)
}

// BatchSummary is the persisted record of a finished batch.
type BatchSummary struct {
	ID         string `json:"id"`
	Collection string `json:"collection"`
	PageURL    string `json:"pageUrl"`
	Total      int    `json:"total"`
	Succeeded  int    `json:"succeeded"`
	Skipped    int    `json:"skipped"`
	Failed     int    `json:"failed"`
	StartedAt  string `json:"startedAt"`
	FinishedAt string `json:"finishedAt"`
	Duration   string `json:"duration"`
}

func NewBatchSummary(r *BatchResult) BatchSummary {
	return BatchSummary{
		ID:         r.ID,
		Collection: r.Collection,
		PageURL:    r.PageURL,
		Total:      r.Total,
		Succeeded:  r.Succeeded,
		Skipped:    r.Skipped,
		Failed:     len(r.Failed),
		StartedAt:  r.StartedAt.Format(time.RFC3339),
		FinishedAt: r.FinishedAt.Format(time.RFC3339),
		Duration:   r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String(),
	}
}

// History is the on-disk layout of the batch history file.
type History struct {
	Batches []BatchSummary `json:"batches"`
}
