package kling

import (
	"encoding/json"
	"fmt"
	"strings"

	"closet/internal/domain"
	"closet/internal/providers/queue"
)

type envelope struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Data      struct {
		TaskID        string `json:"task_id"`
		TaskStatus    string `json:"task_status"`
		TaskStatusMsg string `json:"task_status_msg"`
		TaskResult    *struct {
			Images []struct {
				Index int    `json:"index"`
				URL   string `json:"url"`
			} `json:"images"`
		} `json:"task_result"`
	} `json:"data"`
}

// dialect speaks the Kling task API. Status responses embed the result, so
// there is no separate result fetch.
type dialect struct {
	endpoint string
}

func decodeEnvelope(body []byte, action string) (*envelope, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}
	if env.Code != 0 {
		msg := strings.TrimSpace(env.Message)
		if msg == "" {
			msg = "failed to " + action
		}
		return nil, domain.NewProviderError(ProviderName, domain.ErrProviderFailure, fmt.Sprintf("%s (code %d)", msg, env.Code))
	}
	return &env, nil
}

func (d dialect) DecodeSubmit(body []byte) (*queue.Job, error) {
	env, err := decodeEnvelope(body, "create task")
	if err != nil {
		return nil, err
	}
	job := &queue.Job{TaskID: strings.TrimSpace(env.Data.TaskID)}
	job.StatusURL = d.StatusURL(job)
	job.Status = statusFromString(env.Data.TaskStatus)
	if job.Status == queue.StatusUnknown {
		job.Status = queue.StatusSubmitted
	}
	return job, nil
}

func (d dialect) StatusURL(job *queue.Job) string {
	return d.endpoint + "/" + job.TaskID
}

func (d dialect) DecodeStatus(body []byte, job *queue.Job) error {
	env, err := decodeEnvelope(body, "query task")
	if err != nil {
		return err
	}
	job.Status = statusFromString(env.Data.TaskStatus)
	job.Message = strings.TrimSpace(env.Data.TaskStatusMsg)
	if job.Status == queue.StatusFailed && job.Message == "" {
		job.Message = "virtual try-on failed"
	}
	if job.Status == queue.StatusSucceeded {
		if env.Data.TaskResult == nil || len(env.Data.TaskResult.Images) == 0 || strings.TrimSpace(env.Data.TaskResult.Images[0].URL) == "" {
			return domain.NewProviderError(ProviderName, domain.ErrProviderFailure, "no result image found")
		}
		job.AssetURL = strings.TrimSpace(env.Data.TaskResult.Images[0].URL)
	}
	return nil
}

// DecodeResult is unused because DecodeStatus always sets AssetURL on success.
func (d dialect) DecodeResult(body []byte) (string, error) {
	return "", domain.NewProviderError(ProviderName, domain.ErrProviderFailure, "unexpected result fetch")
}

func statusFromString(s string) queue.Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "submitted":
		return queue.StatusSubmitted
	case "processing":
		return queue.StatusProcessing
	case "succeed":
		return queue.StatusSucceeded
	case "failed":
		return queue.StatusFailed
	default:
		return queue.StatusUnknown
	}
}
