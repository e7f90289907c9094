package fal

import (
	"encoding/json"
	"errors"
	"strings"

	"closet/internal/providers/queue"
)

type submitResponse struct {
	RequestID   string `json:"request_id"`
	StatusURL   string `json:"status_url"`
	ResponseURL string `json:"response_url"`
}

type statusResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

type resultResponse struct {
	Image struct {
		URL         string `json:"url"`
		ContentType string `json:"content_type"`
	} `json:"image"`
}

// dialect speaks the fal.ai queue protocol.
type dialect struct{}

func (dialect) DecodeSubmit(body []byte) (*queue.Job, error) {
	var resp submitResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	if strings.TrimSpace(resp.StatusURL) == "" || strings.TrimSpace(resp.ResponseURL) == "" {
		return nil, errors.New("submit response missing status_url or response_url")
	}
	taskID := strings.TrimSpace(resp.RequestID)
	if taskID == "" {
		// Older queue deployments omit request_id; the status URL is unique.
		taskID = resp.StatusURL
	}
	return &queue.Job{
		TaskID:    taskID,
		StatusURL: resp.StatusURL,
		ResultURL: resp.ResponseURL,
	}, nil
}

func (dialect) StatusURL(job *queue.Job) string {
	return job.StatusURL
}

func (dialect) DecodeStatus(body []byte, job *queue.Job) error {
	var resp statusResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return err
	}
	job.Status = statusFromString(resp.Status)
	job.Message = strings.TrimSpace(resp.Error)
	if job.Message == "" && job.Status.Terminal() && job.Status != queue.StatusSucceeded {
		job.Message = "background removal request " + strings.ToUpper(strings.TrimSpace(resp.Status))
	}
	return nil
}

func (dialect) DecodeResult(body []byte) (string, error) {
	var resp resultResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Image.URL), nil
}

func statusFromString(s string) queue.Status {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "IN_QUEUE":
		return queue.StatusSubmitted
	case "IN_PROGRESS":
		return queue.StatusProcessing
	case "COMPLETED":
		return queue.StatusSucceeded
	case "FAILED", "ERROR":
		return queue.StatusFailed
	case "CANCELLED", "CANCELED":
		return queue.StatusCancelled
	default:
		return queue.StatusUnknown
	}
}
