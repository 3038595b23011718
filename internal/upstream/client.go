package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/muhamadfadliazim-hub/cbt-utbk-online-sub000/internal/config"
	"github.com/muhamadfadliazim-hub/cbt-utbk-online-sub000/internal/model"
)

// ErrNotFound indicates the upstream reported the exam does not exist.
// The session layer treats it like any other load failure: fatal.
var ErrNotFound = errors.New("upstream: not found")

// APIError is a non-2xx upstream response carrying the envelope error body.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("upstream: %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// envelope mirrors the upstream API's response format.
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Client talks to the upstream exam API on behalf of a student. The
// student's own bearer token is forwarded on every call; this service
// holds no credentials of its own.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

// NewClient creates an upstream API client from configuration.
func NewClient(cfg *config.Config, log zerolog.Logger) *Client {
	return &Client{
		baseURL: cfg.UpstreamBaseURL,
		http:    &http.Client{Timeout: cfg.UpstreamTimeout},
		log:     log.With().Str("component", "upstream_client").Logger(),
	}
}

// FetchExam loads the exam paper (questions without correct answers).
func (c *Client) FetchExam(ctx context.Context, token, examID string) (*model.ExamPaper, error) {
	var paper model.ExamPaper
	url := fmt.Sprintf("%s/student/exams/%s/paper", c.baseURL, examID)
	if err := c.do(ctx, http.MethodGet, url, token, nil, &paper); err != nil {
		return nil, err
	}
	return &paper, nil
}

// SubmitExam sends the final answers and returns the upstream result object.
func (c *Client) SubmitExam(ctx context.Context, token, examID string, payload *model.SubmissionPayload) (*model.SubmissionResult, error) {
	var result model.SubmissionResult
	url := fmt.Sprintf("%s/student/exams/%s/submit", c.baseURL, examID)
	if err := c.do(ctx, http.MethodPost, url, token, payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// FetchPeriods returns the student's exam schedule for the lobby view.
func (c *Client) FetchPeriods(ctx context.Context, token string) ([]model.ExamPeriod, error) {
	var data struct {
		Periods []model.ExamPeriod `json:"periods"`
	}
	url := fmt.Sprintf("%s/student/periods", c.baseURL)
	if err := c.do(ctx, http.MethodGet, url, token, nil, &data); err != nil {
		return nil, err
	}
	return data.Periods, nil
}

func (c *Client) do(ctx context.Context, method, url, token string, body, out interface{}) error {
	var reqBody *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("upstream request: %w", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode == http.StatusNotFound {
			return ErrNotFound
		}
		return fmt.Errorf("decode upstream response (%d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode == http.StatusNotFound {
			return ErrNotFound
		}
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		c.log.Warn().
			Int("status", resp.StatusCode).
			Str("code", apiErr.Code).
			Str("url", url).
			Msg("Upstream call failed")
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode upstream data: %w", err)
		}
	}
	return nil
}
