// Copyright 2026 The recipehub Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alwitt/goutils"
	"github.com/alwitt/recipehub/common"
	"github.com/apex/log"
	"golang.org/x/time/rate"
)

const (
	// HeaderOwnerEmail identifies the owner when starting a job or reading its result
	HeaderOwnerEmail = "email"
	// HeaderUserKey identifies the owner when polling job status
	HeaderUserKey = "X-USER-KEY"

	maxErrorBody = 4096
)

// StatusError the worker answered with a non-2xx status
type StatusError struct {
	// Code is the HTTP status code returned by the worker
	Code int
	// Body is the (truncated) response body
	Body string
}

// Error implement error
func (e *StatusError) Error() string {
	return fmt.Sprintf("worker returned status %d: %s", e.Code, e.Body)
}

// jobCreatedResponse is the worker's reply to a new job
type jobCreatedResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// jobStatusResponse is the worker's reply to a status poll
type jobStatusResponse struct {
	JobID    string `json:"job_id"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Message  string `json:"message"`
	VideoID  string `json:"video_id"`
}

// Client calls the external extraction worker
type Client interface {
	// Start submit a new extraction job
	Start(ctxt context.Context, owner string, req common.ExtractionRequest) (common.JobCreated, error)
	// Status poll the state of a job
	Status(ctxt context.Context, owner string, jobID string) (common.JobStatus, error)
	// Result fetch the final result of a job
	Result(ctxt context.Context, owner string, jobID string) (common.ResultPayload, error)
}

// httpClient implements Client over HTTP
type httpClient struct {
	goutils.Component
	baseURL *url.URL
	client  *http.Client
	limiter *rate.Limiter
}

// GetClient define a new worker client
func GetClient(cfg common.WorkerConfig) (Client, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("worker base URL needs a scheme and host: '%s'", cfg.BaseURL)
	}
	parsed.Path = strings.TrimRight(parsed.Path, "/")
	if cfg.RequestsPerSec < 1 {
		return nil, fmt.Errorf("worker request rate must be positive: %d", cfg.RequestsPerSec)
	}
	logTags := log.Fields{"module": "worker", "component": "client", "instance": parsed.Host}
	return &httpClient{
		Component: goutils.Component{LogTags: logTags},
		baseURL:   parsed,
		client:    &http.Client{Timeout: time.Duration(cfg.RequestTimeout) * time.Second},
		limiter:   rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), cfg.RequestsPerSec),
	}, nil
}

// endpoint build the URL of a worker API path
func (c *httpClient) endpoint(elem ...string) string {
	target := *c.baseURL
	escaped := make([]string, len(elem))
	for idx, part := range elem {
		escaped[idx] = url.PathEscape(part)
	}
	target.Path = c.baseURL.Path + "/api/" + strings.Join(escaped, "/")
	target.RawPath = ""
	return target.String()
}

// call make one request to the worker, decoding a 2xx JSON response into result
func (c *httpClient) call(
	ctxt context.Context,
	method, target string,
	headers map[string]string,
	body interface{},
	result interface{},
) error {
	logTags := c.GetLogTagsForContext(ctxt)
	if err := c.limiter.Wait(ctxt); err != nil {
		return err
	}

	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctxt, method, target, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		log.WithError(err).WithFields(logTags).Errorf("%s %s failed", method, target)
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		err := &StatusError{Code: resp.StatusCode, Body: string(raw)}
		log.WithError(err).WithFields(logTags).Errorf("%s %s rejected", method, target)
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("worker returned empty body for %s %s", method, target)
		}
		return fmt.Errorf("decoding worker response failed: %w", err)
	}
	return nil
}

// Start submit a new extraction job
func (c *httpClient) Start(
	ctxt context.Context, owner string, req common.ExtractionRequest,
) (common.JobCreated, error) {
	var created jobCreatedResponse
	err := c.call(
		ctxt, http.MethodPost, c.endpoint("analyze"),
		map[string]string{HeaderOwnerEmail: owner}, req, &created,
	)
	if err != nil {
		return common.JobCreated{}, err
	}
	if created.JobID == "" {
		return common.JobCreated{}, fmt.Errorf("worker accepted job without an ID")
	}
	log.WithFields(c.GetLogTagsForContext(ctxt)).Infof("Started job '%s' for '%s'", created.JobID, owner)
	return common.JobCreated{
		JobID: created.JobID, Status: created.Status, Message: created.Message,
	}, nil
}

// Status poll the state of a job
func (c *httpClient) Status(
	ctxt context.Context, owner string, jobID string,
) (common.JobStatus, error) {
	var status jobStatusResponse
	err := c.call(
		ctxt, http.MethodGet, c.endpoint("status", jobID),
		map[string]string{HeaderUserKey: owner}, nil, &status,
	)
	if err != nil {
		return common.JobStatus{}, err
	}
	return common.JobStatus{
		JobID:    jobID,
		Status:   status.Status,
		Progress: status.Progress,
		Message:  status.Message,
		VideoID:  status.VideoID,
	}, nil
}

// Result fetch the final result of a job
func (c *httpClient) Result(
	ctxt context.Context, owner string, jobID string,
) (common.ResultPayload, error) {
	var result common.ResultPayload
	err := c.call(
		ctxt, http.MethodGet, c.endpoint("result", jobID),
		map[string]string{HeaderOwnerEmail: owner}, nil, &result,
	)
	return result, err
}
