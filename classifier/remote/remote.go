// Package remote implements digitnorm.Classifier against an HTTP inference
// service that accepts a flattened feature vector and answers with a label
// and a probability distribution.
package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/alparslanahmed/digitnorm"
	"github.com/go-resty/resty/v2"
)

const (
	predictPath = "/predict"
	healthPath  = "/health"
)

// Options configures a Client.
type Options struct {
	BaseURL string
	Timeout time.Duration
	Retries int
}

// Client talks to the inference service.
type Client struct {
	http    *resty.Client
	baseURL string
}

type predictRequest struct {
	Features []float32 `json:"features"`
}

type predictResponse struct {
	Label         *int      `json:"label"`
	Probabilities []float64 `json:"probabilities"`
}

type errorResponse struct {
	Error string `json:"error"`
}

var _ digitnorm.Classifier = (*Client)(nil)

// New creates a client for the service rooted at opts.BaseURL.
func New(opts Options) (*Client, error) {
	u, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base URL scheme must be http or https, got: %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("base URL must have a host, got: %s", opts.BaseURL)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	client := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetRetryCount(max(opts.Retries, 0)).
		SetRetryWaitTime(100 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second)
	client.AddRetryCondition(retryCondition)

	return &Client{http: client, baseURL: opts.BaseURL}, nil
}

// retryCondition retries network errors and 5xx answers.
func retryCondition(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if r == nil {
		return false
	}
	return r.StatusCode() >= http.StatusInternalServerError
}

// Predict sends the feature vector and validates the answer.
func (c *Client) Predict(ctx context.Context, features []float32) (*digitnorm.Prediction, error) {
	if err := digitnorm.CheckFeatures(features); err != nil {
		return nil, err
	}

	var out predictResponse
	var apiErr errorResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(predictRequest{Features: features}).
		SetResult(&out).
		SetError(&apiErr).
		Post(predictPath)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %w", digitnorm.ErrClassifierUnavailable, err)
	}
	if resp.IsError() {
		msg := apiErr.Error
		if msg == "" {
			msg = resp.Status()
		}
		if resp.StatusCode() >= http.StatusInternalServerError {
			return nil, fmt.Errorf("%w: %s", digitnorm.ErrClassifierUnavailable, msg)
		}
		return nil, fmt.Errorf("inference service rejected request: %s", msg)
	}
	if out.Label == nil {
		return nil, errors.New("inference service response has no label")
	}

	p := &digitnorm.Prediction{Label: *out.Label, Probabilities: out.Probabilities}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid inference response: %w", err)
	}
	return p, nil
}

// CheckHealth reports whether the service answers its health endpoint.
func (c *Client) CheckHealth(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Get(healthPath)
	if err != nil {
		return fmt.Errorf("%w: %w", digitnorm.ErrClassifierUnavailable, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%w: health check returned %s", digitnorm.ErrClassifierUnavailable, resp.Status())
	}
	return nil
}

// BaseURL returns the service root the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL
}
