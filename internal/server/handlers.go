package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/alparslanahmed/digitnorm"
	"github.com/alparslanahmed/digitnorm/internal/logger"
	"github.com/alparslanahmed/digitnorm/internal/service"
	"github.com/gin-gonic/gin"
)

const (
	endpointPredict   = "predict"
	endpointNormalize = "normalize"

	msgNoDigit = "no digit found, please draw the digit larger or more clearly"
)

type predictResponse struct {
	RequestID     string          `json:"request_id"`
	Label         int             `json:"label"`
	Confidence    float64         `json:"confidence"`
	Probabilities []float64       `json:"probabilities"`
	Trace         digitnorm.Trace `json:"trace"`
}

type normalizeResponse struct {
	RequestID string          `json:"request_id"`
	Features  []float32       `json:"features"`
	Canvas    [][]float32     `json:"canvas"`
	Trace     digitnorm.Trace `json:"trace"`
}

type errorResponse struct {
	RequestID string `json:"request_id"`
	Error     string `json:"error"`
}

func (s *Server) handleHealth(c *gin.Context) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.health.CheckHealth(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "classifier": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handlePredict(c *gin.Context) {
	start := time.Now()
	req, err := readRequest(c)
	if err != nil {
		s.fail(c, endpointPredict, start, err)
		return
	}

	rec, err := s.recognizer.Recognize(c.Request.Context(), req)
	if err != nil {
		s.fail(c, endpointPredict, start, err)
		return
	}

	s.metrics.observe(endpointPredict, "ok", time.Since(start))
	s.metrics.predicted(rec.Prediction.Label)
	c.JSON(http.StatusOK, predictResponse{
		RequestID:     c.GetString(requestIDKey),
		Label:         rec.Prediction.Label,
		Confidence:    rec.Prediction.Confidence(),
		Probabilities: rec.Prediction.Probabilities,
		Trace:         rec.Result.Trace,
	})
}

func (s *Server) handleNormalize(c *gin.Context) {
	start := time.Now()
	req, err := readRequest(c)
	if err != nil {
		s.fail(c, endpointNormalize, start, err)
		return
	}

	res, err := s.recognizer.Normalize(c.Request.Context(), req)
	if err != nil {
		s.fail(c, endpointNormalize, start, err)
		return
	}

	s.metrics.observe(endpointNormalize, "ok", time.Since(start))
	c.JSON(http.StatusOK, normalizeResponse{
		RequestID: c.GetString(requestIDKey),
		Features:  res.Features,
		Canvas:    res.Canvas.Rows2D(),
		Trace:     res.Trace,
	})
}

// readRequest pulls the uploaded image and its options out of a multipart form.
func readRequest(c *gin.Context) (service.Request, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return service.Request{}, fmt.Errorf("%w: %w", service.ErrInvalidRequest, err)
	}
	f, err := fh.Open()
	if err != nil {
		return service.Request{}, fmt.Errorf("%w: unreadable upload", service.ErrInvalidRequest)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return service.Request{}, fmt.Errorf("%w: unreadable upload", service.ErrInvalidRequest)
	}
	return service.Request{
		Data:     data,
		Filename: fh.Filename,
		Canvas:   strings.EqualFold(c.PostForm("source"), "canvas"),
		Invert:   c.PostForm("invert"),
	}, nil
}

func (s *Server) fail(c *gin.Context, endpoint string, start time.Time, err error) {
	status, outcome, msg := classify(err)
	s.metrics.observe(endpoint, outcome, time.Since(start))

	log := logger.FromContext(c.Request.Context())
	if status >= http.StatusInternalServerError {
		log.Error("Request failed", "endpoint", endpoint, "error", err)
	} else {
		log.Debug("Request rejected", "endpoint", endpoint, "status", status, "error", err)
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, errorResponse{RequestID: c.GetString(requestIDKey), Error: msg})
}

// classify maps an error to a status code, a metrics outcome and a client message.
func classify(err error) (int, string, string) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large"):
		return http.StatusRequestEntityTooLarge, "too_large", "upload too large"
	case errors.Is(err, http.ErrMissingFile):
		return http.StatusBadRequest, "bad_request", "missing multipart field \"file\""
	case errors.Is(err, service.ErrInvalidRequest):
		return http.StatusBadRequest, "bad_request", err.Error()
	case digitnorm.IsDecodeError(err):
		return http.StatusBadRequest, "decode_error", err.Error()
	case errors.Is(err, service.ErrEmptyCanvas), errors.Is(err, digitnorm.ErrNoDigitFound):
		return http.StatusUnprocessableEntity, "no_digit", msgNoDigit
	case errors.Is(err, service.ErrClassification):
		return http.StatusBadGateway, "classifier_error", "classifier failed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "cancelled", "request cancelled"
	default:
		return http.StatusInternalServerError, "internal_error", "internal error"
	}
}
