package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/alparslanahmed/digitnorm"
	"github.com/alparslanahmed/digitnorm/internal/config"
	"github.com/alparslanahmed/digitnorm/internal/logger"
	"github.com/alparslanahmed/digitnorm/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedClassifier struct {
	label int
	err   error
}

func (f fixedClassifier) Predict(context.Context, []float32) (*digitnorm.Prediction, error) {
	if f.err != nil {
		return nil, f.err
	}
	p := make([]float64, digitnorm.NumClasses)
	p[f.label] = 1
	return &digitnorm.Prediction{Label: f.label, Probabilities: p}, nil
}

type healthStub struct{ err error }

func (h healthStub) CheckHealth(context.Context) error { return h.err }

func pagePNG(t *testing.T, ink image.Rectangle) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 100, 100))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(img, ink, image.NewUniform(color.Black), image.Point{}, draw.Src)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func multipartBody(t *testing.T, data []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if data != nil {
		part, err := w.CreateFormFile("file", "digit.png")
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return &body, w.FormDataContentType()
}

func newTestServer(c digitnorm.Classifier, opts ...Option) *Server {
	gin.SetMode(gin.TestMode)
	cfg := config.Default().Server
	log := logger.NewLogger(logger.TestConfig())
	rec := service.NewRecognizer(c, service.DefaultOptions(), log)
	return New(cfg, rec, log, opts...)
}

func post(t *testing.T, s *Server, path string, data []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, data, fields)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestPredict(t *testing.T) {
	square := image.Rect(10, 10, 50, 50)

	t.Run("Should return the label and trace", func(t *testing.T) {
		s := newTestServer(fixedClassifier{label: 5})
		w := post(t, s, "/v1/predict", pagePNG(t, square), nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp predictResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 5, resp.Label)
		assert.InDelta(t, 1.0, resp.Confidence, 1e-9)
		assert.Len(t, resp.Probabilities, digitnorm.NumClasses)
		assert.Equal(t, square, resp.Trace.Box)
		assert.True(t, resp.Trace.Inverted)
		assert.NotEmpty(t, resp.RequestID)
		assert.Equal(t, resp.RequestID, w.Header().Get(requestIDHeader))
	})

	t.Run("Should keep a caller supplied request id", func(t *testing.T) {
		s := newTestServer(fixedClassifier{label: 5})
		body, contentType := multipartBody(t, pagePNG(t, square), nil)
		req := httptest.NewRequest(http.MethodPost, "/v1/predict", body)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set(requestIDHeader, "abc-123")
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)

		assert.Equal(t, "abc-123", w.Header().Get(requestIDHeader))
	})

	tests := []struct {
		name       string
		classifier digitnorm.Classifier
		data       []byte
		fields     map[string]string
		wantStatus int
		wantError  string
	}{
		{
			name:       "missing file",
			classifier: fixedClassifier{},
			wantStatus: http.StatusBadRequest,
			wantError:  "missing multipart field",
		},
		{
			name:       "undecodable upload",
			classifier: fixedClassifier{},
			data:       []byte("definitely not a png"),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "bad invert mode",
			classifier: fixedClassifier{},
			data:       pagePNG(t, square),
			fields:     map[string]string{"invert": "upside-down"},
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid invert mode",
		},
		{
			name:       "blank upload",
			classifier: fixedClassifier{},
			data:       pagePNG(t, image.Rectangle{}),
			wantStatus: http.StatusUnprocessableEntity,
			wantError:  "no digit found",
		},
		{
			name:       "empty canvas",
			classifier: fixedClassifier{},
			data:       pagePNG(t, image.Rect(40, 40, 44, 44)),
			fields:     map[string]string{"source": "canvas"},
			wantStatus: http.StatusUnprocessableEntity,
			wantError:  "no digit found",
		},
		{
			name:       "classifier down",
			classifier: fixedClassifier{err: errors.New("connection refused")},
			data:       pagePNG(t, square),
			wantStatus: http.StatusBadGateway,
			wantError:  "classifier failed",
		},
	}
	for _, tt := range tests {
		t.Run("Should map "+tt.name, func(t *testing.T) {
			s := newTestServer(tt.classifier)
			w := post(t, s, "/v1/predict", tt.data, tt.fields)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())

			var resp errorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
			if tt.wantError != "" {
				assert.Contains(t, resp.Error, tt.wantError)
			}
		})
	}

	t.Run("Should hide internal failures behind a generic message", func(t *testing.T) {
		t.Setenv("TMPDIR", filepath.Join(t.TempDir(), "missing"))
		gin.SetMode(gin.TestMode)
		log := logger.NewLogger(logger.TestConfig())
		opts := service.DefaultOptions()
		opts.Stage = true
		s := New(config.Default().Server, service.NewRecognizer(fixedClassifier{label: 1}, opts, log), log)

		w := post(t, s, "/v1/predict", pagePNG(t, square), nil)
		assert.Equal(t, http.StatusInternalServerError, w.Code, w.Body.String())

		var resp errorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "internal error", resp.Error)
		assert.NotContains(t, w.Body.String(), "missing")
		assert.NotContains(t, w.Body.String(), "digitnorm_")
	})

	t.Run("Should reject oversized uploads", func(t *testing.T) {
		gin.SetMode(gin.TestMode)
		cfg := config.Default().Server
		cfg.MaxUploadBytes = 512
		log := logger.NewLogger(logger.TestConfig())
		s := New(cfg, service.NewRecognizer(fixedClassifier{}, service.DefaultOptions(), log), log)

		w := post(t, s, "/v1/predict", bytes.Repeat([]byte{0x89}, 4096), nil)
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code, w.Body.String())
	})
}

func TestNormalize(t *testing.T) {
	s := newTestServer(nil)
	w := post(t, s, "/v1/normalize", pagePNG(t, image.Rect(10, 10, 50, 50)), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp normalizeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Features, digitnorm.FeatureLen)
	require.Len(t, resp.Canvas, digitnorm.CanvasSize)
	assert.Len(t, resp.Canvas[0], digitnorm.CanvasSize)
	assert.Equal(t, image.Pt(20, 20), resp.Trace.Resized)
}

func TestHealth(t *testing.T) {
	t.Run("Should report ok without a checker", func(t *testing.T) {
		s := newTestServer(fixedClassifier{})
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"ok"`)
	})

	t.Run("Should report a failing classifier backend", func(t *testing.T) {
		s := newTestServer(fixedClassifier{}, WithHealthChecker(healthStub{err: errors.New("down")}))
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), "down")
	})
}

func TestMetrics(t *testing.T) {
	s := newTestServer(fixedClassifier{label: 3})
	post(t, s, "/v1/predict", pagePNG(t, image.Rect(10, 10, 50, 50)), nil)
	post(t, s, "/v1/predict", []byte("garbage"), nil)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, `digitnorm_requests_total{endpoint="predict",outcome="ok"} 1`)
	assert.Contains(t, body, `digitnorm_requests_total{endpoint="predict",outcome="decode_error"} 1`)
	assert.Contains(t, body, `digitnorm_predictions_total{label="3"} 1`)
	assert.Contains(t, body, "digitnorm_request_duration_seconds_bucket")
}

func TestCORS(t *testing.T) {
	s := newTestServer(fixedClassifier{})
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/v1/predict", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestServe(t *testing.T) {
	s := newTestServer(fixedClassifier{})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(serverShutdownTimeout + time.Second):
		t.Fatal("server did not shut down")
	}
}
