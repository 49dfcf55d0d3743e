package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/recipe-app/apiserver/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewParsesLevelAndFormat(t *testing.T) {
	logger := newLogger(config.LogConfig{Level: "debug", Format: "text"}, &bytes.Buffer{})
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)

	logger = newLogger(config.LogConfig{Level: "nonsense"}, &bytes.Buffer{})
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)
}

func TestFromContextFallsBackToStandardLogger(t *testing.T) {
	assert.Equal(t, logrus.StandardLogger(), FromContext(context.Background()))
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(config.LogConfig{Level: "info", Format: "json"}, &buf)

	var scoped logrus.FieldLogger
	handler := middleware.RequestID(RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scoped = FromContext(r.Context())
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("missing"))
	})))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/recipe/recipes/9", nil))

	require.NotNil(t, scoped)
	assert.NotEqual(t, logrus.StandardLogger(), scoped)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "request rejected", line["msg"])
	assert.Equal(t, "warning", line["level"])
	assert.Equal(t, "/api/recipe/recipes/9", line["path"])
	assert.EqualValues(t, 404, line["status"])
	assert.EqualValues(t, 7, line["bytes"])
	assert.NotEmpty(t, line["request_id"])
}
