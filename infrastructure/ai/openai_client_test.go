package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"shop_replay/domain/entities"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func request() entities.InferenceRequest {
	return entities.InferenceRequest{
		Role:   "You find elements.",
		Task:   "Find the site search input.",
		Schema: `{"input_selector": "..."}`,
		Markup: `<input name="q">`,
		URL:    "https://shop.test/",
	}
}

func TestCompleteReturnsAnswerText(t *testing.T) {
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o-mini",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"  {\"input_selector\": \"input[name='q']\"}  "}}]}`)
	}))
	defer srv.Close()

	client, err := NewOpenAIClient(Config{APIKey: "test-key", BaseURL: srv.URL}, quietLogger())
	require.NoError(t, err)

	text, err := client.Complete(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, `{"input_selector": "input[name='q']"}`, text)

	assert.Equal(t, "gpt-4o-mini", body["model"])
	messages := body["messages"].([]interface{})
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]interface{})["role"])
	assert.Contains(t, messages[1].(map[string]interface{})["content"], `<input name="q">`)
}

func TestRateLimitIsReportedAsServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"You exceeded your current quota","type":"insufficient_quota","code":"insufficient_quota"}}`)
	}))
	defer srv.Close()

	client, err := NewOpenAIClient(Config{APIKey: "test-key", BaseURL: srv.URL}, quietLogger())
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), request())
	var se *ServiceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusTooManyRequests, se.StatusCode)
	assert.True(t, se.RateLimited())
}

func TestServerErrorIsNotRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"message":"bad model","type":"invalid_request_error","code":"model_not_found"}}`)
	}))
	defer srv.Close()

	client, err := NewOpenAIClient(Config{APIKey: "test-key", BaseURL: srv.URL}, quietLogger())
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), request())
	var se *ServiceError
	require.True(t, errors.As(err, &se))
	assert.False(t, se.RateLimited())
}

func TestMissingKeyIsRejected(t *testing.T) {
	_, err := NewOpenAIClient(Config{}, quietLogger())
	assert.Error(t, err)
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt(request())
	assert.Contains(t, p, "Find the site search input.")
	assert.Contains(t, p, `{"input_selector": "..."}`)
	assert.Contains(t, p, "Page URL: https://shop.test/")
	assert.Contains(t, p, "HTML content (first 16 characters):")
}
