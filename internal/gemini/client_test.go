package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(context.Background(), Config{
		Model: "gemini-test",
		Options: []option.ClientOption{
			option.WithHTTPClient(srv.Client()),
			option.WithEndpoint(srv.URL + "/"),
		},
		TokenSource: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "unused"}),
	})
	require.NoError(t, err)
	return client
}

func TestComplete(t *testing.T) {
	var body map[string]interface{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "models/gemini-test:generateContent"), r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"[{\"title\":"},{"text":"\"x\"}]"}]}}]}`))
	})

	reply, err := client.Complete(context.Background(), "extract please")
	require.NoError(t, err)
	assert.Equal(t, `[{"title":"x"}]`, reply)

	contents := body["contents"].([]interface{})
	require.Len(t, contents, 1)
	parts := contents[0].(map[string]interface{})["parts"].([]interface{})
	assert.Equal(t, "extract please", parts[0].(map[string]interface{})["text"])
}

func TestComplete_Blocked(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"promptFeedback":{"blockReason":"SAFETY"}}`))
	})

	_, err := client.Complete(context.Background(), "p")
	assert.ErrorIs(t, err, ErrNoCandidates)
	assert.ErrorContains(t, err, "SAFETY")
}

func TestComplete_HTTPError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"quota","status":"RESOURCE_EXHAUSTED"}}`))
	})

	_, err := client.Complete(context.Background(), "p")
	assert.Error(t, err)
}

func TestResourceName(t *testing.T) {
	assert.Equal(t, "models/gemini-1.5-flash", resourceName("gemini-1.5-flash"))
	assert.Equal(t, "models/gemini-pro", resourceName("models/gemini-pro"))
	assert.Equal(t, "tunedModels/mine", resourceName("tunedModels/mine"))
}
