package decision

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/analyze", r.URL.Path)

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "sess_1", req["session_id"])

		json.NewEncoder(w).Encode(Response{
			ShouldShowMessage: true,
			Message:           "Still browsing? Get 10% off!",
			TriggerType:       "discount",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	resp, err := c.Analyze(context.Background(), "sess_1")
	require.NoError(t, err)
	assert.True(t, resp.ShouldShowMessage)
	assert.Equal(t, "Still browsing? Get 10% off!", resp.Message)
	assert.Equal(t, "discount", resp.TriggerType)
}

func TestAnalyzeNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"session not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.Analyze(context.Background(), "missing")
	require.Error(t, err)
}

func TestAnalyzeTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewClient(srv.URL)
	_, err := c.Analyze(context.Background(), "sess_1")
	require.Error(t, err)
}
