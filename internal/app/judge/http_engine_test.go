package judge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
	"codebattle/internal/common"
	"codebattle/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPEngineClientExecute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ExecRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, model.LangGo, req.Language)
		assert.Equal(t, "in", req.Input)

		json.NewEncoder(w).Encode(ExecResult{Outcome: OutcomePass, TimeMs: 12, MemoryKb: 2048})
	}))
	t.Cleanup(srv.Close)

	client := NewHTTPEngineClient(srv.URL, 5*time.Second)
	result, err := client.Execute(context.Background(), ExecRequest{
		Language: model.LangGo, Code: "code", Input: "in", ExpectedOutput: "out",
		TimeLimitMs: 2000, MemoryLimitKb: 65536,
	})

	require.NoError(t, err)
	assert.Equal(t, OutcomePass, result.Outcome)
	assert.Equal(t, 12, result.TimeMs)
}

func TestHTTPEngineClientNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	client := NewHTTPEngineClient(srv.URL, 5*time.Second)
	_, err := client.Execute(context.Background(), ExecRequest{})

	assert.ErrorIs(t, err, common.ErrEngineUnavailable)
}

func TestHTTPEngineClientTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := NewHTTPEngineClient(srv.URL, time.Second)
	_, err := client.Execute(context.Background(), ExecRequest{})

	assert.ErrorIs(t, err, common.ErrEngineUnavailable)
}
