package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BluePanda-io/ai-agent-apis/pkg/llm"
	"github.com/BluePanda-io/ai-agent-apis/pkg/utils/httpclient"
)

const testAPIKey = "test-key"

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.APIKey = testAPIKey
	cfg.MaxRetries = 0
	cfg.Timeout = 5 * time.Second
	return NewProviderWithConfig(cfg)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "https://api.openai.com/v1", cfg.BaseURL)
	assert.Equal(t, "text-embedding-3-small", cfg.EmbedModel)
	assert.Equal(t, "gpt-4o-mini", cfg.ChatModel)
	assert.Equal(t, 120*time.Second, cfg.Timeout)
	assert.Equal(t, 3, cfg.MaxRetries)
}

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name    string
		config  map[string]any
		wantErr bool
	}{
		{name: "valid", config: map[string]any{"api_key": testAPIKey}},
		{name: "custom", config: map[string]any{
			"api_key":      testAPIKey,
			"embed_model":  "text-embedding-3-large",
			"chat_model":   "gpt-4o",
			"organization": "org-123",
			"dimensions":   256,
		}},
		{name: "missing api_key", config: map[string]any{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(tt.config)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, ProviderName, p.Name())
		})
	}
}

func TestRegistered(t *testing.T) {
	assert.Contains(t, llm.ListProviders(), ProviderName)
}

func TestEmbedOrdersByIndex(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer "+testAPIKey, r.Header.Get("Authorization"))

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"a", "b"}, req.Input)

		_, _ = w.Write([]byte(`{"data":[
			{"embedding":[0.2,0.2],"index":1},
			{"embedding":[0.1,0.1],"index":0}
		],"model":"text-embedding-3-small"}`))
	})

	out, err := p.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, []float32{0.1, 0.1}, out[0])
	assert.Equal(t, []float32{0.2, 0.2}, out[1])
}

func TestEmbedMissingEntry(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.1],"index":0}]}`))
	})

	_, err := p.Embed(context.Background(), []string{"a", "b"})
	require.Error(t, err)
}

func TestEmbedEmptyInput(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		t.Fatal("no request expected")
	})

	out, err := p.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestGenerateAppliesOptions(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req["model"])
		assert.InDelta(t, 0.3, req["temperature"], 1e-9)
		assert.EqualValues(t, 100, req["max_tokens"])

		msgs := req["messages"].([]any)
		require.Len(t, msgs, 2)
		assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
		assert.Equal(t, "user", msgs[1].(map[string]any)["role"])

		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Status changed."}}]}`))
	})

	out, err := p.Generate(context.Background(), "prompt", "system",
		llm.WithTemperature(0.3), llm.WithMaxTokens(100))
	require.NoError(t, err)
	assert.Equal(t, "Status changed.", out)
}

func TestGenerateOmitsUnsetTemperature(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_, has := req["temperature"]
		assert.False(t, has)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
	})

	_, err := p.Generate(context.Background(), "prompt", "")
	require.NoError(t, err)
}

func TestChatNoChoices(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	})

	_, err := p.Chat(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}})
	require.Error(t, err)
}

func TestStatusErrorSurfaces(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"rate limited"}`))
	})

	_, err := p.EmbedSingle(context.Background(), "x")
	require.Error(t, err)

	var se *httpclient.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusTooManyRequests, se.StatusCode)
	assert.True(t, se.Temporary())
}

func TestListModels(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/models", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":[{"id":"gpt-4o"},{"id":"gpt-4o-mini"}]}`))
	})

	models, err := p.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"gpt-4o", "gpt-4o-mini"}, models)
}
