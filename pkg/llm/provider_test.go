package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	name string
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

func (s *stubProvider) EmbedSingle(_ context.Context, _ string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}

func (s *stubProvider) Chat(_ context.Context, _ []Message, _ ...GenerateOption) (string, error) {
	return "chat", nil
}

func (s *stubProvider) Generate(_ context.Context, _, _ string, _ ...GenerateOption) (string, error) {
	return "generated", nil
}

func TestRegisterAndNewProvider(t *testing.T) {
	RegisterProvider("stub", func(config map[string]any) (Provider, error) {
		name, _ := config["name"].(string)
		return &stubProvider{name: name}, nil
	})

	p, err := NewProvider("stub", map[string]any{"name": "custom"})
	require.NoError(t, err)
	assert.Equal(t, "custom", p.Name())

	e, err := NewEmbeddingProvider("stub", map[string]any{"name": "emb"})
	require.NoError(t, err)
	assert.Equal(t, "emb", e.Name())

	c, err := NewChatProvider("stub", nil)
	require.NoError(t, err)
	out, err := c.Generate(context.Background(), "p", "s")
	require.NoError(t, err)
	assert.Equal(t, "generated", out)

	assert.Contains(t, ListProviders(), "stub")
}

func TestNewProviderUnknown(t *testing.T) {
	_, err := NewProvider("does-not-exist", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does-not-exist")
}

func TestApplyGenerateOptions(t *testing.T) {
	o := ApplyGenerateOptions()
	assert.Nil(t, o.Temperature)
	assert.Zero(t, o.MaxTokens)

	o = ApplyGenerateOptions(WithTemperature(0.3), WithMaxTokens(100), nil)
	require.NotNil(t, o.Temperature)
	assert.InDelta(t, 0.3, *o.Temperature, 1e-9)
	assert.Equal(t, 100, o.MaxTokens)
}

func TestBuildMessages(t *testing.T) {
	msgs := BuildMessages("hello", "")
	require.Len(t, msgs, 1)
	assert.Equal(t, RoleUser, msgs[0].Role)

	msgs = BuildMessages("hello", "be brief")
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleSystem, msgs[0].Role)
	assert.Equal(t, "be brief", msgs[0].Content)
	assert.Equal(t, "hello", msgs[1].Content)
}
