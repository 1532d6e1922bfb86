package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEmbedder(t *testing.T) {
	tests := []struct {
		name     string
		opts     Options
		provider string
		wantErr  bool
	}{
		{"default is local", Options{}, "local", false},
		{"local with dimensions", Options{Provider: ProviderLocal, Dimensions: 64}, "local", false},
		{"openai", Options{Provider: ProviderOpenAI, APIKey: "k", Dimensions: 16}, "openai", false},
		{"openai without key", Options{Provider: ProviderOpenAI}, "", true},
		{"unknown provider", Options{Provider: "mlx"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := NewEmbedder(context.Background(), tt.opts)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer func() { _ = e.Close() }()

			_, cached := e.(*CachedEmbedder)
			assert.True(t, cached)

			inner := e.(*CachedEmbedder).Inner()
			switch tt.provider {
			case "local":
				assert.IsType(t, &StaticEmbedder{}, inner)
			case "openai":
				assert.IsType(t, &OpenAIEmbedder{}, inner)
			}
		})
	}
}

func TestNewEmbedder_CacheDisabled(t *testing.T) {
	t.Setenv("GEOSEARCH_EMBED_CACHE", "off")

	e, err := NewEmbedder(context.Background(), Options{Provider: ProviderLocal})

	require.NoError(t, err)
	assert.IsType(t, &StaticEmbedder{}, e)
}

func TestParseProvider(t *testing.T) {
	tests := []struct {
		in   string
		want ProviderType
	}{
		{"", ProviderLocal},
		{"LOCAL", ProviderLocal},
		{"static", ProviderLocal},
		{" openai ", ProviderOpenAI},
		{"ollama", ProviderType("ollama")},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseProvider(tt.in))
		})
	}

	assert.True(t, IsValidProvider("OpenAI"))
	assert.False(t, IsValidProvider("ollama"))
	assert.Equal(t, []string{"local", "openai"}, ValidProviders())
}

func TestGetInfo(t *testing.T) {
	e, err := NewEmbedder(context.Background(), Options{Provider: ProviderLocal, Dimensions: 32})
	require.NoError(t, err)

	info := GetInfo(context.Background(), e)

	assert.Equal(t, Info{Provider: "local", Model: "static-32", Dimensions: 32, Available: true, Cached: true}, info)
}
