package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultEmbedder(t *testing.T) {
	// DefaultEmbedder downloads the model on first use
	if testing.Short() {
		t.Skip("Skipping DefaultEmbedder test in short mode (requires model download)")
	}

	embedder, err := DefaultEmbedder()
	require.NoError(t, err)
	require.NotNil(t, embedder)

	t.Run("Generate embedding for text", func(t *testing.T) {
		embedding, err := embedder("RTU-F04 supply fan starts on occupied mode.")
		require.NoError(t, err)
		assert.Equal(t, DefaultEmbeddingDim, len(embedding), "all-MiniLM-L6-v2 produces 384-dimensional embeddings")

		hasNonZero := false
		for _, val := range embedding {
			if val != 0 {
				hasNonZero = true
				break
			}
		}
		assert.True(t, hasNonZero, "Embedding should contain non-zero values")
	})

	t.Run("Same text produces same embedding", func(t *testing.T) {
		text := "MCC-2 powers panel PANEL-5"
		embedding1, err := embedder(text)
		require.NoError(t, err)
		embedding2, err := embedder(text)
		require.NoError(t, err)

		require.Equal(t, len(embedding1), len(embedding2))
		for i := range embedding1 {
			assert.InDelta(t, embedding1[i], embedding2[i], 0.0001, "Same text should produce same embedding")
		}
	})

	t.Run("Similar texts have similar embeddings", func(t *testing.T) {
		embedding1, err := embedder("High discharge air temperature alarm")
		require.NoError(t, err)
		embedding2, err := embedder("Supply air temperature too high alarm")
		require.NoError(t, err)
		embedding3, err := embedder("Conduit routing for the lighting circuits")
		require.NoError(t, err)

		assert.Greater(t, cosineSimilarity(embedding1, embedding2), cosineSimilarity(embedding1, embedding3),
			"Semantically similar texts should have higher similarity")
	})

	t.Run("Handle very long text", func(t *testing.T) {
		longText := ""
		for i := 0; i < 100; i++ {
			longText += "The variable frequency drive ramps the exhaust fan to maintain static pressure. "
		}

		embedding, err := embedder(longText)
		require.NoError(t, err)
		assert.Equal(t, DefaultEmbeddingDim, len(embedding))
	})
}
