package pipeline

import (
	"fmt"
	"math"
	"strings"
)

const (
	// TargetChunkChars is the approximate size of a chunk, about 500 tokens
	TargetChunkChars = 2000
	// ChunkOverlapChars is how much trailing text a chunk repeats from its predecessor
	ChunkOverlapChars = 200
)

// DefaultChunker splits by sentences into chunks of about TargetChunkChars with ChunkOverlapChars overlap
func DefaultChunker() ChunkFunc {
	return SentenceChunker(TargetChunkChars, ChunkOverlapChars)
}

// splitSentences splits text after sentence punctuation and drops blank sentences
func splitSentences(text string) []string {
	text = strings.ReplaceAll(text, "! ", "!|")
	text = strings.ReplaceAll(text, "? ", "?|")
	text = strings.ReplaceAll(text, ". ", ".|")
	text = strings.ReplaceAll(text, "\n", "|")

	var sentences []string
	for _, s := range strings.Split(text, "|") {
		s = strings.TrimSpace(s)
		if s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

// SentenceChunker creates a chunker that packs whole sentences into chunks of at most maxChars.
// A new chunk starts with the trailing sentences of the previous one that fit into overlapChars.
// A single sentence longer than maxChars becomes a chunk of its own.
func SentenceChunker(maxChars int, overlapChars int) ChunkFunc {
	return func(text string) ([]TextChunk, error) {
		if maxChars <= 0 {
			return nil, fmt.Errorf("max chunk size must be positive")
		}
		if overlapChars < 0 || overlapChars >= maxChars {
			return nil, fmt.Errorf("overlap must be in [0, %d)", maxChars)
		}

		chunks := []TextChunk{}
		var current []string
		currentLength := 0
		pos := 0

		flush := func() {
			content := strings.Join(current, " ")
			chunks = append(chunks, TextChunk{
				Content:  content,
				Index:    len(chunks),
				StartPos: pos,
				EndPos:   pos + len(content),
			})
			pos += len(content)
		}

		for _, sentence := range splitSentences(text) {
			if currentLength+len(sentence) > maxChars && len(current) > 0 {
				flush()

				// Keep the trailing sentences that fit into the overlap
				var overlap []string
				overlapLength := 0
				for i := len(current) - 1; i >= 0; i-- {
					if overlapLength+len(current[i]) >= overlapChars {
						break
					}
					overlap = append([]string{current[i]}, overlap...)
					overlapLength += len(current[i])
				}
				current = overlap
				currentLength = overlapLength
			}

			current = append(current, sentence)
			currentLength += len(sentence)
		}

		if len(current) > 0 {
			flush()
		}

		return chunks, nil
	}
}

// ParagraphChunker creates a chunker that splits by paragraphs
func ParagraphChunker() ChunkFunc {
	return func(text string) ([]TextChunk, error) {
		paragraphs := strings.Split(text, "\n\n")

		chunks := []TextChunk{}
		pos := 0

		for _, para := range paragraphs {
			start := pos + strings.Index(para, strings.TrimSpace(para))
			pos += len(para) + 2 // Account for "\n\n"

			para = strings.TrimSpace(para)
			if para == "" {
				continue
			}

			chunks = append(chunks, TextChunk{
				Content:  para,
				Index:    len(chunks),
				StartPos: start,
				EndPos:   start + len(para),
			})
		}

		return chunks, nil
	}
}

// cosineSimilarity calculates the cosine similarity between two embedding vectors
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float32
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB))))
}

// SemanticChunker creates a chunker that uses embeddings to identify natural boundaries.
// It starts a new chunk where the similarity of a sentence to the running chunk drops below
// similarityThreshold or where the chunk would exceed maxChars.
func SemanticChunker(embedder EmbedFunc, maxChars int, similarityThreshold float32) ChunkFunc {
	return func(text string) ([]TextChunk, error) {
		if embedder == nil {
			return nil, fmt.Errorf("semantic chunking needs an embedder")
		}

		sentences := splitSentences(text)
		if len(sentences) == 0 {
			return []TextChunk{}, nil
		}

		embeddings := make([][]float32, len(sentences))
		for i, sentence := range sentences {
			embedding, err := embedder(sentence)
			if err != nil {
				return nil, fmt.Errorf("failed to generate embeddings: %w", err)
			}
			embeddings[i] = embedding
		}

		chunks := []TextChunk{}
		var current []string
		var currentEmbeddings [][]float32
		currentLength := 0
		pos := 0

		flush := func() {
			content := strings.Join(current, " ")
			chunks = append(chunks, TextChunk{
				Content:  content,
				Index:    len(chunks),
				StartPos: pos,
				EndPos:   pos + len(content),
			})
			pos += len(content)
			current = nil
			currentEmbeddings = nil
			currentLength = 0
		}

		for i, sentence := range sentences {
			if len(current) > 0 {
				// Average embedding of the running chunk
				avgEmbedding := make([]float32, len(currentEmbeddings[0]))
				for _, emb := range currentEmbeddings {
					for j := range emb {
						if j < len(avgEmbedding) {
							avgEmbedding[j] += emb[j]
						}
					}
				}
				for j := range avgEmbedding {
					avgEmbedding[j] /= float32(len(currentEmbeddings))
				}

				similarity := cosineSimilarity(avgEmbedding, embeddings[i])
				if similarity < similarityThreshold || currentLength+len(sentence) > maxChars {
					flush()
				}
			}

			current = append(current, sentence)
			currentEmbeddings = append(currentEmbeddings, embeddings[i])
			currentLength += len(sentence)
		}
		flush()

		return chunks, nil
	}
}
