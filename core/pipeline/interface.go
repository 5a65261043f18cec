package pipeline

import (
	"fmt"

	"github.com/siherrmann/schematic/core/tags"
	"github.com/siherrmann/schematic/helper"
	"github.com/siherrmann/schematic/model"
)

// ChunkFunc splits the text of a supplementary document into ordered chunks
type ChunkFunc func(text string) ([]TextChunk, error)

// EmbedFunc is a function that generates embeddings for text
type EmbedFunc func(text string) ([]float32, error)

// TagExtractFunc finds equipment tags in text
type TagExtractFunc func(text string) []*model.ExtractedTag

// RelationExtractFunc finds relationships between the given tags in text
type RelationExtractFunc func(text string, tags []string) []*model.ExtractedRelationship

// TextChunk is one chunk of a document with its byte offsets
type TextChunk struct {
	Content  string
	Index    int
	StartPos int
	EndPos   int
}

// Pipeline turns page and document text into searchable evidence
type Pipeline struct {
	Chunker           ChunkFunc
	Embedder          EmbedFunc // Optional
	TagExtractor      TagExtractFunc
	RelationExtractor RelationExtractFunc
}

// NewPipeline creates a new processing pipeline using the rule based tag and relationship extraction.
// A nil chunker falls back to DefaultChunker and a nil embedder leaves evidence without embeddings.
func NewPipeline(chunker ChunkFunc, embedder EmbedFunc) *Pipeline {
	if chunker == nil {
		chunker = DefaultChunker()
	}
	return &Pipeline{
		Chunker:           chunker,
		Embedder:          embedder,
		TagExtractor:      tags.Extract,
		RelationExtractor: tags.ExtractRelationships,
	}
}

// SetTagExtractor sets the tag extraction function
func (p *Pipeline) SetTagExtractor(extractor TagExtractFunc) {
	p.TagExtractor = extractor
}

// SetRelationExtractor sets the relation extraction function
func (p *Pipeline) SetRelationExtractor(extractor RelationExtractFunc) {
	p.RelationExtractor = extractor
}

// PageResult is everything extracted from the text of one drawing page
type PageResult struct {
	Embedding     []float32
	Tags          []*model.ExtractedTag
	Relationships []*model.ExtractedRelationship
	WireNumbers   []string
}

// ProcessPage extracts the tags, relationships and wire numbers of a page and embeds its text.
// If embedding fails the result is still returned, without embedding, together with an
// error wrapping helper.ErrDependencyDegraded.
func (p *Pipeline) ProcessPage(text string) (*PageResult, error) {
	result := &PageResult{
		Tags:          []*model.ExtractedTag{},
		Relationships: []*model.ExtractedRelationship{},
		WireNumbers:   tags.ExtractWireNumbers(text),
	}

	if p.TagExtractor != nil {
		result.Tags = p.TagExtractor(text)
	}

	if p.RelationExtractor != nil && len(result.Tags) > 1 {
		tagStrings := make([]string, len(result.Tags))
		for i, tag := range result.Tags {
			tagStrings[i] = tag.Tag
		}
		result.Relationships = p.RelationExtractor(text, tagStrings)
	}

	embedding, err := p.embed(text)
	if err != nil {
		return result, err
	}
	result.Embedding = embedding

	return result, nil
}

// ProcessDocument chunks the text of a supplementary document and embeds every chunk.
// Chunks are labeled with sourceLocation, numbered by part if there are several.
// Embedding stops at the first failure; the chunks are returned with an error wrapping
// helper.ErrDependencyDegraded and the failed ones keep no embedding.
func (p *Pipeline) ProcessDocument(text string, category model.ChunkCategory, sourceLocation string) ([]*model.Chunk, error) {
	textChunks, err := p.Chunker(text)
	if err != nil {
		return nil, helper.NewError("chunk", err)
	}

	chunks := make([]*model.Chunk, 0, len(textChunks))
	for _, tc := range textChunks {
		location := sourceLocation
		if location != "" && len(textChunks) > 1 {
			location = fmt.Sprintf("%s, Part %d", sourceLocation, tc.Index+1)
		}

		chunks = append(chunks, &model.Chunk{
			ChunkIndex:     tc.Index,
			Content:        tc.Content,
			SourceLocation: location,
			Category:       category,
			EquipmentTags:  tags.ExtractTagStrings(tc.Content),
		})
	}

	for _, chunk := range chunks {
		embedding, err := p.embed(chunk.Content)
		if err != nil {
			return chunks, err
		}
		chunk.Embedding = embedding
	}

	return chunks, nil
}

func (p *Pipeline) embed(text string) ([]float32, error) {
	if p.Embedder == nil {
		return nil, nil
	}

	embedding, err := p.Embedder(text)
	if err != nil {
		return nil, helper.NewError("embed", fmt.Errorf("%w: %v", helper.ErrDependencyDegraded, err))
	}
	return embedding, nil
}
