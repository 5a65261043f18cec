package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DocumentKind separates scanned drawings from supplementary documents
type DocumentKind string

const (
	DocumentKindDrawing       DocumentKind = "DRAWING"
	DocumentKindSupplementary DocumentKind = "SUPPLEMENTARY"
)

// Document is the source document of pages, chunks and records
type Document struct {
	ID            uuid.UUID    `json:"id"`
	ProjectID     uuid.UUID    `json:"project_id"`
	Title         string       `json:"title"`
	Filename      string       `json:"filename"`
	DrawingNumber string       `json:"drawing_number,omitempty"`
	Kind          DocumentKind `json:"kind"`
	Metadata      Metadata     `json:"metadata,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

// EvidenceKind is the variant of an evidence unit
type EvidenceKind string

const (
	EvidenceKindDrawingPage      EvidenceKind = "DRAWING_PAGE"
	EvidenceKindTextChunk        EvidenceKind = "TEXT_CHUNK"
	EvidenceKindStructuredRecord EvidenceKind = "STRUCTURED_RECORD"
)

const (
	DrawingPageWeight      = 0.80
	StructuredRecordWeight = 0.95
)

// ChunkCategory is the declared category of a text chunk's document
type ChunkCategory string

const (
	ChunkCategorySequenceOfOperation  ChunkCategory = "SEQUENCE_OF_OPERATION"
	ChunkCategorySpecification        ChunkCategory = "SPECIFICATION"
	ChunkCategoryOperationMaintenance ChunkCategory = "OPERATION_MAINTENANCE"
	ChunkCategoryGeneral              ChunkCategory = "GENERAL"
	ChunkCategoryCommissioningGuide   ChunkCategory = "COMMISSIONING_GUIDE"
)

// Weight returns the source-confidence weight of the category.
// Unknown categories weigh like GENERAL.
func (c ChunkCategory) Weight() float64 {
	switch c {
	case ChunkCategorySequenceOfOperation:
		return 0.90
	case ChunkCategorySpecification:
		return 0.85
	case ChunkCategoryCommissioningGuide:
		return 0.75
	default:
		return 0.80
	}
}

// DataType is the kind of a structured record
type DataType string

const (
	DataTypeIOPoint       DataType = "IO_POINT"
	DataTypeSpecification DataType = "SPECIFICATION"
	DataTypeAlarm         DataType = "ALARM"
	DataTypeScheduleEntry DataType = "SCHEDULE_ENTRY"
	DataTypeSequence      DataType = "SEQUENCE"
)

// DataTypes lists every structured record data type
var DataTypes = []DataType{
	DataTypeIOPoint,
	DataTypeSpecification,
	DataTypeAlarm,
	DataTypeScheduleEntry,
	DataTypeSequence,
}

// Page is a scanned drawing page
type Page struct {
	ID         uuid.UUID            `json:"id"`
	DocumentID uuid.UUID            `json:"document_id"`
	PageNumber int                  `json:"page_number"`
	Text       string               `json:"text"`
	Embedding  []float32            `json:"embedding,omitempty"`
	Locations  []*EquipmentLocation `json:"locations,omitempty"`
	Seq        int64                `json:"seq"`
	CreatedAt  time.Time            `json:"created_at"`
}

// Chunk is a free-text excerpt of a supplementary document
type Chunk struct {
	ID             uuid.UUID     `json:"id"`
	DocumentID     uuid.UUID     `json:"document_id"`
	ChunkIndex     int           `json:"chunk_index"`
	Content        string        `json:"content"`
	Embedding      []float32     `json:"embedding,omitempty"`
	SourceLocation string        `json:"source_location,omitempty"`
	Category       ChunkCategory `json:"category"`
	EquipmentTags  []string      `json:"equipment_tags,omitempty"`
	Seq            int64         `json:"seq"`
	CreatedAt      time.Time     `json:"created_at"`
}

// Record is a row of structured tabular data about one equipment
type Record struct {
	ID             uuid.UUID `json:"id"`
	DocumentID     uuid.UUID `json:"document_id"`
	EquipmentTag   string    `json:"equipment_tag"`
	DataType       DataType  `json:"data_type"`
	Payload        Metadata  `json:"payload,omitempty"`
	SourceLocation string    `json:"source_location,omitempty"`
	Seq            int64     `json:"seq"`
	CreatedAt      time.Time `json:"created_at"`
}

// EvidenceKey identifies the place an evidence unit was taken from
type EvidenceKey struct {
	DocumentID uuid.UUID
	Location   string
}

// Evidence is one of a drawing page, a text chunk or a structured record.
// Exactly one of Page, Chunk and Record is set, matching Kind.
type Evidence struct {
	Kind     EvidenceKind `json:"kind"`
	Document *Document    `json:"document,omitempty"`
	Page     *Page        `json:"page,omitempty"`
	Chunk    *Chunk       `json:"chunk,omitempty"`
	Record   *Record      `json:"record,omitempty"`
}

// NewPageEvidence wraps a page
func NewPageEvidence(doc *Document, page *Page) *Evidence {
	return &Evidence{Kind: EvidenceKindDrawingPage, Document: doc, Page: page}
}

// NewChunkEvidence wraps a chunk
func NewChunkEvidence(doc *Document, chunk *Chunk) *Evidence {
	return &Evidence{Kind: EvidenceKindTextChunk, Document: doc, Chunk: chunk}
}

// NewRecordEvidence wraps a structured record
func NewRecordEvidence(doc *Document, record *Record) *Evidence {
	return &Evidence{Kind: EvidenceKindStructuredRecord, Document: doc, Record: record}
}

// Weight returns the fixed source-confidence weight of the evidence variant
func (e *Evidence) Weight() float64 {
	switch e.Kind {
	case EvidenceKindDrawingPage:
		return DrawingPageWeight
	case EvidenceKindTextChunk:
		if e.Chunk != nil {
			return e.Chunk.Category.Weight()
		}
		return ChunkCategoryGeneral.Weight()
	case EvidenceKindStructuredRecord:
		return StructuredRecordWeight
	}
	return 0
}

// Seq returns the insertion order of the underlying row
func (e *Evidence) Seq() int64 {
	switch {
	case e.Page != nil:
		return e.Page.Seq
	case e.Chunk != nil:
		return e.Chunk.Seq
	case e.Record != nil:
		return e.Record.Seq
	}
	return 0
}

// DocumentID returns the id of the source document
func (e *Evidence) DocumentID() uuid.UUID {
	switch {
	case e.Page != nil:
		return e.Page.DocumentID
	case e.Chunk != nil:
		return e.Chunk.DocumentID
	case e.Record != nil:
		return e.Record.DocumentID
	}
	if e.Document != nil {
		return e.Document.ID
	}
	return uuid.Nil
}

// Location returns the page-or-location key used for deduplication
func (e *Evidence) Location() string {
	switch {
	case e.Page != nil:
		return fmt.Sprintf("page:%d", e.Page.PageNumber)
	case e.Chunk != nil:
		if e.Chunk.SourceLocation != "" {
			return e.Chunk.SourceLocation
		}
		return fmt.Sprintf("chunk:%d", e.Chunk.ChunkIndex)
	case e.Record != nil:
		if e.Record.SourceLocation != "" {
			return e.Record.SourceLocation
		}
		return fmt.Sprintf("record:%s", e.Record.ID)
	}
	return ""
}

// Key returns the deduplication key of the evidence
func (e *Evidence) Key() EvidenceKey {
	return EvidenceKey{DocumentID: e.DocumentID(), Location: e.Location()}
}

// LocationLabel returns a human readable location for citations
func (e *Evidence) LocationLabel() string {
	switch {
	case e.Page != nil:
		return fmt.Sprintf("Page %d", e.Page.PageNumber)
	case e.Chunk != nil:
		if e.Chunk.SourceLocation != "" {
			return e.Chunk.SourceLocation
		}
		return fmt.Sprintf("Chunk %d", e.Chunk.ChunkIndex+1)
	case e.Record != nil:
		return e.Record.SourceLocation
	}
	return ""
}

// Text returns the searchable text of the evidence
func (e *Evidence) Text() string {
	switch {
	case e.Page != nil:
		return e.Page.Text
	case e.Chunk != nil:
		return e.Chunk.Content
	case e.Record != nil:
		b, err := e.Record.Payload.Marshal()
		if err != nil {
			return e.Record.EquipmentTag
		}
		return fmt.Sprintf("%s %s: %s", e.Record.EquipmentTag, e.Record.DataType, string(b))
	}
	return ""
}

// DocumentTitle returns the title of the source document, falling back to its filename
func (e *Evidence) DocumentTitle() string {
	if e.Document == nil {
		return ""
	}
	if e.Document.Title != "" {
		return e.Document.Title
	}
	return e.Document.Filename
}

// ScoredPage is a page with its cosine distance to a query embedding
type ScoredPage struct {
	Page     *Page
	Distance float64
}

// ScoredChunk is a chunk with its cosine distance to a query embedding
type ScoredChunk struct {
	Chunk    *Chunk
	Distance float64
}
