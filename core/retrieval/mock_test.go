package retrieval

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/siherrmann/schematic/model"
)

// MockResolver resolves tags from an in-memory equipment list
type MockResolver struct {
	equipment []*model.Equipment
	aliases   map[uuid.UUID][]*model.EquipmentAlias
	err       error
}

func NewMockResolver() *MockResolver {
	return &MockResolver{aliases: map[uuid.UUID][]*model.EquipmentAlias{}}
}

func (m *MockResolver) add(projectID uuid.UUID, tag string, aliases ...string) *model.Equipment {
	eq := &model.Equipment{ID: uuid.New(), ProjectID: projectID, Tag: tag, Type: model.EquipmentTypeOther}
	m.equipment = append(m.equipment, eq)
	for _, alias := range aliases {
		m.aliases[eq.ID] = append(m.aliases[eq.ID], &model.EquipmentAlias{ID: uuid.New(), EquipmentID: eq.ID, Alias: alias})
	}
	return eq
}

func (m *MockResolver) Resolve(ctx context.Context, projectID uuid.UUID, rawTag string) (*model.Equipment, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, eq := range m.equipment {
		if eq.ProjectID == projectID && strings.EqualFold(eq.Tag, rawTag) {
			return eq, nil
		}
	}
	for _, eq := range m.equipment {
		for _, alias := range m.aliases[eq.ID] {
			if eq.ProjectID == projectID && strings.EqualFold(alias.Alias, rawTag) {
				return eq, nil
			}
		}
	}
	return nil, nil
}

func (m *MockResolver) Aliases(ctx context.Context, equipmentID uuid.UUID) ([]*model.EquipmentAlias, error) {
	return m.aliases[equipmentID], nil
}

// MockEvidenceStore is an in-memory implementation of every evidence store for testing.
// Embedded evidence gets a fixed cosine distance instead of a vector.
type MockEvidenceStore struct {
	mu        sync.Mutex
	seq       int64
	documents []*model.Document
	pages     []*model.Page
	chunks    []*model.Chunk
	records   []*model.Record
	distances map[uuid.UUID]float64
	// pages located per equipment
	located map[uuid.UUID][]uuid.UUID

	keywordErr   error
	keywordCalls int
}

func NewMockEvidenceStore() *MockEvidenceStore {
	return &MockEvidenceStore{
		distances: map[uuid.UUID]float64{},
		located:   map[uuid.UUID][]uuid.UUID{},
	}
}

func (m *MockEvidenceStore) stores() Stores {
	return Stores{Pages: m, Chunks: m, Records: m, Documents: m}
}

func (m *MockEvidenceStore) nextSeq() int64 {
	m.seq++
	return m.seq
}

func (m *MockEvidenceStore) addDocument(projectID uuid.UUID, title string, kind model.DocumentKind) *model.Document {
	doc := &model.Document{ID: uuid.New(), ProjectID: projectID, Title: title, Filename: title + ".pdf", Kind: kind}
	m.documents = append(m.documents, doc)
	return doc
}

func (m *MockEvidenceStore) addPage(doc *model.Document, number int, text string, located ...*model.Equipment) *model.Page {
	page := &model.Page{ID: uuid.New(), DocumentID: doc.ID, PageNumber: number, Text: text, Seq: m.nextSeq()}
	m.pages = append(m.pages, page)
	for _, eq := range located {
		m.located[eq.ID] = append(m.located[eq.ID], page.ID)
	}
	return page
}

func (m *MockEvidenceStore) addChunk(doc *model.Document, index int, location string, category model.ChunkCategory, text string, tags ...string) *model.Chunk {
	chunk := &model.Chunk{
		ID:             uuid.New(),
		DocumentID:     doc.ID,
		ChunkIndex:     index,
		Content:        text,
		SourceLocation: location,
		Category:       category,
		EquipmentTags:  tags,
		Seq:            m.nextSeq(),
	}
	m.chunks = append(m.chunks, chunk)
	return chunk
}

func (m *MockEvidenceStore) addRecord(doc *model.Document, tag string, dataType model.DataType, location string, payload model.Metadata) *model.Record {
	record := &model.Record{
		ID:             uuid.New(),
		DocumentID:     doc.ID,
		EquipmentTag:   tag,
		DataType:       dataType,
		Payload:        payload,
		SourceLocation: location,
		Seq:            m.nextSeq(),
	}
	m.records = append(m.records, record)
	return record
}

func (m *MockEvidenceStore) embed(id uuid.UUID, distance float64) {
	m.distances[id] = distance
}

func (m *MockEvidenceStore) document(id uuid.UUID) *model.Document {
	for _, doc := range m.documents {
		if doc.ID == id {
			return doc
		}
	}
	return nil
}

func (m *MockEvidenceStore) inProject(documentID, projectID uuid.UUID) bool {
	doc := m.document(documentID)
	return doc != nil && doc.ProjectID == projectID
}

func (m *MockEvidenceStore) matchesKeyword(documentID uuid.UUID, text, query string) bool {
	query = strings.ToLower(query)
	if strings.Contains(strings.ToLower(text), query) {
		return true
	}
	doc := m.document(documentID)
	return doc != nil && strings.Contains(strings.ToLower(doc.Title), query)
}

func containsFold(values []string, wanted []string) bool {
	for _, v := range values {
		for _, w := range wanted {
			if strings.EqualFold(v, w) {
				return true
			}
		}
	}
	return false
}

func (m *MockEvidenceStore) SelectPagesByEquipment(ctx context.Context, equipmentID uuid.UUID) ([]*model.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.Page{}
	for _, page := range m.pages {
		if slices.Contains(m.located[equipmentID], page.ID) {
			out = append(out, page)
		}
	}
	return out, nil
}

func (m *MockEvidenceStore) SelectPagesBySimilarity(ctx context.Context, projectID uuid.UUID, embedding []float32, limit int) ([]*model.ScoredPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.ScoredPage{}
	for _, page := range m.pages {
		distance, ok := m.distances[page.ID]
		if ok && m.inProject(page.DocumentID, projectID) {
			out = append(out, &model.ScoredPage{Page: page, Distance: distance})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	return out[:min(limit, len(out))], nil
}

func (m *MockEvidenceStore) SelectPagesByKeyword(ctx context.Context, projectID uuid.UUID, query string, limit int) ([]*model.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keywordCalls++
	if m.keywordErr != nil {
		return nil, m.keywordErr
	}
	out := []*model.Page{}
	for _, page := range m.pages {
		if m.inProject(page.DocumentID, projectID) && m.matchesKeyword(page.DocumentID, page.Text, query) {
			out = append(out, page)
		}
	}
	return out[:min(limit, len(out))], nil
}

func (m *MockEvidenceStore) SelectChunksByTags(ctx context.Context, projectID uuid.UUID, tags []string) ([]*model.Chunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.Chunk{}
	for _, chunk := range m.chunks {
		if m.inProject(chunk.DocumentID, projectID) && containsFold(chunk.EquipmentTags, tags) {
			out = append(out, chunk)
		}
	}
	return out, nil
}

func (m *MockEvidenceStore) SelectChunksBySimilarity(ctx context.Context, projectID uuid.UUID, embedding []float32, limit int) ([]*model.ScoredChunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.ScoredChunk{}
	for _, chunk := range m.chunks {
		distance, ok := m.distances[chunk.ID]
		if ok && m.inProject(chunk.DocumentID, projectID) {
			out = append(out, &model.ScoredChunk{Chunk: chunk, Distance: distance})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	return out[:min(limit, len(out))], nil
}

func (m *MockEvidenceStore) SelectChunksByKeyword(ctx context.Context, projectID uuid.UUID, query string, limit int) ([]*model.Chunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keywordErr != nil {
		return nil, m.keywordErr
	}
	out := []*model.Chunk{}
	for _, chunk := range m.chunks {
		if m.inProject(chunk.DocumentID, projectID) && m.matchesKeyword(chunk.DocumentID, chunk.Content, query) {
			out = append(out, chunk)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Category.Weight() > out[j].Category.Weight() })
	return out[:min(limit, len(out))], nil
}

func (m *MockEvidenceStore) SelectRecordsByTags(ctx context.Context, projectID uuid.UUID, tags []string, dataTypes []model.DataType) ([]*model.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.Record{}
	for _, record := range m.records {
		if !m.inProject(record.DocumentID, projectID) || !containsFold([]string{record.EquipmentTag}, tags) {
			continue
		}
		if dataTypes != nil && !slices.Contains(dataTypes, record.DataType) {
			continue
		}
		out = append(out, record)
	}
	if dataTypes != nil {
		sort.SliceStable(out, func(i, j int) bool {
			return slices.Index(dataTypes, out[i].DataType) < slices.Index(dataTypes, out[j].DataType)
		})
	}
	return out, nil
}

func (m *MockEvidenceStore) SelectDocumentsByIDs(ctx context.Context, ids []uuid.UUID) ([]*model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.Document{}
	for _, doc := range m.documents {
		if slices.Contains(ids, doc.ID) {
			out = append(out, doc)
		}
	}
	return out, nil
}
