package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/siherrmann/schematic/core/tags"
	"github.com/siherrmann/schematic/helper"
	"github.com/siherrmann/schematic/model"
)

const (
	// ExactRelevance is the relevance of evidence that references a resolved equipment
	ExactRelevance = 1.0
	// KeywordFactor scales the source weight of keyword matches
	KeywordFactor = 0.5
)

// batch is one fetch of ranked stage candidates
type batch struct {
	results []*model.SearchResult
	// set when a source list was cut by the fetch size, so a larger fetch may find more
	more bool
}

type fetchFunc func(ctx context.Context, n int) (*batch, error)

// candidate is a stage result with its sort score
type candidate struct {
	result *model.SearchResult
	score  float64
}

// rank sorts candidates by score, highest first, then by insertion order
func rank(candidates []candidate) []*model.SearchResult {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].result.Evidence.Seq() < candidates[j].result.Evidence.Seq()
	})

	results := make([]*model.SearchResult, len(candidates))
	for i, c := range candidates {
		results[i] = c.result
	}
	return results
}

// runRanked fills the collector from a ranked stage.
// Each list is fetched with the result limit. If duplicates leave the stage short while a list
// was cut, the fetch size is doubled until the stage can fill the remaining slots or is exhausted.
func (s *search) runRanked(ctx context.Context, fetch fetchFunc, first *batch) (int, error) {
	n := s.collector.limit
	b := first
	for {
		if b == nil {
			var err error
			b, err = fetch(ctx, n)
			if err != nil {
				return 0, err
			}
		}
		if b.more && s.collector.fresh(b.results) < s.collector.need() {
			n *= 2
			b = nil
			continue
		}
		return s.collector.addAll(b.results), nil
	}
}

// runExact emits every evidence unit that references a resolved equipment,
// equipment by equipment in insertion order
func (e *Engine) runExact(ctx context.Context, s *search) error {
	added := 0
	for _, equipment := range s.resolved {
		if s.collector.full() {
			break
		}

		names := s.equipmentTags[equipment.ID]
		evidence, err := e.referencingEvidence(ctx, s, equipment, names)
		if err != nil {
			return err
		}

		for _, ev := range evidence {
			ok := s.collector.add(&model.SearchResult{
				Evidence:  ev,
				Equipment: equipment,
				Relevance: ExactRelevance,
				Stage:     model.MatchStageExact,
				Snippet:   tagSnippet(ev, names),
			})
			if ok {
				added++
			}
			if s.collector.full() {
				break
			}
		}
	}

	e.record(model.MatchStageExact, added)
	return nil
}

// referencingEvidence returns the pages, chunks and records of an equipment ordered by insertion
func (e *Engine) referencingEvidence(ctx context.Context, s *search, equipment *model.Equipment, names []string) ([]*model.Evidence, error) {
	pages, err := e.stores.Pages.SelectPagesByEquipment(ctx, equipment.ID)
	if err != nil {
		return nil, helper.NewError("select pages by equipment", err)
	}
	chunks, err := e.stores.Chunks.SelectChunksByTags(ctx, s.projectID, names)
	if err != nil {
		return nil, helper.NewError("select chunks by tags", err)
	}
	records, err := e.stores.Records.SelectRecordsByTags(ctx, s.projectID, names, nil)
	if err != nil {
		return nil, helper.NewError("select records by tags", err)
	}

	evidence := make([]*model.Evidence, 0, len(pages)+len(chunks)+len(records))
	for _, page := range pages {
		evidence = append(evidence, model.NewPageEvidence(nil, page))
	}
	for _, chunk := range chunks {
		evidence = append(evidence, model.NewChunkEvidence(nil, chunk))
	}
	for _, record := range records {
		evidence = append(evidence, model.NewRecordEvidence(nil, record))
	}
	sort.SliceStable(evidence, func(i, j int) bool {
		return evidence[i].Seq() < evidence[j].Seq()
	})

	err = s.documents.attach(ctx, evidence)
	if err != nil {
		return nil, err
	}

	return evidence, nil
}

func (e *Engine) runSemantic(ctx context.Context, s *search, pre *prefetch) error {
	if s.collector.full() {
		return nil
	}

	var embedding []float32
	var first *batch
	var err error
	if pre != nil {
		embedding, first, err = pre.embedding, pre.semantic, pre.embedErr
	} else {
		embedding, err = e.embedQuery(s.query)
	}
	if err != nil {
		e.degrade(s, err)
		return nil
	}

	fetch := func(ctx context.Context, n int) (*batch, error) {
		return e.fetchSemantic(ctx, s, embedding, n)
	}
	added, err := s.runRanked(ctx, fetch, first)
	if err != nil {
		return err
	}

	e.record(model.MatchStageSemantic, added)
	return nil
}

// fetchSemantic ranks the n nearest pages and the n nearest chunks by cosine similarity
func (e *Engine) fetchSemantic(ctx context.Context, s *search, embedding []float32, n int) (*batch, error) {
	pages, err := e.stores.Pages.SelectPagesBySimilarity(ctx, s.projectID, embedding, n)
	if err != nil {
		return nil, helper.NewError("select pages by similarity", err)
	}
	chunks, err := e.stores.Chunks.SelectChunksBySimilarity(ctx, s.projectID, embedding, n)
	if err != nil {
		return nil, helper.NewError("select chunks by similarity", err)
	}

	candidates := make([]candidate, 0, len(pages)+len(chunks))
	evidence := make([]*model.Evidence, 0, len(pages)+len(chunks))
	for _, scored := range pages {
		ev := model.NewPageEvidence(nil, scored.Page)
		evidence = append(evidence, ev)
		candidates = append(candidates, semanticCandidate(ev, scored.Distance))
	}
	for _, scored := range chunks {
		ev := model.NewChunkEvidence(nil, scored.Chunk)
		evidence = append(evidence, ev)
		candidates = append(candidates, semanticCandidate(ev, scored.Distance))
	}

	err = s.documents.attach(ctx, evidence)
	if err != nil {
		return nil, err
	}

	return &batch{
		results: rank(candidates),
		more:    len(pages) == n || len(chunks) == n,
	}, nil
}

func semanticCandidate(ev *model.Evidence, distance float64) candidate {
	similarity := 1 - distance
	return candidate{
		result: &model.SearchResult{
			Evidence:  ev,
			Relevance: max(0, min(1, similarity)),
			Stage:     model.MatchStageSemantic,
			Snippet:   tags.Preview(ev.Text(), 2*tags.SnippetRadius),
		},
		score: similarity,
	}
}

func (e *Engine) runStructured(ctx context.Context, s *search, pre *prefetch) error {
	dataTypes := s.structuredTypes()
	if s.collector.full() || dataTypes == nil {
		return nil
	}

	var results []*model.SearchResult
	if pre != nil {
		results = pre.structured
	} else {
		var err error
		results, err = e.fetchStructured(ctx, s, dataTypes)
		if err != nil {
			return err
		}
	}

	e.record(model.MatchStageStructured, s.collector.addAll(results))
	return nil
}

// fetchStructured returns the records of the resolved equipment with the preferred data types,
// by data type priority then insertion order
func (e *Engine) fetchStructured(ctx context.Context, s *search, dataTypes []model.DataType) ([]*model.SearchResult, error) {
	records, err := e.stores.Records.SelectRecordsByTags(ctx, s.projectID, s.allTags(), dataTypes)
	if err != nil {
		return nil, helper.NewError("select records by tags", err)
	}

	evidence := make([]*model.Evidence, len(records))
	results := make([]*model.SearchResult, len(records))
	for i, record := range records {
		ev := model.NewRecordEvidence(nil, record)
		evidence[i] = ev
		results[i] = &model.SearchResult{
			Evidence:  ev,
			Equipment: s.byTag[strings.ToUpper(record.EquipmentTag)],
			Relevance: ev.Weight(),
			Stage:     model.MatchStageStructured,
			Snippet:   recordSnippet(record),
		}
	}

	err = s.documents.attach(ctx, evidence)
	if err != nil {
		return nil, err
	}

	return results, nil
}

func (e *Engine) runKeyword(ctx context.Context, s *search, pre *prefetch) error {
	if s.collector.full() {
		return nil
	}

	var first *batch
	if pre != nil {
		first = pre.keyword
	}
	fetch := func(ctx context.Context, n int) (*batch, error) {
		return e.fetchKeyword(ctx, s, n)
	}
	added, err := s.runRanked(ctx, fetch, first)
	if err != nil {
		return err
	}

	e.record(model.MatchStageKeyword, added)
	return nil
}

// fetchKeyword matches the raw query against page text, chunk text and document titles
func (e *Engine) fetchKeyword(ctx context.Context, s *search, n int) (*batch, error) {
	pages, err := e.stores.Pages.SelectPagesByKeyword(ctx, s.projectID, s.query, n)
	if err != nil {
		return nil, helper.NewError("select pages by keyword", err)
	}
	chunks, err := e.stores.Chunks.SelectChunksByKeyword(ctx, s.projectID, s.query, n)
	if err != nil {
		return nil, helper.NewError("select chunks by keyword", err)
	}

	evidence := make([]*model.Evidence, 0, len(pages)+len(chunks))
	for _, page := range pages {
		evidence = append(evidence, model.NewPageEvidence(nil, page))
	}
	for _, chunk := range chunks {
		evidence = append(evidence, model.NewChunkEvidence(nil, chunk))
	}

	err = s.documents.attach(ctx, evidence)
	if err != nil {
		return nil, err
	}

	candidates := make([]candidate, len(evidence))
	for i, ev := range evidence {
		relevance := KeywordFactor * ev.Weight()
		snippet := tags.Snippet(ev.Text(), s.query, -1)
		if snippet == "" {
			snippet = tags.Preview(ev.Text(), 2*tags.SnippetRadius)
		}
		candidates[i] = candidate{
			result: &model.SearchResult{
				Evidence:  ev,
				Relevance: relevance,
				Stage:     model.MatchStageKeyword,
				Snippet:   snippet,
			},
			score: relevance,
		}
	}

	return &batch{
		results: rank(candidates),
		more:    len(pages) == n || len(chunks) == n,
	}, nil
}

// tagSnippet cuts the text around the first of names it mentions
func tagSnippet(ev *model.Evidence, names []string) string {
	if ev.Record != nil {
		return recordSnippet(ev.Record)
	}
	text := ev.Text()
	for _, name := range names {
		if snippet := tags.Snippet(text, name, -1); snippet != "" {
			return snippet
		}
	}
	return tags.Preview(text, 2*tags.SnippetRadius)
}

func recordSnippet(record *model.Record) string {
	summary := record.Payload.Summary()
	if summary == "" {
		return fmt.Sprintf("%s %s", record.EquipmentTag, record.DataType)
	}
	return fmt.Sprintf("%s %s: %s", record.EquipmentTag, record.DataType, summary)
}
