package assembler

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/siherrmann/schematic/core/tags"
	"github.com/siherrmann/schematic/helper"
	"github.com/siherrmann/schematic/model"
)

// UpstreamDepth is how many hops of the upstream chain are put into the context
const UpstreamDepth = 3

// PreviewLength is the snippet length of the fallback answer
const PreviewLength = 100

const (
	SectionStructured    = "STRUCTURED DATA"
	SectionRelationships = "EQUIPMENT RELATIONSHIPS"
	SectionExcerpts      = "RELEVANT DOCUMENT EXCERPTS"
)

// RelationshipGraph is the part of the relationship graph the assembler reads
type RelationshipGraph interface {
	GetRelationships(ctx context.Context, equipmentID uuid.UUID, direction model.Direction) (*model.Relationships, error)
	GetUpstreamChain(ctx context.Context, equipmentID uuid.UUID, maxDepth int) ([]uuid.UUID, error)
	Equipment(ctx context.Context, ids []uuid.UUID) ([]*model.Equipment, error)
}

// Assembler arranges search results and graph facts into the context handed to answer synthesis
type Assembler struct {
	graph  RelationshipGraph
	logger *slog.Logger
}

// NewAssembler creates an assembler. Without a graph the relationship section is never added.
func NewAssembler(graph RelationshipGraph, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{
		graph:  graph,
		logger: logger,
	}
}

// Assemble builds the context of a search response.
// Structured records come first grouped by data type, then the relationships of the first
// resolved equipment for relationship queries, then the remaining results as numbered excerpts.
// Bundle.Citations[i-1] is the result cited as [Source i].
func (a *Assembler) Assemble(ctx context.Context, response *model.SearchResponse) (*model.ContextBundle, error) {
	if response == nil {
		return nil, helper.NewInvalidInputError("search response is nil")
	}

	bundle := &model.ContextBundle{
		Query:     response.Query,
		QueryType: response.QueryType,
		Sections:  []model.ContextSection{},
		Citations: []*model.SearchResult{},
	}

	var records, excerpts []*model.SearchResult
	for _, result := range response.Results {
		if result.Evidence != nil && result.Evidence.Kind == model.EvidenceKindStructuredRecord {
			records = append(records, result)
		} else {
			excerpts = append(excerpts, result)
		}
	}

	if len(records) > 0 {
		bundle.Sections = append(bundle.Sections, structuredSection(bundle, records))
	}

	if response.QueryType.IsGraphQuery() && len(response.Resolved) > 0 && a.graph != nil {
		section, err := a.relationshipSection(ctx, response.Resolved[0], response.QueryType)
		if err != nil {
			return nil, err
		}
		bundle.Sections = append(bundle.Sections, section)
	}

	if len(excerpts) > 0 {
		bundle.Sections = append(bundle.Sections, excerptSection(bundle, excerpts))
	}

	bundle.Text = render(bundle.Sections)

	a.logger.Debug("Assembled context", slog.Int("sections", len(bundle.Sections)), slog.Int("citations", len(bundle.Citations)))

	return bundle, nil
}

func cite(bundle *model.ContextBundle, result *model.SearchResult) int {
	bundle.Citations = append(bundle.Citations, result)
	return len(bundle.Citations)
}

// structuredSection groups records by data type, preferred types of the query first
func structuredSection(bundle *model.ContextBundle, records []*model.SearchResult) model.ContextSection {
	order := []model.DataType{}
	for _, dataType := range model.PreferredDataTypes(bundle.QueryType) {
		for _, r := range records {
			if r.Evidence.Record.DataType == dataType {
				order = append(order, dataType)
				break
			}
		}
	}
	for _, r := range records {
		if !slices.Contains(order, r.Evidence.Record.DataType) {
			order = append(order, r.Evidence.Record.DataType)
		}
	}

	section := model.ContextSection{Title: SectionStructured}
	for _, dataType := range order {
		section.Lines = append(section.Lines, fmt.Sprintf("%s:", dataType))
		for _, r := range records {
			record := r.Evidence.Record
			if record.DataType != dataType {
				continue
			}
			i := cite(bundle, r)
			source := strings.Trim(strings.Join([]string{r.Evidence.DocumentTitle(), record.SourceLocation}, ", "), ", ")
			section.Lines = append(section.Lines, fmt.Sprintf("[Source %d] %s (%s): %s", i, record.EquipmentTag, source, record.Payload.Summary()))
		}
	}
	return section
}

func (a *Assembler) relationshipSection(ctx context.Context, equipment *model.Equipment, queryType model.QueryType) (model.ContextSection, error) {
	section := model.ContextSection{Title: fmt.Sprintf("%s FOR %s", SectionRelationships, equipment.Tag)}

	rels, err := a.graph.GetRelationships(ctx, equipment.ID, model.DirectionBoth)
	if err != nil {
		return section, helper.NewError("get relationships", err)
	}

	for _, group := range []struct {
		label     string
		equipment []*model.Equipment
	}{
		{"Controls", rels.Controls},
		{"Controlled by", rels.ControlledBy},
		{"Powers", rels.Powers},
		{"Powered by", rels.PoweredBy},
		{"Feeds", rels.Feeds},
		{"Fed by", rels.FedBy},
	} {
		if len(group.equipment) > 0 {
			section.Lines = append(section.Lines, fmt.Sprintf("%s: %s", group.label, joinTags(group.equipment)))
		}
	}

	if queryType == model.QueryTypeUpstreamDownstream {
		chain, err := a.graph.GetUpstreamChain(ctx, equipment.ID, UpstreamDepth)
		if err != nil {
			return section, helper.NewError("get upstream chain", err)
		}
		if len(chain) > 0 {
			upstream, err := a.graph.Equipment(ctx, chain)
			if err != nil {
				return section, helper.NewError("select upstream equipment", err)
			}
			names := make([]string, len(upstream))
			for i, eq := range upstream {
				names[i] = eq.Tag
			}
			section.Lines = append(section.Lines, fmt.Sprintf("Upstream chain: %s", strings.Join(names, " -> ")))
		}
	}

	if len(section.Lines) == 0 {
		section.Lines = append(section.Lines, "No recorded relationships")
	}

	return section, nil
}

func excerptSection(bundle *model.ContextBundle, excerpts []*model.SearchResult) model.ContextSection {
	section := model.ContextSection{Title: SectionExcerpts}
	for _, r := range excerpts {
		i := cite(bundle, r)
		section.Lines = append(section.Lines, fmt.Sprintf("[Source %d] Document: %s, %s", i, r.Evidence.DocumentTitle(), r.Evidence.LocationLabel()))
		if r.Equipment != nil {
			section.Lines = append(section.Lines, fmt.Sprintf("Equipment: %s", r.Equipment.Tag))
		}
		if r.Snippet != "" {
			section.Lines = append(section.Lines, fmt.Sprintf("Content: %s", r.Snippet))
		}
	}
	return section
}

func joinTags(equipment []*model.Equipment) string {
	names := make([]string, len(equipment))
	for i, eq := range equipment {
		names[i] = eq.Tag
	}
	return strings.Join(names, ", ")
}

func render(sections []model.ContextSection) string {
	parts := make([]string, 0, len(sections))
	for _, section := range sections {
		parts = append(parts, fmt.Sprintf("=== %s ===\n%s", section.Title, strings.Join(section.Lines, "\n")))
	}
	return strings.Join(parts, "\n\n")
}

// FallbackAnswer lists the cited sources and relationship facts of a bundle.
// It is used when no language model is configured.
func FallbackAnswer(query string, bundle *model.ContextBundle) string {
	if bundle == nil || len(bundle.Citations) == 0 {
		return fmt.Sprintf("No relevant information found for: %s", query)
	}

	parts := []string{fmt.Sprintf("Found %d relevant result(s) for your query:", len(bundle.Citations)), ""}
	for i, r := range bundle.Citations {
		parts = append(parts, fmt.Sprintf("%d. Document: %s, %s", i+1, r.Evidence.DocumentTitle(), r.Evidence.LocationLabel()))
		if r.Equipment != nil {
			parts = append(parts, fmt.Sprintf("   Equipment: %s", r.Equipment.Tag))
		}
		if r.Snippet != "" {
			parts = append(parts, fmt.Sprintf("   Preview: %s", tags.Preview(r.Snippet, PreviewLength)))
		}
	}

	for _, section := range bundle.Sections {
		if !strings.HasPrefix(section.Title, SectionRelationships) {
			continue
		}
		parts = append(parts, "", strings.TrimPrefix(section.Title, "EQUIPMENT ")+":")
		for _, line := range section.Lines {
			parts = append(parts, "  "+line)
		}
	}

	return strings.Join(parts, "\n")
}
