package tags

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/siherrmann/schematic/model"
)

// ContextRadius is the number of characters kept on each side of an extracted tag
const ContextRadius = 50

// SnippetRadius is the default radius of search snippets
const SnippetRadius = 150

// RelationshipConfidence is the confidence of relationships found by keyword patterns
const RelationshipConfidence = 0.8

type tagRule struct {
	pattern *regexp.Regexp
	kind    model.EquipmentType
}

const tagSuffix = `-?\d{1,4}[A-Z]?\b`

func rule(pattern string, kind model.EquipmentType) tagRule {
	return tagRule{pattern: regexp.MustCompile(`(?i)` + pattern), kind: kind}
}

// tagRules is ordered, an earlier rule claims a span before any later rule can.
// Kinds outside the closed equipment types are folded into the nearest one or OTHER.
var tagRules = []tagRule{
	// Rooftop units
	rule(`\bRTU[-_\s]?[A-Z]\d{1,3}[A-Z]?\b`, model.EquipmentTypeFan),
	rule(`\bRTU[-_]?\d{1,4}[A-Z]?\b`, model.EquipmentTypeFan),
	rule(`\bRTU\([A-Z]\)`, model.EquipmentTypeFan),
	rule(`\bRTU\b`, model.EquipmentTypeFan),
	// Air side
	rule(`\b(FAN|AHU|FCU|VAVE?|MAU|EF|SF|RF)`+tagSuffix, model.EquipmentTypeFan),
	rule(`\b(FAN|AHU|FCU|VAVE?|MAU|EF|SF|RF)-[A-Z]\d{1,4}[A-Z]?\b`, model.EquipmentTypeFan),
	rule(`\b(MOT|MTR|M)`+tagSuffix, model.EquipmentTypeMotor),
	rule(`\b(VFD|VSD|AFD)`+tagSuffix, model.EquipmentTypeVFD),
	rule(`\b(PMP|P)`+tagSuffix, model.EquipmentTypePump),
	rule(`\b(BKR|CB|MCCB)`+tagSuffix, model.EquipmentTypeBreaker),
	rule(`\b(RLY|CR|TR)`+tagSuffix, model.EquipmentTypeRelay),
	rule(`\b(PLC|DCS|PAC)`+tagSuffix, model.EquipmentTypePLC),
	rule(`\b(TS|PS|FS|LS|PT|FT|LT|TT)`+tagSuffix, model.EquipmentTypeSensor),
	rule(`\b(CV|MOV|SOV|BV|GV)`+tagSuffix, model.EquipmentTypeValve),
	rule(`\b(MCC|SWG|PNL|DP|LP|MDP)`+tagSuffix, model.EquipmentTypePanel),
	rule(`\b(XFMR|TX)`+tagSuffix, model.EquipmentTypeTransformer),
	rule(`\bTR-\d{1,4}[A-Z]?\b`, model.EquipmentTypeTransformer),
	rule(`\bT-\d{1,4}[A-Z]?\b`, model.EquipmentTypeTransformer),
	// Switches, operator interfaces, UPS, generators, capacitors
	rule(`\b(SW|HS|SS|DS)`+tagSuffix, model.EquipmentTypeOther),
	rule(`\b(HMI|OIT|OIU)`+tagSuffix, model.EquipmentTypeOther),
	rule(`\bUPS`+tagSuffix, model.EquipmentTypeOther),
	rule(`\b(GEN|DG|EG)`+tagSuffix, model.EquipmentTypeOther),
	rule(`\b(CAP|CAPBANK)`+tagSuffix, model.EquipmentTypeOther),
	// Instrument transformers and protective relays (ANSI device numbers)
	rule(`\b(CT|VT|PT)`+tagSuffix, model.EquipmentTypeTransformer),
	rule(`\b(27|50|51|52|59|67|81|86|87)-\d{1,2}[A-Z]?\b`, model.EquipmentTypeRelay),
	rule(`\b(27|50|51|52|59|67|81|86|87)[A-Z]\b`, model.EquipmentTypeRelay),
	// Anything else that looks like a tag
	rule(`\b[A-Z]{2,5}[-_][A-Z]?\d{1,4}[A-Z]?\b`, model.EquipmentTypeOther),
}

var wireRules = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bW-?\d{3,5}\b`),
	regexp.MustCompile(`(?i)\b\d{3,4}[A-Z]{0,2}\b`),
	regexp.MustCompile(`(?i)\bCABLE-?\d{2,4}\b`),
}

type relationshipKeyword struct {
	phrase  string
	kind    model.RelationshipType
	passive bool
}

var relationshipKeywords = []relationshipKeyword{
	{"controls", model.RelationshipTypeControls, false},
	{"controlled by", model.RelationshipTypeControls, true},
	{"starts", model.RelationshipTypeControls, false},
	{"stops", model.RelationshipTypeControls, false},
	{"enables", model.RelationshipTypeControls, false},
	{"interlocked", model.RelationshipTypeControls, false},
	{"powers", model.RelationshipTypePowers, false},
	{"powered by", model.RelationshipTypePowers, true},
	{"feeds", model.RelationshipTypePowers, false},
	{"fed from", model.RelationshipTypePowers, true},
	{"supplies", model.RelationshipTypePowers, false},
}

var typeKeywords = []struct {
	kind     model.EquipmentType
	keywords []string
}{
	{model.EquipmentTypeFan, []string{"fan", "air handler", "exhaust", "supply air", "cfm"}},
	{model.EquipmentTypeMotor, []string{"motor", "hp", "horsepower", "rpm", "kw"}},
	{model.EquipmentTypeVFD, []string{"vfd", "variable frequency", "drive", "inverter"}},
	{model.EquipmentTypePump, []string{"pump", "gpm", "head", "flow"}},
	{model.EquipmentTypeBreaker, []string{"breaker", "circuit", "amp", "disconnect"}},
	{model.EquipmentTypeSensor, []string{"sensor", "transmitter", "temperature", "pressure", "level"}},
	{model.EquipmentTypeValve, []string{"valve", "actuator", "damper"}},
}

// Extract finds equipment tags in text.
// Rules are applied in table order and a match overlapping a span claimed by an
// earlier rule is dropped, so "RTU-F04" never also yields "RTU".
// Tags are uppercased and returned once each in order of first appearance.
func Extract(text string) []*model.ExtractedTag {
	found := []*model.ExtractedTag{}
	claimed := [][2]int{}

	for _, r := range tagRules {
		for _, loc := range r.pattern.FindAllStringIndex(text, -1) {
			if overlaps(claimed, loc[0], loc[1]) {
				continue
			}
			claimed = append(claimed, [2]int{loc[0], loc[1]})
			found = append(found, &model.ExtractedTag{
				Tag:     strings.ToUpper(text[loc[0]:loc[1]]),
				Type:    r.kind,
				Context: strings.TrimSpace(window(text, loc[0], loc[1], ContextRadius)),
				Start:   loc[0],
				End:     loc[1],
			})
		}
	}

	sort.SliceStable(found, func(i, j int) bool {
		return found[i].Start < found[j].Start
	})

	seen := map[string]bool{}
	unique := []*model.ExtractedTag{}
	for _, tag := range found {
		if seen[tag.Tag] {
			continue
		}
		seen[tag.Tag] = true
		unique = append(unique, tag)
	}

	return unique
}

// ExtractTagStrings returns only the tag strings of Extract
func ExtractTagStrings(text string) []string {
	extracted := Extract(text)
	out := make([]string, len(extracted))
	for i, tag := range extracted {
		out[i] = tag.Tag
	}
	return out
}

// ExtractWireNumbers finds wire and cable numbers, uppercased and deduplicated in order of appearance
func ExtractWireNumbers(text string) []string {
	type wire struct {
		start int
		value string
	}
	found := []wire{}
	for _, pattern := range wireRules {
		for _, loc := range pattern.FindAllStringIndex(text, -1) {
			found = append(found, wire{start: loc[0], value: strings.ToUpper(text[loc[0]:loc[1]])})
		}
	}

	sort.SliceStable(found, func(i, j int) bool {
		return found[i].start < found[j].start
	})

	seen := map[string]bool{}
	wires := []string{}
	for _, w := range found {
		if seen[w.value] {
			continue
		}
		seen[w.value] = true
		wires = append(wires, w.value)
	}
	return wires
}

// ExtractRelationships finds "A controls B" and "A powers B" statements between the given tags.
// Passive phrases such as "A powered by B" are turned around so that the source is always the actor.
func ExtractRelationships(text string, tags []string) []*model.ExtractedRelationship {
	relationships := []*model.ExtractedRelationship{}
	if len(tags) == 0 {
		return relationships
	}

	alternation := tagAlternation(tags)
	if alternation == "" {
		return relationships
	}

	seen := map[[3]string]bool{}
	for _, keyword := range relationshipKeywords {
		phrase := strings.ReplaceAll(regexp.QuoteMeta(keyword.phrase), " ", `\s+`)
		pattern := regexp.MustCompile(`(?i)(` + alternation + `)\s+` + phrase + `\s+(` + alternation + `)`)

		for _, match := range pattern.FindAllStringSubmatch(text, -1) {
			source, target := strings.ToUpper(match[1]), strings.ToUpper(match[2])
			if keyword.passive {
				source, target = target, source
			}

			key := [3]string{source, target, string(keyword.kind)}
			if seen[key] {
				continue
			}
			seen[key] = true

			relationships = append(relationships, &model.ExtractedRelationship{
				SourceTag:  source,
				TargetTag:  target,
				Type:       keyword.kind,
				Confidence: RelationshipConfidence,
			})
		}
	}

	return relationships
}

// InferType guesses an equipment type from the words around a tag.
// It returns OTHER when no keyword matches.
func InferType(context string) model.EquipmentType {
	lower := strings.ToLower(context)
	for _, tk := range typeKeywords {
		for _, kw := range tk.keywords {
			if strings.Contains(lower, kw) {
				return tk.kind
			}
		}
	}
	return model.EquipmentTypeOther
}

// Snippet returns the text around the first case-insensitive occurrence of tag.
// Truncated ends are marked with "...". It returns "" if tag does not occur.
func Snippet(text, tag string, radius int) string {
	if strings.TrimSpace(tag) == "" {
		return ""
	}
	if radius < 0 {
		radius = SnippetRadius
	}

	loc := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(tag)).FindStringIndex(text)
	if loc == nil {
		return ""
	}

	start, end := bounds(text, loc[0], loc[1], radius)
	snippet := strings.TrimSpace(text[start:end])
	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(text) {
		snippet = snippet + "..."
	}
	return snippet
}

// Preview returns at most n bytes of text cut at a rune boundary, marked with "..." if cut
func Preview(text string, n int) string {
	text = strings.TrimSpace(text)
	if n <= 0 || len(text) <= n {
		return text
	}
	end := n
	for end > 0 && !utf8.RuneStart(text[end]) {
		end--
	}
	return strings.TrimSpace(text[:end]) + "..."
}

func tagAlternation(tags []string) string {
	sorted := []string{}
	seen := map[string]bool{}
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[strings.ToUpper(tag)] {
			continue
		}
		seen[strings.ToUpper(tag)] = true
		sorted = append(sorted, tag)
	}

	// Longest first so that "MCC-2A" wins over "MCC-2"
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i]) > len(sorted[j])
	})

	quoted := make([]string, len(sorted))
	for i, tag := range sorted {
		quoted[i] = regexp.QuoteMeta(tag)
	}
	return strings.Join(quoted, "|")
}

func overlaps(claimed [][2]int, start, end int) bool {
	for _, span := range claimed {
		if start < span[1] && span[0] < end {
			return true
		}
	}
	return false
}

func window(text string, start, end, radius int) string {
	s, e := bounds(text, start, end, radius)
	return text[s:e]
}

// bounds widens [start, end) by radius bytes on each side and keeps both ends on rune boundaries
func bounds(text string, start, end, radius int) (int, int) {
	s := max(0, start-radius)
	e := min(len(text), end+radius)
	for s > 0 && !utf8.RuneStart(text[s]) {
		s--
	}
	for e < len(text) && !utf8.RuneStart(text[e]) {
		e++
	}
	return s, e
}
