package classify

import (
	"regexp"
	"strings"

	"github.com/siherrmann/schematic/model"
)

type classifyRule struct {
	phrases   []string
	queryType model.QueryType
}

// rules are checked in order against the lowercased query, the first containing phrase wins
var rules = []classifyRule{
	{[]string{"where is", "find", "locate", "which drawing", "which page"}, model.QueryTypeEquipmentLookup},
	{[]string{"control", "controls", "controlled by"}, model.QueryTypeRelationship},
	{[]string{"upstream", "downstream", "feeds", "powered by", "powers"}, model.QueryTypeUpstreamDownstream},
	{[]string{"wire", "cable", "conductor", "w-"}, model.QueryTypeWireTrace},
	{[]string{"alarm", "setpoint", "set point", "trip", "fault"}, model.QueryTypeAlarmLookup},
	{[]string{"spec", "specification", "rating", "rated", "capacity", "nameplate", "horsepower", "voltage"}, model.QueryTypeSpecification},
	{[]string{"sequence", "sequence of operation", "start-up", "startup", "shutdown", "operating mode"}, model.QueryTypeSequence},
	{[]string{"power source", "power supply", "fed from", "breaker for", "circuit"}, model.QueryTypePowerTrace},
	{[]string{"location", "located", "room", "mounted", "area"}, model.QueryTypeLocation},
}

var tagShape = regexp.MustCompile(`(?i)\b[A-Z]{2,4}-?\d{2,4}\b`)

type relationshipRule struct {
	phrases []string
	relType model.RelationshipType
}

var relationshipRules = []relationshipRule{
	{[]string{"feeds", "fed from", "fed by"}, model.RelationshipTypeFeeds},
	{[]string{"powers", "powered by", "power source", "power supply"}, model.RelationshipTypePowers},
	{[]string{"control", "controls", "controlled by"}, model.RelationshipTypeControls},
	{[]string{"monitor", "monitors", "monitored by"}, model.RelationshipTypeMonitors},
	{[]string{"connects", "connected to", "connection"}, model.RelationshipTypeConnectsTo},
}

// Classify returns the intent of a query.
// Without any matching vocabulary a query holding a tag-shaped token is an equipment lookup.
func Classify(query string) model.QueryType {
	lower := strings.ToLower(query)

	for _, rule := range rules {
		if containsAny(lower, rule.phrases) {
			return rule.queryType
		}
	}

	if tagShape.MatchString(query) {
		return model.QueryTypeEquipmentLookup
	}

	return model.QueryTypeGeneral
}

// DetectRelationshipType maps the relationship vocabulary of a query to an edge type
func DetectRelationshipType(query string) (model.RelationshipType, bool) {
	lower := strings.ToLower(query)
	for _, rule := range relationshipRules {
		if containsAny(lower, rule.phrases) {
			return rule.relType, true
		}
	}
	return "", false
}

func containsAny(s string, phrases []string) bool {
	for _, phrase := range phrases {
		if strings.Contains(s, phrase) {
			return true
		}
	}
	return false
}
