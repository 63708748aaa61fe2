package enrich

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	santhosh "github.com/santhosh-tekuri/jsonschema/v5"

	"sceneflow-go/internal/types"
)

// extractJSON finds the first balanced JSON object in s, ignoring a markdown
// fence around the whole answer and any chatter outside the object. Text
// inside string values is never touched.
func extractJSON(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\r\n", "\n"))
	if rest, ok := strings.CutPrefix(s, "```"); ok {
		s = strings.TrimLeft(rest, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")
	}
	s = strings.TrimSuffix(s, "```")
	if s == "" {
		return ""
	}

	start := strings.Index(s, "{")
	if start == -1 {
		return ""
	}

	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return strings.TrimSpace(s[start : i+1])
			}
		}
	}
	return ""
}

// decodeObject pulls the JSON object out of raw and validates it.
func decodeObject(raw string, schema *santhosh.Schema) (map[string]any, error) {
	candidate := extractJSON(raw)
	if candidate == "" {
		return nil, &MalformedOutputError{Raw: raw, Err: errors.New("no JSON object in output")}
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(candidate), &doc); err != nil {
		return nil, &MalformedOutputError{Raw: raw, Err: fmt.Errorf("decode: %w", err)}
	}
	if err := schema.Validate(doc); err != nil {
		return nil, &MalformedOutputError{Raw: raw, Err: fmt.Errorf("validate: %w", err)}
	}
	return doc, nil
}

func parseEnrichment(raw string) (types.EnrichmentResult, map[string]any, error) {
	doc, err := decodeObject(raw, sceneValidator)
	if err != nil {
		return types.EnrichmentResult{}, nil, err
	}
	res := types.EnrichmentResult{
		SceneNumber:       scalar(doc["scene_number"]),
		Setting:           scalar(doc["setting"]),
		LocationDetails:   scalar(doc["location_details"]),
		CharactersPresent: list(doc["characters_present"]),
		KeyEventsSummary:  scalar(doc["key_events_summary"]),
		EmotionalTone:     scalar(doc["emotional_tone"]),
		DialogueSummary:   scalar(doc["dialogue_summary"]),
	}
	res.ApplyDefaults()
	return res, doc, nil
}

func parseProduction(raw string) (types.ProductionData, error) {
	doc, err := decodeObject(raw, productionValidator)
	if err != nil {
		return types.ProductionData{}, err
	}
	p := types.ProductionData{
		Costume:        scalar(doc["costume"]),
		MakeupAndHair:  scalar(doc["makeup_and_hair"]),
		Props:          list(doc["props"]),
		Extras:         scalar(doc["extras"]),
		Stunts:         scalar(doc["stunts"]),
		SpecialEffects: scalar(doc["special_effects"]),
		Music:          scalar(doc["music"]),
	}
	p.ApplyDefaults()
	return p, nil
}

func scalar(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

// list accepts a JSON array or a single comma separated string.
func list(v any) []string {
	var items []string
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			items = append(items, scalar(item))
		}
	case string:
		items = strings.Split(t, ",")
	}

	out := []string{}
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item != "" && item != types.NotAvailable {
			out = append(out, item)
		}
	}
	return out
}
