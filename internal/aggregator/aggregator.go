package aggregator

import (
	"sort"
	"strings"

	"sceneflow-go/internal/types"
)

// Summary is the document-level roll-up exported next to the scenes.
type Summary struct {
	SceneCount           int            `json:"scene_count" yaml:"scene_count"`
	EnrichedCount        int            `json:"enriched_count" yaml:"enriched_count"`
	FailedCount          int            `json:"failed_count" yaml:"failed_count"`
	ByTimeOfDay          map[string]int `json:"by_time_of_day" yaml:"by_time_of_day"`
	ByPlacement          map[string]int `json:"by_placement" yaml:"by_placement"`
	CharacterAppearances []Appearance   `json:"character_appearances" yaml:"character_appearances"`
	ToneCounts           map[string]int `json:"tone_counts" yaml:"tone_counts"`
}

type Appearance struct {
	Name   string `json:"name" yaml:"name"`
	Scenes int    `json:"scenes" yaml:"scenes"`
}

func Aggregate(scenes []types.Scene) Summary {
	s := Summary{
		SceneCount:  len(scenes),
		ByTimeOfDay: map[string]int{},
		ByPlacement: map[string]int{},
		ToneCounts:  map[string]int{},
	}
	chars := map[string]int{}
	display := map[string]string{}

	for _, sc := range scenes {
		if sc.Error != nil && sc.Error.Kind == types.SceneErrMalformedOutput {
			s.FailedCount++
		} else if sc.Metadata != nil {
			s.EnrichedCount++
		}
		s.ByTimeOfDay[bucket(sc.TimeOfDay)]++
		s.ByPlacement[bucket(sc.Placement)]++

		if sc.Metadata == nil || (sc.Error != nil && sc.Error.Kind == types.SceneErrMalformedOutput) {
			continue
		}
		if tone := strings.ToLower(strings.TrimSpace(sc.Metadata.EmotionalTone)); tone != "" && tone != strings.ToLower(types.NotAvailable) {
			s.ToneCounts[tone]++
		}
		seen := map[string]bool{}
		for _, name := range sc.Metadata.CharactersPresent {
			key := strings.ToUpper(strings.TrimSpace(name))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			chars[key]++
			if _, ok := display[key]; !ok {
				display[key] = strings.TrimSpace(name)
			}
		}
	}

	for key, n := range chars {
		s.CharacterAppearances = append(s.CharacterAppearances, Appearance{Name: display[key], Scenes: n})
	}
	sort.Slice(s.CharacterAppearances, func(i, j int) bool {
		a, b := s.CharacterAppearances[i], s.CharacterAppearances[j]
		if a.Scenes != b.Scenes {
			return a.Scenes > b.Scenes
		}
		return a.Name < b.Name
	})
	return s
}

func bucket(v string) string {
	v = strings.ToUpper(strings.TrimSpace(v))
	if v == "" {
		return "UNSPECIFIED"
	}
	return v
}
