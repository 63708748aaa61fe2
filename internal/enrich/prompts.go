package enrich

import (
	"fmt"
	"strings"
)

func buildScenePrompt(sceneText, language string) string {
	return strings.TrimSpace(fmt.Sprintf(`
You are a precise assistant for analysing screenplays. Read the screenplay fragment below and extract information from it as a single JSON object.

Rules:
1. Fill EVERY field listed below.
2. If the text has no information for a field, use "N/A" for strings and an empty list [] for lists.
3. Write all values in %[1]s.

Fields:
- "scene_number": (string) scene number as written in the header, e.g. "1-1" or "1-4-А".
- "setting": (string) full place and time of action from the header, e.g. "НАТ. ЛЕС.ПОЛЯНА - НОЧЬ".
- "location_details": (string) short description of the location from the stage directions, 1-2 sentences.
- "characters_present": (list of strings) names of characters who ACT or SPEAK in the scene. Only people or living beings, never objects.
- "key_events_summary": (string) very short (1-3 sentences) description of the key actions and events.
- "emotional_tone": (string) dominant emotional tone, e.g. "tense", "tragic", "calm", "ironic".
- "dialogue_summary": (string) what the characters talk about, or "N/A" if there is no dialogue.

Scene:
---
%[2]s
---

Return ONLY a valid JSON object in %[1]s. No explanations, no markdown, nothing before or after the JSON.
`, language, sceneText))
}

func buildProductionPrompt(summary, sceneText, language string) string {
	return strings.TrimSpace(fmt.Sprintf(`
You are an experienced assistant director. Analyse the scene and list its production requirements as a single JSON object written in %[1]s.
For fields with no information use "N/A" for strings and an empty list [] for lists.

Key events of the scene:
---
%[2]s
---

Full scene text for context:
---
%[3]s
---

Fields:
- "costume": (string) key costumes for the characters.
- "makeup_and_hair": (string) makeup and hair requirements, e.g. "blood traces on the face".
- "props": (list of strings) key props used in the scene, e.g. ["binoculars", "phone"].
- "extras": (string) required background actors, e.g. "passers-by in the street".
- "stunts": (string) required stunts, e.g. "fall down the stairs", "fight".
- "special_effects": (string) special effects, e.g. "rain", "smoke indoors".
- "music": (string) music suggestions if the text implies any.

Return ONLY valid JSON. No comments.
`, language, summary, sceneText))
}
