package enrich

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	santhosh "github.com/santhosh-tekuri/jsonschema/v5"
)

// sceneResponse and productionResponse describe what the model is asked to
// return. Their reflected schemas are sent with every request.
type sceneResponse struct {
	SceneNumber       string   `json:"scene_number" jsonschema_description:"Scene number as written in the header, e.g. 1-1 or 1-4-А"`
	Setting           string   `json:"setting" jsonschema_description:"Place and time of action from the header"`
	LocationDetails   string   `json:"location_details" jsonschema_description:"Short description of the location, 1-2 sentences"`
	CharactersPresent []string `json:"characters_present" jsonschema_description:"Characters who act or speak in the scene"`
	KeyEventsSummary  string   `json:"key_events_summary" jsonschema_description:"Key actions and events, 1-3 sentences"`
	EmotionalTone     string   `json:"emotional_tone" jsonschema_description:"Dominant emotional tone"`
	DialogueSummary   string   `json:"dialogue_summary" jsonschema_description:"What the dialogue is about"`
}

type productionResponse struct {
	Costume        string   `json:"costume" jsonschema_description:"Key costumes"`
	MakeupAndHair  string   `json:"makeup_and_hair" jsonschema_description:"Makeup and hair requirements"`
	Props          []string `json:"props" jsonschema_description:"Key props used in the scene"`
	Extras         string   `json:"extras" jsonschema_description:"Required background actors"`
	Stunts         string   `json:"stunts" jsonschema_description:"Required stunts"`
	SpecialEffects string   `json:"special_effects" jsonschema_description:"Special effects"`
	Music          string   `json:"music" jsonschema_description:"Music suggestions"`
}

func reflectSchema[T any]() *jsonschema.Schema {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}

var (
	sceneRequestSchema      = reflectSchema[sceneResponse]()
	productionRequestSchema = reflectSchema[productionResponse]()
)

// Responses are validated against looser schemas than the ones requested:
// local models routinely answer with a number for scene_number or a comma
// separated string for a list, and those are coerced afterwards.
var (
	//go:embed schemas/scene.json
	sceneValidationJSON string
	//go:embed schemas/production.json
	productionValidationJSON string

	sceneValidator      = mustCompile("scene.json", sceneValidationJSON)
	productionValidator = mustCompile("production.json", productionValidationJSON)
)

func mustCompile(name, raw string) *santhosh.Schema {
	compiler := santhosh.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(raw)); err != nil {
		panic(fmt.Sprintf("load %s: %v", name, err))
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("compile %s: %v", name, err))
	}
	return schema
}
