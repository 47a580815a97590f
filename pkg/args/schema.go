package args

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

var reflector = &jsonschema.Reflector{
	DoNotReference:            true,
	ExpandedStruct:            true,
	AllowAdditionalProperties: true,
}

// Schema returns the JSON Schema object describing the arguments struct v.
// Fields without omitempty are required.
func Schema(v any) map[string]any {
	s := reflector.Reflect(v)
	s.Version = ""
	s.ID = ""

	b, err := json.Marshal(s)
	if err != nil {
		panic(err)
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		panic(err)
	}
	return out
}
