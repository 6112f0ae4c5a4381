package tagschema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/cuemby/dwn/pkg/types"
)

// allowedTypes is the type subset spec.md §4.8 permits for a tag property.
var allowedTypes = map[string]bool{
	"string": true, "number": true, "integer": true, "boolean": true, "array": true,
}

// allowedArrayItemTypes is the subset §4.8 permits for `items.type` —
// boolean arrays are rejected even though boolean is a valid scalar type.
var allowedArrayItemTypes = map[string]bool{
	"string": true, "number": true, "integer": true,
}

var supportedKeywords = map[string]bool{
	"type": true, "enum": true, "minimum": true, "maximum": true,
	"exclusiveMinimum": true, "exclusiveMaximum": true,
	"minLength": true, "maxLength": true,
	"minItems": true, "maxItems": true, "uniqueItems": true,
	"contains": true, "items": true,
}

// ValidateFragment rejects a protocol's $tags fragment if it uses an
// unsupported type or keyword — checked once at Protocols/Configure time so
// a malformed protocol fails fast instead of at first record write.
func ValidateFragment(fragment map[string]any) error {
	for name, raw := range properties(fragment) {
		def, ok := raw.(map[string]any)
		if !ok {
			return types.NewError(types.KindAuthorization, fmt.Sprintf("%s: %s", types.TokenProtocolAuthorizationInvalidType, name))
		}
		if err := validatePropertyDef(name, def); err != nil {
			return err
		}
	}
	return nil
}

func validatePropertyDef(name string, def map[string]any) error {
	for keyword := range def {
		if !supportedKeywords[keyword] {
			return types.NewError(types.KindAuthorization, fmt.Sprintf("%s: %s uses unsupported keyword %q", types.TokenProtocolAuthorizationInvalidType, name, keyword))
		}
	}
	t, _ := def["type"].(string)
	if t != "" && !allowedTypes[t] {
		return types.NewError(types.KindAuthorization, fmt.Sprintf("%s: %s has unsupported type %q", types.TokenProtocolAuthorizationInvalidType, name, t))
	}
	if t == "array" {
		items, _ := def["items"].(map[string]any)
		itemType, _ := items["type"].(string)
		if !allowedArrayItemTypes[itemType] {
			return types.NewError(types.KindAuthorization, fmt.Sprintf("%s: %s array items have unsupported type %q", types.TokenProtocolAuthorizationInvalidType, name, itemType))
		}
	}
	return nil
}

// properties returns the property-definition entries of a fragment, i.e.
// every key other than the two DWN-specific conveniences.
func properties(fragment map[string]any) map[string]any {
	out := map[string]any{}
	for k, v := range fragment {
		if k == "requiredTags" || k == "allowUndefinedTags" {
			continue
		}
		out[k] = v
	}
	return out
}

// BuildDocument translates a $tags fragment into a standard JSON-Schema
// object document, expanding requiredTags/allowUndefinedTags into
// required/additionalProperties.
func BuildDocument(fragment map[string]any) map[string]any {
	allowUndefined, _ := fragment["allowUndefinedTags"].(bool)
	doc := map[string]any{
		"type":                 "object",
		"properties":           properties(fragment),
		"additionalProperties": allowUndefined,
	}
	if required, ok := fragment["requiredTags"].([]any); ok {
		doc["required"] = required
	}
	return doc
}

// Validate checks tags against a protocol's $tags fragment, scoped at path
// (e.g. "<protocol>/<protocolPath>") for the error message spec.md §4.8
// requires.
func Validate(fragment map[string]any, tags map[string]any, path string) error {
	doc := BuildDocument(fragment)
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("tagschema: encode schema: %w", err)
	}
	url := "mem://" + path + "/$tags"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("tagschema: add schema resource: %w", err)
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return types.Wrap(types.KindAuthorization, types.TokenProtocolAuthorizationTagsInvalidSchema, err)
	}
	tagsJSON, err := roundTripJSON(tags)
	if err != nil {
		return fmt.Errorf("tagschema: encode tags: %w", err)
	}
	if err := schema.Validate(tagsJSON); err != nil {
		return types.Wrap(types.KindAuthorization, fmt.Sprintf("%s/$tags: %v", path, err), err)
	}
	return nil
}

func roundTripJSON(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
