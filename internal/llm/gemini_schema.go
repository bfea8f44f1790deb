package llm

import "google.golang.org/genai"

// normalizeSchemaForGemini ensures schema meets Gemini's requirements by
// removing unsupported JSON-schema fields.
func normalizeSchemaForGemini(schema map[string]any) map[string]any {
	if schema == nil {
		return schema
	}
	return normalizeGeminiSchemaRecursive(deepCopyMap(schema))
}

func normalizeGeminiSchemaRecursive(schema map[string]any) map[string]any {
	unsupportedFields := []string{
		"$schema",
		"format",
		"exclusiveMinimum",
		"exclusiveMaximum",
		"minimum",
		"maximum",
		"minLength",
		"maxLength",
		"minItems",
		"maxItems",
		"uniqueItems",
		"pattern",
		"default",
		"examples",
		"const",
		"additionalProperties",
		"title",
	}
	for _, field := range unsupportedFields {
		delete(schema, field)
	}

	if props, ok := schema["properties"].(map[string]any); ok {
		for key, val := range props {
			if propSchema, ok := val.(map[string]any); ok {
				props[key] = normalizeGeminiSchemaRecursive(propSchema)
			}
		}
	}

	if items, ok := schema["items"].(map[string]any); ok {
		schema["items"] = normalizeGeminiSchemaRecursive(items)
	}

	for _, key := range []string{"anyOf", "oneOf", "allOf"} {
		if arr, ok := schema[key].([]any); ok {
			for i, item := range arr {
				if itemSchema, ok := item.(map[string]any); ok {
					arr[i] = normalizeGeminiSchemaRecursive(itemSchema)
				}
			}
		}
	}

	return schema
}

func schemaToGenai(schema map[string]any) *genai.Schema {
	if schema == nil {
		return &genai.Schema{Type: genai.TypeString}
	}

	genSchema := &genai.Schema{
		Type:        schemaTypeFromValue(schema),
		Description: stringField(schema, "description"),
		Required:    schemaRequired(schema),
	}

	if props, ok := schema["properties"].(map[string]any); ok {
		genSchema.Properties = make(map[string]*genai.Schema, len(props))
		for name, prop := range props {
			if propMap, ok := prop.(map[string]any); ok {
				genSchema.Properties[name] = schemaToGenai(propMap)
			}
		}
	}

	if items, ok := schema["items"].(map[string]any); ok {
		genSchema.Items = schemaToGenai(items)
	}

	return genSchema
}

func schemaTypeFromValue(schema map[string]any) genai.Type {
	if t, ok := schema["type"].(string); ok {
		switch t {
		case "string":
			return genai.TypeString
		case "integer":
			return genai.TypeInteger
		case "number":
			return genai.TypeNumber
		case "boolean":
			return genai.TypeBoolean
		case "array":
			return genai.TypeArray
		case "object":
			return genai.TypeObject
		}
	}
	return genai.TypeString
}

func stringField(schema map[string]any, key string) string {
	if v, ok := schema[key].(string); ok {
		return v
	}
	return ""
}
