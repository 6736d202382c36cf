package prompts

func SchemaObject(properties map[string]any, required []string) map[string]any {
	if properties == nil {
		properties = map[string]any{}
	}
	return map[string]any{
		"type":                 "object",
		"properties":           properties,
		"required":             required,
		"additionalProperties": false,
	}
}

func ArraySchema(items map[string]any) map[string]any {
	return map[string]any{
		"type":  "array",
		"items": items,
	}
}

func StringSchema() map[string]any {
	return map[string]any{"type": "string"}
}

func StringOrNullSchema() map[string]any {
	return map[string]any{
		"type": []any{"string", "null"},
	}
}

func NumberSchema() map[string]any {
	return map[string]any{"type": "number"}
}

func NumberOrNullSchema() map[string]any {
	return map[string]any{
		"type": []any{"number", "null"},
	}
}

func IntSchema() map[string]any {
	return map[string]any{"type": "integer"}
}

func IntOrNullSchema() map[string]any {
	return map[string]any{
		"type": []any{"integer", "null"},
	}
}

func IntArraySchema() map[string]any {
	return ArraySchema(IntSchema())
}

func EnumSchema(values ...string) map[string]any {
	arr := make([]any, 0, len(values))
	for _, v := range values {
		arr = append(arr, v)
	}
	return map[string]any{"type": "string", "enum": arr}
}
