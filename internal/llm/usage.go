package llm

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// ExtractUsage resolves per-chunk token counts, absorbing provider quirks in
// one place so the orchestrator never inspects response metadata shapes.
//
// The standard Usage fields win when present. When both are absent or zero,
// raw response metadata is probed for the field names different providers
// have been observed to use: usage.input_tokens then usage.prompt_tokens for
// input, usage.output_tokens then usage.completion_tokens for output, with
// token_usage accepted as an alias for the usage object.
func ExtractUsage(std *Usage, raw json.RawMessage) (inputTokens, outputTokens int) {
	if std != nil {
		inputTokens = std.InputTokens
		outputTokens = std.OutputTokens
	}
	if inputTokens > 0 || outputTokens > 0 {
		return inputTokens, outputTokens
	}
	if len(raw) == 0 {
		return 0, 0
	}

	body := gjson.ParseBytes(raw)
	usage := body.Get("usage")
	if !usage.Exists() {
		usage = body.Get("token_usage")
	}
	if !usage.Exists() {
		return 0, 0
	}

	inputTokens = firstInt(usage, "input_tokens", "prompt_tokens")
	outputTokens = firstInt(usage, "output_tokens", "completion_tokens")
	return inputTokens, outputTokens
}

func firstInt(v gjson.Result, keys ...string) int {
	for _, key := range keys {
		if field := v.Get(key); field.Exists() && field.Int() > 0 {
			return int(field.Int())
		}
	}
	return 0
}
