package llm

import (
	"encoding/json"
	"testing"
)

func TestExtractUsageStandardWins(t *testing.T) {
	in, out := ExtractUsage(&Usage{InputTokens: 100, OutputTokens: 20}, json.RawMessage(`{"usage":{"prompt_tokens":999}}`))
	if in != 100 || out != 20 {
		t.Fatalf("got %d/%d", in, out)
	}
}

func TestExtractUsageOpenAIShape(t *testing.T) {
	raw := json.RawMessage(`{"usage":{"prompt_tokens":50,"completion_tokens":7}}`)
	in, out := ExtractUsage(nil, raw)
	if in != 50 || out != 7 {
		t.Fatalf("got %d/%d", in, out)
	}
}

func TestExtractUsageAnthropicShape(t *testing.T) {
	raw := json.RawMessage(`{"usage":{"input_tokens":12,"output_tokens":3}}`)
	in, out := ExtractUsage(nil, raw)
	if in != 12 || out != 3 {
		t.Fatalf("got %d/%d", in, out)
	}
}

func TestExtractUsageTokenUsageAlias(t *testing.T) {
	raw := json.RawMessage(`{"token_usage":{"prompt_tokens":5,"completion_tokens":2}}`)
	in, out := ExtractUsage(nil, raw)
	if in != 5 || out != 2 {
		t.Fatalf("got %d/%d", in, out)
	}
}

func TestExtractUsageEmpty(t *testing.T) {
	in, out := ExtractUsage(nil, nil)
	if in != 0 || out != 0 {
		t.Fatalf("got %d/%d", in, out)
	}
}
