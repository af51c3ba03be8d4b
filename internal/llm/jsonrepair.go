package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// ParseJSONSafely extracts a JSON object from model output that may be
// wrapped in prose or markdown fences. Tries a direct parse, then the
// first-to-last-brace substring, then a greedy regex match.
func ParseJSONSafely(text string) (map[string]interface{}, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false
	}

	if obj, ok := tryParse(text); ok {
		return obj, true
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start != -1 && end > start {
		if obj, ok := tryParse(text[start : end+1]); ok {
			return obj, true
		}
	}

	if m := jsonObjectPattern.FindString(text); m != "" {
		if obj, ok := tryParse(m); ok {
			return obj, true
		}
	}

	return nil, false
}

func tryParse(text string) (map[string]interface{}, bool) {
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return nil, false
	}
	return obj, true
}

// RepairWithModel asks the model to re-emit malformed output as strict
// JSON. Last resort after ParseJSONSafely gives up.
func (c *Client) RepairWithModel(ctx context.Context, rawText string) (map[string]interface{}, error) {
	prompt := fmt.Sprintf(`You are a JSON repair tool. Rewrite the content below as strict JSON.
Output only the JSON object itself, with no surrounding text, markdown or code fences.

Content:
%s`, rawText)

	fixed, err := c.Complete(ctx, prompt, 0.0)
	if err != nil {
		return nil, err
	}

	obj, ok := ParseJSONSafely(fixed)
	if !ok {
		return nil, fmt.Errorf("model output could not be repaired into JSON")
	}
	return obj, nil
}
