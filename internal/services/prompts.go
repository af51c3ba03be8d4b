package services

import (
	"encoding/json"
	"fmt"

	"tarot-api/internal/cards"
	"tarot-api/internal/llm"
)

func parseReading(raw string) (map[string]interface{}, bool) {
	return llm.ParseJSONSafely(raw)
}

func encodeForPrompt(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func buildFreePrompt(req ReadingRequest, drawn []cards.DrawnCard) string {
	return fmt.Sprintf(`You are a professional tarot reader. Style: %s. Topic: %s.
Your output must be strict JSON with no surrounding text, markdown or code fences.

Rules:
- No absolute predictions; use "tendency", "possibility", "suggestion".
- Do not invent details beyond the cards (no specific people, amounts or dates).
- No concrete medical, legal or investment instructions; add a safety note if the question touches those.

Required fields:
- one_line: a single short sentence
- overall: array of 2 sentences
- card_readings: array of 3 items, each with position/card/orientation/impact (impact is 1 sentence)
- advice: array of 1 concrete, actionable item
- caution: array of 1 item

Question: %s
Follow-ups: %s
Cards: %s`,
		req.Tone, req.Topic, req.Question,
		encodeForPrompt(req.Followups), encodeForPrompt(drawn))
}

func buildDeepPrompt(req ReadingRequest, drawn []cards.DrawnCard) string {
	return fmt.Sprintf(`You are a professional tarot reader. Style: %s. Topic: %s.
You must give a specific, actionable, verifiable reading for the user's concrete question.
Your output must be strict JSON with no surrounding text, markdown or code fences.

Required fields:
- one_line: a single short sentence addressing the question
- keywords_used: array of 3-6 keywords
- user_context: 1-2 sentences restating the situation (cite the follow-up answers)
- overall: array of 2 sentences
- card_readings: array of 3 items, each with position/card/orientation/impact/signal/action
- advice: array of 3 items
- signals_to_watch: array of 3 items
- if_then_plan: array of 2 items, each phrased "if ... then ..."
- plan_7_days: array of 7 items
- caution: array of 1-2 items

Rules:
- No absolute predictions; do not invent details; no concrete medical, legal or investment instructions.
- Field values must not contain extra framing text.

Question: %s
Follow-ups: %s
Cards (with base meanings): %s`,
		req.Tone, req.Topic, req.Question,
		encodeForPrompt(req.Followups), encodeForPrompt(drawn))
}
