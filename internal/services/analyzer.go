package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aksharma/outfit-fitcheck/internal/models"
)

const (
	defaultVisionModel = "allenai/molmo-2-8b:free"
	defaultTextModel   = "allenai/molmo-2-8b:free"

	visionMaxTokens     = 400
	refinementMaxTokens = 600
)

const visionPrompt = `Describe ONLY what is visible in the image.

Rules:
- Clothing items only
- No opinions or styling advice
- No guessing
- Use short factual sentences
- Mention color, garment type, and fit if clearly visible
- Mention loose or fitted only if obvious
- If an item is not visible, say "not_detected"

You may respond in free text or JSON.`

const refinementPrompt = `You are a STRICT JSON formatting engine.

Input may be free text or partial JSON describing visible clothing, possibly
with an occasion the outfit is intended for.

Rules:
- Output ONLY valid JSON
- No explanations or extra text
- No speculation
- Do NOT evaluate items marked "not_detected"
- item_flags values MUST be "visible" or "not_detected"
- Each list item must be a short factual sentence
- Enforce counts exactly
- score is an integer from 0 to 10

FINAL SCHEMA (MUST MATCH):

{
  "overall_vibe": {
    "summary": "",
    "category": ""
  },
  "what_works": ["", "", ""],
  "what_needs_work": ["", ""],
  "suggestions": ["", ""],
  "item_flags": {
    "dress": "",
    "top": "",
    "bottom": "",
    "shoes": "",
    "bag": "",
    "accessories": ""
  },
  "score": 0
}`

// ChatClient is the slice of the OpenRouter client the analyzer needs.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req ChatRequest) (*Completion, error)
}

// ParseError reports that the refinement pass did not yield valid structured
// feedback. Raw carries the model text for fallback display.
type ParseError struct {
	Raw string
}

func (e *ParseError) Error() string {
	return "could not produce structured feedback"
}

// FitCheckAnalyzer turns one uploaded outfit image into one structured
// feedback record via two chained model calls: a vision pass producing a
// free-text description, then a refinement pass producing strict JSON.
type FitCheckAnalyzer struct {
	client      ChatClient
	visionModel string
	textModel   string
}

func NewFitCheckAnalyzer(client ChatClient, visionModel, textModel string) *FitCheckAnalyzer {
	if visionModel == "" {
		visionModel = defaultVisionModel
	}
	if textModel == "" {
		textModel = defaultTextModel
	}
	return &FitCheckAnalyzer{
		client:      client,
		visionModel: visionModel,
		textModel:   textModel,
	}
}

// AnalyzeInput is one fitcheck request: the image bytes plus optional
// user-supplied occasion context.
type AnalyzeInput struct {
	Image    []byte
	Occasion string
}

// AnalyzeOutput carries the typed intermediate description alongside the
// final result. On a refinement failure the partial output (description, raw
// text, token count) is still returned with the error so callers can keep it.
type AnalyzeOutput struct {
	Description string
	Result      *models.FitCheckResult
	RawOutput   string
	TokensUsed  int
}

// Analyze runs the full two-stage pipeline for a single image.
func (a *FitCheckAnalyzer) Analyze(ctx context.Context, in AnalyzeInput) (*AnalyzeOutput, error) {
	contentType, err := ValidateImage(in.Image)
	if err != nil {
		return nil, err
	}

	description, visionTokens, err := a.Describe(ctx, in.Image, contentType)
	if err != nil {
		return nil, fmt.Errorf("vision pass: %w", err)
	}

	out := &AnalyzeOutput{
		Description: description,
		TokensUsed:  visionTokens,
	}

	result, raw, refineTokens, err := a.Structure(ctx, description, in.Occasion)
	out.RawOutput = raw
	out.TokensUsed += refineTokens
	if err != nil {
		return out, err
	}

	out.Result = result
	return out, nil
}

// Describe is the vision pass: image in, free-text outfit description out.
func (a *FitCheckAnalyzer) Describe(ctx context.Context, image []byte, contentType string) (string, int, error) {
	dataURI := "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(image)

	req := ChatRequest{
		Model:       a.visionModel,
		Temperature: 0,
		MaxTokens:   visionMaxTokens,
		Messages: []ChatMessage{
			TextMessage("system", visionPrompt),
			ImageMessage("user", "Describe the visible outfit.", dataURI),
		},
	}

	comp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", 0, err
	}

	return comp.Content, comp.TokensUsed, nil
}

// Structure is the refinement pass: description in, validated and sanitized
// feedback record out. The raw model text is returned in all cases.
func (a *FitCheckAnalyzer) Structure(ctx context.Context, description, occasion string) (*models.FitCheckResult, string, int, error) {
	// If the vision pass already produced JSON, forward that instead of prose
	input := description
	if extracted, ok := extractJSON(description); ok {
		input = extracted
	}
	if occasion != "" {
		input = "Occasion: " + occasion + "\n\n" + input
	}

	req := ChatRequest{
		Model:       a.textModel,
		Temperature: 0,
		MaxTokens:   refinementMaxTokens,
		Messages: []ChatMessage{
			TextMessage("system", refinementPrompt),
			TextMessage("user", input),
		},
	}

	comp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, "", 0, fmt.Errorf("refinement pass: %w", err)
	}

	raw := comp.Content

	extracted, ok := extractJSON(raw)
	if !ok {
		return nil, raw, comp.TokensUsed, &ParseError{Raw: raw}
	}

	var result models.FitCheckResult
	if err := json.Unmarshal([]byte(extracted), &result); err != nil {
		return nil, raw, comp.TokensUsed, &ParseError{Raw: raw}
	}
	if result.OverallVibe.Summary == "" {
		return nil, raw, comp.TokensUsed, &ParseError{Raw: raw}
	}

	sanitizeResult(&result)

	return &result, raw, comp.TokensUsed, nil
}

// extractJSON pulls the outermost JSON object out of model text, tolerating
// prose before or after it.
func extractJSON(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return "", false
	}
	candidate := text[start : end+1]
	if !json.Valid([]byte(candidate)) {
		return "", false
	}
	return candidate, true
}

var itemFlagKeys = []string{"dress", "top", "bottom", "shoes", "bag", "accessories"}

const (
	flagVisible     = "visible"
	flagNotDetected = "not_detected"
)

// sanitizeResult applies the final hard guardrails: normalize flags to the
// two-value vocabulary, drop feedback about items the vision pass did not
// see, drop non-sentences, enforce list counts, clamp the score.
func sanitizeResult(result *models.FitCheckResult) {
	if result.ItemFlags == nil {
		result.ItemFlags = make(map[string]string, len(itemFlagKeys))
	}

	for key := range result.ItemFlags {
		if !isItemFlagKey(key) {
			delete(result.ItemFlags, key)
		}
	}
	for _, key := range itemFlagKeys {
		if result.ItemFlags[key] != flagVisible {
			result.ItemFlags[key] = flagNotDetected
		}
	}

	for key, status := range result.ItemFlags {
		if status != flagNotDetected {
			continue
		}
		result.WhatWorks = dropMentions(result.WhatWorks, key)
		result.WhatNeedsWork = dropMentions(result.WhatNeedsWork, key)
		result.Suggestions = dropMentions(result.Suggestions, key)
	}

	result.WhatWorks = keepSentences(result.WhatWorks)
	result.WhatNeedsWork = keepSentences(result.WhatNeedsWork)
	result.Suggestions = keepSentences(result.Suggestions)

	result.WhatWorks = clampList(result.WhatWorks, 3, "Visible clothing items form a consistent appearance.")
	result.WhatNeedsWork = clampList(result.WhatNeedsWork, 2, "No clearly visible fit issues are present.")
	result.Suggestions = clampList(result.Suggestions, 2, "No changes are required based on visible elements.")

	if result.Score < 0 {
		result.Score = 0
	}
	if result.Score > 10 {
		result.Score = 10
	}
}

func isItemFlagKey(key string) bool {
	for _, k := range itemFlagKeys {
		if k == key {
			return true
		}
	}
	return false
}

func dropMentions(items []string, word string) []string {
	kept := items[:0]
	for _, s := range items {
		if !strings.Contains(strings.ToLower(s), word) {
			kept = append(kept, s)
		}
	}
	return kept
}

// keepSentences filters out entries too short to be a factual sentence.
func keepSentences(items []string) []string {
	kept := items[:0]
	for _, s := range items {
		if len(strings.Fields(s)) >= 4 {
			kept = append(kept, s)
		}
	}
	return kept
}

func clampList(items []string, count int, filler string) []string {
	if len(items) > count {
		items = items[:count]
	}
	for len(items) < count {
		items = append(items, filler)
	}
	return items
}
