package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/halvden/opsgate/internal/intent"
)

// Extractor turns a natural-language query into a structured intent.
type Extractor interface {
	Extract(ctx context.Context, query string) (*intent.Intent, error)
}

// LLM extracts intents with a chat model. Extraction runs at temperature
// zero so the same query yields the same structure.
type LLM struct {
	model model.ChatModel
	// defaultRegions fills in when the extraction names no region.
	defaultRegions []string
}

// NewLLM builds an extractor over the given chat model.
func NewLLM(m model.ChatModel, defaultRegions ...string) *LLM {
	return &LLM{model: m, defaultRegions: defaultRegions}
}

// rawExtraction is the JSON shape the model is prompted to produce.
type rawExtraction struct {
	OperationType  string      `json:"operation_type"`
	Confidence     float64     `json:"confidence"`
	Complexity     string      `json:"complexity"`
	PrimaryService string      `json:"primary_service"`
	ResourceType   string      `json:"resource_type"`
	ActionVerb     string      `json:"action_verb"`
	Regions        []string    `json:"regions"`
	ResourceIDs    []string    `json:"resource_ids"`
	Filters        []rawFilter `json:"filters"`

	OutputPreferences struct {
		Format string `json:"format"`
		SortBy string `json:"sort_by"`
		Limit  int    `json:"limit"`
	} `json:"output_preferences"`

	Ambiguities []string `json:"ambiguities"`
	Assumptions []string `json:"assumptions"`
}

type rawFilter struct {
	FilterType string `json:"filter_type"`
	Key        string `json:"key"`
	Value      string `json:"value"`
	Operator   string `json:"operator"`
}

// Extract sends the query to the model and parses the structured response.
func (e *LLM) Extract(ctx context.Context, query string) (*intent.Intent, error) {
	prompt := fmt.Sprintf(extractionPrompt, query)

	msg, err := e.model.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)},
		model.WithTemperature(0))
	if err != nil {
		return nil, fmt.Errorf("model generate: %w", err)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return nil, fmt.Errorf("empty response from model")
	}

	raw, err := parseResponse(msg.Content)
	if err != nil {
		return nil, err
	}
	return e.buildIntent(query, raw), nil
}

// parseResponse cuts the response down to its outermost JSON object before
// decoding; models occasionally wrap the object in prose or code fences.
func parseResponse(content string) (*rawExtraction, error) {
	text := strings.TrimSpace(content)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON object in model response")
	}

	var raw rawExtraction
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("model returned invalid JSON: %w", err)
	}

	if strings.TrimSpace(raw.OperationType) == "" {
		return nil, fmt.Errorf("extraction is missing operation_type")
	}
	if strings.TrimSpace(raw.PrimaryService) == "" {
		return nil, fmt.Errorf("extraction is missing primary_service")
	}
	return &raw, nil
}

func (e *LLM) buildIntent(query string, raw *rawExtraction) *intent.Intent {
	operation := intent.Operation(strings.ToLower(strings.TrimSpace(raw.OperationType)))
	if !operation.Valid() {
		slog.Warn("invalid operation_type from extraction, defaulting to read", "operation_type", raw.OperationType)
		operation = intent.OperationRead
	}

	filters := make([]intent.Filter, 0, len(raw.Filters))
	for _, f := range raw.Filters {
		filters = append(filters, intent.Filter{
			Type:     f.FilterType,
			Key:      f.Key,
			Value:    f.Value,
			Operator: f.Operator,
		})
	}

	regions := raw.Regions
	if len(regions) == 0 {
		regions = e.defaultRegions
	}

	queryType := intent.QuerySimple
	if raw.Complexity == "moderate" || raw.Complexity == "complex" {
		queryType = intent.QueryComplex
	}

	return &intent.Intent{
		QueryType:      queryType,
		Operation:      operation,
		Confidence:     confidenceLevel(raw.Confidence),
		PrimaryService: strings.ToLower(strings.TrimSpace(raw.PrimaryService)),
		PrimaryResource: intent.Resource{
			Service:      strings.ToLower(strings.TrimSpace(raw.PrimaryService)),
			ResourceType: raw.ResourceType,
			ResourceIDs:  raw.ResourceIDs,
			Filters:      filters,
		},
		Action:          raw.ActionVerb,
		Regions:         regions,
		OutputFormat:    raw.OutputPreferences.Format,
		Limit:           raw.OutputPreferences.Limit,
		Ambiguities:     raw.Ambiguities,
		OriginalQuery:   query,
		NormalizedQuery: strings.ToLower(strings.TrimSpace(query)),
		Timestamp:       time.Now().UTC(),
	}
}

// confidenceLevel buckets the model's numeric confidence score.
func confidenceLevel(score float64) intent.Confidence {
	switch {
	case score >= 0.9:
		return intent.ConfidenceHigh
	case score >= 0.7:
		return intent.ConfidenceMedium
	default:
		return intent.ConfidenceLow
	}
}

// Pipeline wraps an extractor and guarantees a usable intent: extraction
// failures come back as error intents the gate rejects, never as a Go error
// the caller has to special-case.
type Pipeline struct {
	extractor Extractor
}

// NewPipeline builds a pipeline over the given extractor.
func NewPipeline(e Extractor) *Pipeline {
	return &Pipeline{extractor: e}
}

// ExtractIntent runs extraction and falls back to an error intent on failure.
func (p *Pipeline) ExtractIntent(ctx context.Context, query string) *intent.Intent {
	start := time.Now()

	in, err := p.extractor.Extract(ctx, query)
	if err != nil {
		slog.Error("intent extraction failed", "error", err)
		return errorIntent(query, err)
	}

	slog.Info("intent extracted",
		"service", in.PrimaryService,
		"operation", in.Operation,
		"confidence", in.Confidence,
		"duration", time.Since(start))

	if in.Confidence == intent.ConfidenceLow {
		slog.Warn("low confidence extraction", "ambiguities", in.Ambiguities)
	}
	return in
}

// errorIntent is the safe fallback when extraction fails completely.
func errorIntent(query string, err error) *intent.Intent {
	return &intent.Intent{
		QueryType:      intent.QueryError,
		Operation:      intent.OperationRead,
		Confidence:     intent.ConfidenceLow,
		PrimaryService: intent.UnknownService,
		PrimaryResource: intent.Resource{
			Service:      intent.UnknownService,
			ResourceType: intent.UnknownService,
		},
		Ambiguities: []string{"Failed to extract intent: " + err.Error()},
		ClarifyingQuestions: []string{
			"I couldn't understand that query. Could you rephrase it?",
			"Try something like: 'list my EC2 instances' or 'show S3 buckets'",
		},
		OriginalQuery:   query,
		NormalizedQuery: strings.ToLower(strings.TrimSpace(query)),
		Timestamp:       time.Now().UTC(),
	}
}
