package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const cityDetailsPrompt = `You are a travel guide. For the city the user names, answer with plain JSON only
(no markdown fences), in English, shaped as:
{"suggested_visit_time": "x-y days", "activity_suggestions": "what to do, as a list when there is an order", "site_description": "a short introduction of the city"}`

// CityDetails is the generated description of a city.
type CityDetails struct {
	SuggestedVisitTime  string `json:"suggested_visit_time"`
	ActivitySuggestions string `json:"activity_suggestions"`
	SiteDescription     string `json:"site_description"`
}

// DefaultCityDetails is used whenever generation fails.
var DefaultCityDetails = CityDetails{
	SuggestedVisitTime:  "3-5 days",
	ActivitySuggestions: "No suggested activities yet",
	SiteDescription:     "No description yet",
}

// Description joins the parts into the text stored on the city.
func (d CityDetails) Description() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{d.SiteDescription, d.ActivitySuggestions} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if d.SuggestedVisitTime != "" {
		parts = append(parts, "Suggested visit time: "+d.SuggestedVisitTime+".")
	}
	return strings.Join(parts, "\n\n")
}

// ParseCityDetails decodes a model answer. Markdown fences are stripped and
// activity_suggestions may be a string or a list. Missing fields keep their
// defaults.
func ParseCityDetails(answer string) (CityDetails, error) {
	answer = stripFences(answer)

	var raw struct {
		SuggestedVisitTime  string          `json:"suggested_visit_time"`
		ActivitySuggestions json.RawMessage `json:"activity_suggestions"`
		SiteDescription     string          `json:"site_description"`
	}
	if err := json.Unmarshal([]byte(answer), &raw); err != nil {
		return DefaultCityDetails, fmt.Errorf("failed to decode city details: %w", err)
	}

	details := DefaultCityDetails
	if raw.SuggestedVisitTime != "" {
		details.SuggestedVisitTime = raw.SuggestedVisitTime
	}
	if raw.SiteDescription != "" {
		details.SiteDescription = raw.SiteDescription
	}
	if s := flattenSuggestions(raw.ActivitySuggestions); s != "" {
		details.ActivitySuggestions = s
	}
	return details, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func flattenSuggestions(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return strings.TrimSpace(single)
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		for i, item := range list {
			list[i] = fmt.Sprintf("%d. %s", i+1, strings.TrimSpace(item))
		}
		return strings.Join(list, "\n")
	}
	return ""
}

// contentGenerator is the part of *genai.Models used here.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type DetailsGenerator struct {
	logger *zap.Logger
	models contentGenerator
	model  string
}

// NewDetailsGenerator creates a Gemini client for the given API key.
func NewDetailsGenerator(ctx context.Context, apiKey, model string, logger *zap.Logger) (*DetailsGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &DetailsGenerator{logger: logger, models: client.Models, model: model}, nil
}

// CityDetails asks the model about cityName. It never fails: any error is
// logged and DefaultCityDetails returned.
func (g *DetailsGenerator) CityDetails(ctx context.Context, cityName string) CityDetails {
	ctx, span := otel.Tracer("Enrichment").Start(ctx, "CityDetails", trace.WithAttributes(
		attribute.String("city.name", cityName),
		attribute.String("llm.model", g.model),
	))
	defer span.End()

	l := g.logger.With(zap.String("method", "CityDetails"), zap.String("city", cityName))

	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(cityName), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(cityDetailsPrompt, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		Temperature:       genai.Ptr[float32](0.5),
	})
	if err != nil {
		l.Warn("City details generation failed, using defaults", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		return DefaultCityDetails
	}

	details, err := ParseCityDetails(resp.Text())
	if err != nil {
		l.Warn("Unusable city details answer, using defaults", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse failed")
		return DefaultCityDetails
	}
	return details
}
