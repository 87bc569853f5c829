package enrichment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

func TestParseCityDetails(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		want   CityDetails
	}{
		{
			name:   "plain json",
			answer: `{"suggested_visit_time":"2-3 days","activity_suggestions":"Boat on West Lake","site_description":"Lakeside city"}`,
			want:   CityDetails{SuggestedVisitTime: "2-3 days", ActivitySuggestions: "Boat on West Lake", SiteDescription: "Lakeside city"},
		},
		{
			name:   "fenced with list",
			answer: "```json\n{\"suggested_visit_time\":\"1-2 days\",\"activity_suggestions\":[\"Temple\",\"Tea fields\"],\"site_description\":\"Old capital\"}\n```",
			want:   CityDetails{SuggestedVisitTime: "1-2 days", ActivitySuggestions: "1. Temple\n2. Tea fields", SiteDescription: "Old capital"},
		},
		{
			name:   "missing fields keep defaults",
			answer: `{"site_description":"Island"}`,
			want: CityDetails{
				SuggestedVisitTime:  DefaultCityDetails.SuggestedVisitTime,
				ActivitySuggestions: DefaultCityDetails.ActivitySuggestions,
				SiteDescription:     "Island",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCityDetails(tt.answer)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("not json", func(t *testing.T) {
		got, err := ParseCityDetails("sorry, I cannot help")
		assert.Error(t, err)
		assert.Equal(t, DefaultCityDetails, got)
	})
}

func TestDescription(t *testing.T) {
	d := CityDetails{SuggestedVisitTime: "2 days", ActivitySuggestions: "Walk", SiteDescription: "Nice"}
	assert.Equal(t, "Nice\n\nWalk\n\nSuggested visit time: 2 days.", d.Description())
}

type fakeGenerator struct {
	text string
	err  error
}

func (f fakeGenerator) GenerateContent(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: genai.NewContentFromText(f.text, genai.RoleModel),
	}}}, nil
}

func TestDetailsGenerator(t *testing.T) {
	ctx := context.Background()

	g := &DetailsGenerator{logger: zap.NewNop(), model: "test", models: fakeGenerator{
		text: `{"suggested_visit_time":"2 days","activity_suggestions":"Walk","site_description":"Nice"}`,
	}}
	assert.Equal(t, "Nice", g.CityDetails(ctx, "Hangzhou").SiteDescription)

	g.models = fakeGenerator{err: errors.New("quota")}
	assert.Equal(t, DefaultCityDetails, g.CityDetails(ctx, "Hangzhou"))
}

func TestImageSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Hangzhou", r.URL.Query().Get("q"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		fmt.Fprint(w, `<html><body>
			<img class="mimg" src="https://img.example/1.jpg">
			<img class="other" src="https://img.example/skip.jpg">
			<img class="mimg" src="data:image/gif;base64,AAAA">
			<img class="mimg" src="https://img.example/2.jpg">
			<img class="mimg" src="https://img.example/3.jpg">
		</body></html>`)
	}))
	defer srv.Close()

	s := NewImageSearch(srv.URL+"/images/search", zap.NewNop())
	urls, err := s.Search(context.Background(), "Hangzhou", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://img.example/1.jpg", "https://img.example/2.jpg"}, urls)
}

func TestImageSearchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewImageSearch(srv.URL, zap.NewNop()).Search(context.Background(), "Hangzhou", 3)
	assert.Error(t, err)
}
