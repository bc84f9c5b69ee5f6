package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/conceptlens/internal/profile"
	"github.com/hrygo/conceptlens/plugin/ai"
	"github.com/hrygo/conceptlens/plugin/ai/concept"
	storetest "github.com/hrygo/conceptlens/store/test"
)

// titleEmbedder embeds the first line of a text, the concept title, using a
// fixed table; unknown titles get [0, 1].
type titleEmbedder struct {
	vectors map[string][]float32
}

func (e *titleEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	title, _, _ := strings.Cut(text, "\n")
	if vector, ok := e.vectors[title]; ok {
		return vector, nil
	}
	return []float32{0, 1}, nil
}

func (e *titleEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i], _ = e.Embed(ctx, text)
	}
	return vectors, nil
}

func (*titleEmbedder) Dimensions() int { return 2 }

func (*titleEmbedder) Model() string { return "title-embedding" }

var ownerSeq atomic.Int32

func newOwner() int32 {
	return 5000 + ownerSeq.Add(1)
}

func newTestAPI(t *testing.T, embedding ai.EmbeddingService) (*echo.Echo, *APIV1Service) {
	t.Helper()
	ts := storetest.NewTestingStore(context.Background(), t)
	service := NewAPIV1Service(&profile.Profile{AnalyzeConcurrency: 2}, ts, embedding)
	e := echo.New()
	e.HTTPErrorHandler = HTTPErrorHandler
	service.RegisterRoutes(e)
	return e, service
}

func call(t *testing.T, e *echo.Echo, method, target string, body any, out any) int {
	t.Helper()
	var reader *strings.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(data))
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if out != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

func createConcept(t *testing.T, e *echo.Echo, ownerID int32, c concept.Concept) concept.Concept {
	t.Helper()
	var created concept.Concept
	status := call(t, e, http.MethodPost, "/api/v1/concepts", ConceptRequest{OwnerID: ownerID, Concept: c}, &created)
	require.Equal(t, http.StatusCreated, status)
	return created
}

func TestConceptAPI_CreateListResolve(t *testing.T) {
	e, _ := newTestAPI(t, nil)
	ownerID := newOwner()
	twoSum := createConcept(t, e, ownerID, concept.Concept{Title: "Two Sum", Category: "LeetCode Problems"})
	assert.NotZero(t, twoSum.ID)

	var list ListConceptsResponse
	status := call(t, e, http.MethodGet, "/api/v1/concepts?owner_id="+itoa(ownerID), nil, &list)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, list.Concepts, 1)
	assert.Equal(t, "Two Sum", list.Concepts[0].Title)

	var resolution concept.Resolution
	status = call(t, e, http.MethodPost, "/api/v1/concepts/resolve",
		ConceptRequest{OwnerID: ownerID, Concept: concept.Concept{Title: "2sum"}}, &resolution)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, resolution.Resolved)
	assert.Equal(t, concept.MatchAlias, resolution.MatchType)
	assert.Equal(t, twoSum.ID, resolution.ExistingConceptID)

	status = call(t, e, http.MethodPost, "/api/v1/concepts/resolve",
		ConceptRequest{OwnerID: ownerID, Concept: concept.Concept{Title: "Graph coloring"}}, &resolution)
	require.Equal(t, http.StatusOK, status, "no match is not an error")
	assert.False(t, resolution.Resolved)
	assert.Equal(t, concept.MatchNone, resolution.MatchType)
}

func TestConceptAPI_Validation(t *testing.T) {
	e, _ := newTestAPI(t, nil)

	tests := []struct {
		name   string
		method string
		target string
		body   any
		status int
		code   string
	}{
		{"missing owner", http.MethodPost, "/api/v1/concepts/resolve", map[string]any{"title": "Two Sum"}, http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"empty title", http.MethodPost, "/api/v1/concepts/resolve", map[string]any{"owner_id": 1, "title": " "}, http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"bad list owner", http.MethodGet, "/api/v1/concepts?owner_id=abc", nil, http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"malformed body", http.MethodPost, "/api/v1/concepts/analyze", "not an object", http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"unknown concept", http.MethodPost, "/api/v1/concepts/link", LinkRequest{OwnerID: 1, ConceptID: 998, RelatedConceptID: 999}, http.StatusNotFound, "NOT_FOUND"},
		{"self link", http.MethodPost, "/api/v1/concepts/link", LinkRequest{OwnerID: 1, ConceptID: 3, RelatedConceptID: 3}, http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"no provider", http.MethodPost, "/api/v1/concepts/relationships", map[string]any{"owner_id": 1, "title": "Two Sum"}, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{"unknown route", http.MethodGet, "/api/v1/unknown", nil, http.StatusNotFound, "NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp errorResponse
			status := call(t, e, tt.method, tt.target, tt.body, &resp)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, resp.Code)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestConceptAPI_RelationshipsAndAnalyze(t *testing.T) {
	embedder := &titleEmbedder{vectors: map[string][]float32{
		"Pair Sum": {1, 0},
	}}
	e, service := newTestAPI(t, embedder)
	ownerID := newOwner()
	twoSum := createConcept(t, e, ownerID, concept.Concept{Title: "Two Sum", Summary: "hash map lookups", Embedding: []float32{0.95, 0.3122499}})
	threeSum := createConcept(t, e, ownerID, concept.Concept{Title: "Three Sum", Embedding: []float32{0.7, 0.7141428}})

	var ranking concept.RankResult
	status := call(t, e, http.MethodPost, "/api/v1/concepts/relationships",
		ConceptRequest{OwnerID: ownerID, Concept: concept.Concept{Title: "Pair Sum"}}, &ranking)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, ranking.Duplicates, 1)
	assert.Equal(t, twoSum.ID, ranking.Duplicates[0].ConceptID)
	assert.Equal(t, 95, ranking.Duplicates[0].Score)
	require.Len(t, ranking.Related, 1)
	assert.Equal(t, threeSum.ID, ranking.Related[0].ConceptID)
	assert.Equal(t, []float32{1, 0}, ranking.Embedding)

	var analysis AnalyzeResponse
	status = call(t, e, http.MethodPost, "/api/v1/concepts/analyze", AnalyzeRequest{
		OwnerID:  ownerID,
		Concepts: []concept.Concept{{Title: "Pair Sum"}, {Title: "three  sum"}},
	}, &analysis)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, analysis.Results, 2)
	assert.Equal(t, concept.MatchSemantic, analysis.Results[0].Resolution.MatchType)
	assert.Equal(t, concept.MatchExact, analysis.Results[1].Resolution.MatchType)
	assert.Equal(t, threeSum.ID, analysis.Results[1].Resolution.ExistingConceptID)
	require.NotNil(t, analysis.Results[1].Ranking)

	snapshot := service.Metrics.Snapshot()
	assert.Equal(t, int64(1), snapshot.Operations["analyze"].ExecutionCount)
	assert.Equal(t, int64(0), snapshot.FallbackTotal)
}

func TestConceptAPI_AnalyzeFallback(t *testing.T) {
	e, service := newTestAPI(t, nil)
	ownerID := newOwner()
	createConcept(t, e, ownerID, concept.Concept{Title: "Two Sum"})

	var analysis AnalyzeResponse
	status := call(t, e, http.MethodPost, "/api/v1/concepts/analyze", AnalyzeRequest{
		OwnerID:  ownerID,
		Concepts: []concept.Concept{{Title: "2 sum"}},
	}, &analysis)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, analysis.Results, 1)
	assert.True(t, analysis.Results[0].Resolution.Resolved)
	assert.Nil(t, analysis.Results[0].Ranking)
	assert.NotEmpty(t, analysis.Results[0].Fallback)
	assert.Equal(t, int64(1), service.Metrics.Snapshot().FallbackTotal)
}

func TestConceptAPI_LinkAndMerge(t *testing.T) {
	e, _ := newTestAPI(t, nil)
	ownerID := newOwner()
	target := createConcept(t, e, ownerID, concept.Concept{Title: "Two Sum", KeyPoints: []string{"hash map"}})
	source := createConcept(t, e, ownerID, concept.Concept{Title: "2sum", KeyPoints: []string{"one pass"}, Summary: "pairs adding to a target"})
	other := createConcept(t, e, ownerID, concept.Concept{Title: "Three Sum"})

	var classification concept.RelationshipClassification
	status := call(t, e, http.MethodPost, "/api/v1/concepts/link",
		LinkRequest{OwnerID: ownerID, ConceptID: source.ID, RelatedConceptID: other.ID}, &classification)
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, classification.Type)
	assert.NotEmpty(t, classification.Reason)

	var merged concept.Concept
	status = call(t, e, http.MethodPost, "/api/v1/concepts/merge",
		MergeRequest{OwnerID: ownerID, SourceID: source.ID, TargetID: target.ID}, &merged)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, target.ID, merged.ID)
	assert.Equal(t, []string{"hash map", "one pass"}, merged.KeyPoints)
	assert.Equal(t, "pairs adding to a target", merged.Summary)

	var list ListConceptsResponse
	call(t, e, http.MethodGet, "/api/v1/concepts?owner_id="+itoa(ownerID), nil, &list)
	assert.Len(t, list.Concepts, 2)
}

func TestConceptAPI_RequestID(t *testing.T) {
	e, _ := newTestAPI(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/concepts?owner_id=1", nil)
	req.Header.Set(echo.HeaderXRequestID, "fixed-id")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fixed-id", rec.Header().Get(echo.HeaderXRequestID))
}

func itoa(v int32) string {
	return strconv.Itoa(int(v))
}
