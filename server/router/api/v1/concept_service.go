package v1

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/conceptlens/plugin/ai/concept"
	apierrors "github.com/hrygo/conceptlens/server/internal/errors"
	"github.com/hrygo/conceptlens/server/internal/observability"
)

type ConceptRequest struct {
	OwnerID int32 `json:"owner_id"`
	concept.Concept
}

type AnalyzeRequest struct {
	OwnerID  int32             `json:"owner_id"`
	Concepts []concept.Concept `json:"concepts"`
}

type AnalyzeResponse struct {
	Results []*concept.Analysis `json:"results"`
}

type ListConceptsResponse struct {
	Concepts []concept.Concept `json:"concepts"`
}

type LinkRequest struct {
	OwnerID          int32 `json:"owner_id"`
	ConceptID        int32 `json:"concept_id"`
	RelatedConceptID int32 `json:"related_concept_id"`
}

type MergeRequest struct {
	OwnerID  int32 `json:"owner_id"`
	SourceID int32 `json:"source_id"`
	TargetID int32 `json:"target_id"`
}

func (s *APIV1Service) CreateConcept(c echo.Context, reqCtx *observability.RequestContext) error {
	var req ConceptRequest
	if err := bindOwned(c, reqCtx, &req, &req.OwnerID); err != nil {
		return err
	}
	created, err := s.ConceptService.CreateConcept(c.Request().Context(), req.OwnerID, req.Concept)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, created)
}

func (s *APIV1Service) ListConcepts(c echo.Context, reqCtx *observability.RequestContext) error {
	ownerID, err := strconv.ParseInt(c.QueryParam("owner_id"), 10, 32)
	if err != nil || ownerID <= 0 {
		return apierrors.InvalidArgument("owner_id must be a positive integer")
	}
	reqCtx.OwnerID = int32(ownerID)

	concepts, err := s.ConceptService.ListConcepts(c.Request().Context(), reqCtx.OwnerID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ListConceptsResponse{Concepts: concepts})
}

func (s *APIV1Service) ResolveIdentity(c echo.Context, reqCtx *observability.RequestContext) error {
	var req ConceptRequest
	if err := bindOwned(c, reqCtx, &req, &req.OwnerID); err != nil {
		return err
	}
	resolution, err := s.ConceptService.ResolveIdentity(c.Request().Context(), req.OwnerID, req.Concept)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resolution)
}

func (s *APIV1Service) RankRelationships(c echo.Context, reqCtx *observability.RequestContext) error {
	var req ConceptRequest
	if err := bindOwned(c, reqCtx, &req, &req.OwnerID); err != nil {
		return err
	}
	result, err := s.ConceptService.RankRelationships(c.Request().Context(), req.OwnerID, req.Concept)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

func (s *APIV1Service) Analyze(c echo.Context, reqCtx *observability.RequestContext) error {
	var req AnalyzeRequest
	if err := bindOwned(c, reqCtx, &req, &req.OwnerID); err != nil {
		return err
	}
	results, err := s.ConceptService.Analyze(c.Request().Context(), req.OwnerID, req.Concepts)
	if err != nil {
		return err
	}
	for _, result := range results {
		if result.Fallback != "" {
			s.Metrics.RecordFallback()
		}
	}
	reqCtx.Info("analyzed concepts", slog.Int(observability.LogFieldConceptCount, len(req.Concepts)))
	return c.JSON(http.StatusOK, AnalyzeResponse{Results: results})
}

func (s *APIV1Service) Link(c echo.Context, reqCtx *observability.RequestContext) error {
	var req LinkRequest
	if err := bindOwned(c, reqCtx, &req, &req.OwnerID); err != nil {
		return err
	}
	classification, err := s.ConceptService.Link(c.Request().Context(), req.OwnerID, req.ConceptID, req.RelatedConceptID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, classification)
}

func (s *APIV1Service) Merge(c echo.Context, reqCtx *observability.RequestContext) error {
	var req MergeRequest
	if err := bindOwned(c, reqCtx, &req, &req.OwnerID); err != nil {
		return err
	}
	merged, err := s.ConceptService.Merge(c.Request().Context(), req.OwnerID, req.SourceID, req.TargetID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, merged)
}

// bindOwned decodes the request body into req and checks its owner id.
func bindOwned(c echo.Context, reqCtx *observability.RequestContext, req any, ownerID *int32) error {
	if err := c.Bind(req); err != nil {
		return apierrors.Wrap(err, apierrors.ErrCodeInvalidArgument, "invalid request body")
	}
	if *ownerID <= 0 {
		return apierrors.InvalidArgument("owner_id must be a positive integer")
	}
	reqCtx.OwnerID = *ownerID
	return nil
}
