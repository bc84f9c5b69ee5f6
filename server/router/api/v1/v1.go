package v1

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/conceptlens/internal/profile"
	"github.com/hrygo/conceptlens/plugin/ai"
	"github.com/hrygo/conceptlens/plugin/ai/concept"
	apierrors "github.com/hrygo/conceptlens/server/internal/errors"
	"github.com/hrygo/conceptlens/server/internal/observability"
	"github.com/hrygo/conceptlens/server/middleware"
	"github.com/hrygo/conceptlens/store"
)

type APIV1Service struct {
	Profile        *profile.Profile
	Store          *store.Store
	ConceptService *concept.Service
	Metrics        *observability.Metrics

	logger      *slog.Logger
	rateLimiter *middleware.RateLimiter
}

// NewAPIV1Service creates the concept API. embeddingService may be nil, in
// which case relationship ranking answers 503 and analysis falls back to
// identity resolution.
func NewAPIV1Service(profile *profile.Profile, store *store.Store, embeddingService ai.EmbeddingService) *APIV1Service {
	config := concept.DefaultServiceConfig()
	if profile.AnalyzeConcurrency > 0 {
		config.Concurrency = profile.AnalyzeConcurrency
	}
	return &APIV1Service{
		Profile:        profile,
		Store:          store,
		ConceptService: concept.NewServiceWithConfig(store, embeddingService, config),
		Metrics:        observability.NewMetrics(1000),
		logger:         slog.Default(),
		rateLimiter:    middleware.NewRateLimiter(),
	}
}

// RegisterRoutes registers the concept API with the given Echo instance.
func (s *APIV1Service) RegisterRoutes(echoServer *echo.Echo) {
	group := echoServer.Group("/api/v1", middleware.RateLimit(s.rateLimiter, middleware.OwnerOrIP))

	group.POST("/concepts", s.instrument("create_concept", s.CreateConcept))
	group.GET("/concepts", s.instrument("list_concepts", s.ListConcepts))
	group.POST("/concepts/resolve", s.instrument("resolve_identity", s.ResolveIdentity))
	group.POST("/concepts/relationships", s.instrument("rank_relationships", s.RankRelationships))
	group.POST("/concepts/analyze", s.instrument("analyze", s.Analyze))
	group.POST("/concepts/link", s.instrument("link", s.Link))
	group.POST("/concepts/merge", s.instrument("merge", s.Merge))
	group.GET("/metrics", s.GetMetrics)
}

type handlerFunc func(c echo.Context, reqCtx *observability.RequestContext) error

// instrument wraps a handler with a request context, metrics and error mapping.
func (s *APIV1Service) instrument(operation string, fn handlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := c.Request().Header.Get(echo.HeaderXRequestID)
		reqCtx := observability.NewRequestContextWithID(s.logger, requestID, operation, 0)
		c.Response().Header().Set(echo.HeaderXRequestID, reqCtx.RequestID)
		c.SetRequest(c.Request().WithContext(observability.WithRequestContext(c.Request().Context(), reqCtx)))

		s.Metrics.RecordRequest(operation)
		err := fn(c, reqCtx)
		s.Metrics.RecordDuration(operation, reqCtx.Duration())
		if err != nil {
			apiErr := apierrors.FromError(err)
			s.Metrics.RecordFailure(operation)
			reqCtx.Error("request failed", err,
				slog.String(observability.LogFieldErrorCode, string(apiErr.Code)),
				slog.Int64(observability.LogFieldDuration, reqCtx.DurationMs()))
			return apiErr
		}
		reqCtx.Debug("request completed", slog.Int64(observability.LogFieldDuration, reqCtx.DurationMs()))
		return nil
	}
}

// GetMetrics returns the request metrics of this process.
func (s *APIV1Service) GetMetrics(c echo.Context) error {
	return c.JSON(http.StatusOK, s.Metrics.Snapshot())
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HTTPErrorHandler renders every error as {"code", "message"}.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var httpErr *echo.HTTPError
	var apiErr *apierrors.APIError
	if !stderrors.As(err, &apiErr) && stderrors.As(err, &httpErr) {
		code := apierrors.ErrCodeInternal
		switch httpErr.Code {
		case http.StatusNotFound:
			code = apierrors.ErrCodeNotFound
		case http.StatusBadRequest, http.StatusMethodNotAllowed, http.StatusUnsupportedMediaType:
			code = apierrors.ErrCodeInvalidArgument
		case http.StatusTooManyRequests:
			code = apierrors.ErrCodeRateLimitExceeded
		}
		_ = c.JSON(httpErr.Code, errorResponse{Code: string(code), Message: fmt.Sprint(httpErr.Message)})
		return
	}

	apiErr = apierrors.FromError(err)
	message := apiErr.Message
	if apiErr.Cause != nil && apiErr.Code != apierrors.ErrCodeInternal {
		message = fmt.Sprintf("%s: %v", apiErr.Message, apiErr.Cause)
	}
	_ = c.JSON(apiErr.HTTPStatus(), errorResponse{Code: string(apiErr.Code), Message: message})
}
