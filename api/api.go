package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"quoteflow/common"
	"quoteflow/srv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const userIdKey = "userId"

// RunServer starts serving in a goroutine. The caller owns shutdown of the
// returned server.
func RunServer(ctrl Controller) (*http.Server, error) {
	gin.SetMode(gin.ReleaseMode)
	router, err := DefineRoutes(ctrl)
	if err != nil {
		return nil, err
	}

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", common.GetServerHost(), common.GetServerPort()),
		Handler: router.Handler(),
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start API server")
		}
	}()

	return server, nil
}

type Controller struct {
	service srv.Service
	// tokens maps bearer tokens to user ids
	tokens   map[string]string
	upgrader websocket.Upgrader
}

func NewController(service srv.Service, config common.ServerConfig) (Controller, error) {
	if err := service.CheckConnection(context.Background()); err != nil {
		return Controller{}, fmt.Errorf("failed to connect to storage: %w", err)
	}
	if len(config.Tokens) == 0 {
		log.Warn().Msg("No API tokens configured, every request will be rejected as unauthenticated")
	}

	return Controller{
		service: service,
		tokens:  config.Tokens,
	}, nil
}

func DefineRoutes(ctrl Controller) (*gin.Engine, error) {
	allowedOrigins, err := GetAllowedOrigins()
	if err != nil {
		return nil, fmt.Errorf("invalid allowed origins: %w", err)
	}
	ctrl.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     CheckWebSocketOrigin(allowedOrigins),
	}

	r := gin.New()
	r.Use(gin.Recovery(), otelgin.Middleware("quoteflow-api"), CORSMiddleware(allowedOrigins))
	r.ForwardedByClientIP = true
	r.SetTrustedProxies(nil)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiRoutes := r.Group("/api/v1", ctrl.AuthMiddleware())

	quoteRoutes := apiRoutes.Group("/quotes")
	quoteRoutes.GET("", ctrl.GetQuotesHandler)
	quoteRoutes.POST("", ctrl.CreateQuoteHandler)
	quoteRoutes.GET("/:quoteId", ctrl.GetQuoteHandler)
	quoteRoutes.GET("/:quoteId/workflow", ctrl.GetQuoteWorkflowHandler)
	quoteRoutes.POST("/:quoteId/workflow", ctrl.CreateQuoteWorkflowHandler)
	quoteRoutes.PATCH("/:quoteId/current-stage", ctrl.UpdateCurrentStageHandler)

	workflowRoutes := apiRoutes.Group("/workflows")
	workflowRoutes.POST("/backfill", ctrl.BackfillWorkflowsHandler)
	workflowRoutes.GET("/:workflowId/steps", ctrl.GetWorkflowStepsHandler)
	workflowRoutes.POST("/:workflowId/steps", ctrl.CreateWorkflowStepHandler)
	workflowRoutes.POST("/:workflowId/steps/reorder", ctrl.ReorderWorkflowStepsHandler)
	workflowRoutes.PATCH("/:workflowId/steps/:stepId", ctrl.UpdateWorkflowStepHandler)
	workflowRoutes.DELETE("/:workflowId/steps/:stepId", ctrl.DeleteWorkflowStepHandler)

	wsRoutes := r.Group("/ws/v1/workflows", ctrl.AuthMiddleware())
	wsRoutes.GET("/:workflowId/step_changes", ctrl.WorkflowStepChangesWebsocketHandler)

	return r, nil
}

// statusForError maps the error taxonomy onto http statuses.
func statusForError(err error) int {
	switch {
	case errors.Is(err, common.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (ctrl *Controller) ErrorHandler(c *gin.Context, status int, err error) {
	event := log.Debug()
	if status >= http.StatusInternalServerError {
		event = log.Error()
	}
	event.Err(err).Str("method", c.Request.Method).Str("path", c.FullPath()).Int("status", status).Msg("Request failed")
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func (ctrl *Controller) handleError(c *gin.Context, err error) {
	ctrl.ErrorHandler(c, statusForError(err), err)
}

func currentUserId(c *gin.Context) string {
	return c.GetString(userIdKey)
}

func parseQuoteId(c *gin.Context) (int64, error) {
	quoteId, err := strconv.ParseInt(c.Param("quoteId"), 10, 64)
	if err != nil || quoteId <= 0 {
		return 0, common.NewValidationError("quoteId", "invalid quote id")
	}
	return quoteId, nil
}
