package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/caseflow/internal/application/port"
	"github.com/garyjia/caseflow/internal/application/service"
	"github.com/garyjia/caseflow/internal/application/workflow"
	"github.com/garyjia/caseflow/internal/domain/entity"
	domainwf "github.com/garyjia/caseflow/internal/domain/workflow"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	engine workflow.WorkflowEngine
	cases  service.CaseService
	health HealthFunc
	logger Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(engine workflow.WorkflowEngine, cases service.CaseService, health HealthFunc, logger Logger) *Handlers {
	return &Handlers{
		engine: engine,
		cases:  cases,
		health: health,
		logger: logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
	Reason  string      `json:"reason,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string      `json:"status"`
	Timestamp  string      `json:"timestamp"`
	Components interface{} `json:"components,omitempty"`
}

// TransitionRequest is the optional body of a transition call
type TransitionRequest struct {
	WorkerID string `json:"worker_id"`
	Details  string `json:"details"`
}

// TransitionResponse reports the case after a transition and what was recorded
type TransitionResponse struct {
	Case         *entity.Case                `json:"case"`
	Audit        *entity.CaseLog             `json:"audit"`
	Notification *entity.NotificationRequest `json:"notification,omitempty"`
}

// ListCasesRequest represents query parameters for listing cases
type ListCasesRequest struct {
	Status     string `form:"status"`
	AssigneeID string `form:"assignee"`
	CreatorID  string `form:"creator"`
	Limit      int    `form:"limit"`
	Offset     int    `form:"offset"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	status := http.StatusOK

	if h.health != nil {
		healthy, details := h.health()
		resp.Components = details
		if !healthy {
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
		}
	}

	c.JSON(status, Response{Success: status == http.StatusOK, Data: resp})
}

// CreateCase handles POST /api/v1/cases
func (h *Handlers) CreateCase(c *gin.Context) {
	var req service.CreateCaseInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	created, err := h.cases.CreateCase(c.Request.Context(), callerID(c), req)
	if err != nil {
		h.fail(c, "Failed to create case", err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: created})
}

// ListCases handles GET /api/v1/cases
func (h *Handlers) ListCases(c *gin.Context) {
	var req ListCasesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.badRequest(c, "invalid query parameters", err)
		return
	}

	if req.Limit <= 0 || req.Limit > 200 {
		req.Limit = service.DefaultListLimit
	}

	cases, err := h.cases.ListCases(c.Request.Context(), port.CaseFilter{
		Status:     domainwf.State(req.Status),
		AssigneeID: req.AssigneeID,
		CreatorID:  req.CreatorID,
		Limit:      req.Limit,
		Offset:     req.Offset,
	})
	if err != nil {
		h.fail(c, "Failed to list cases", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: cases})
}

// GetCase handles GET /api/v1/cases/:id
func (h *Handlers) GetCase(c *gin.Context) {
	found, err := h.cases.GetCase(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "Failed to get case", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: found})
}

// History handles GET /api/v1/cases/:id/history
func (h *Handlers) History(c *gin.Context) {
	logs, err := h.cases.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "Failed to get case history", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: logs})
}

// Workload handles GET /api/v1/workers/:id/workload
func (h *Handlers) Workload(c *gin.Context) {
	summary, err := h.cases.Workload(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "Failed to get workload", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: summary})
}

// Transition returns the handler for POST /api/v1/cases/:id/<action>.
// The body is optional; worker_id is read only for assign and reassign.
func (h *Handlers) Transition(trigger domainwf.Trigger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req TransitionRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				h.badRequest(c, "invalid request body", err)
				return
			}
		}

		target := ""
		if trigger.TakesTarget() {
			target = req.WorkerID
		}

		var opts []workflow.CommandOption
		if req.Details != "" {
			opts = append(opts, workflow.WithDetails(req.Details))
		}

		cmd := workflow.NewCommand(trigger, c.Param("id"), callerID(c), target, opts...)
		result, err := h.engine.Execute(c.Request.Context(), cmd)
		if err != nil {
			h.fail(c, "Case transition failed", err)
			return
		}

		c.JSON(http.StatusOK, Response{
			Success: true,
			Data: TransitionResponse{
				Case:         result.Case,
				Audit:        result.Audit,
				Notification: result.Notification,
			},
		})
	}
}

func (h *Handlers) badRequest(c *gin.Context, msg string, err error) {
	h.logger.Error(msg, "path", c.Request.URL.Path, "error", err)
	c.JSON(http.StatusBadRequest, Response{
		Success: false,
		Error:   msg,
		Code:    CodeInvalidInput,
	})
}

// fail writes the mapped error response. Server-side failures are logged;
// domain denials are expected outcomes and are not.
func (h *Handlers) fail(c *gin.Context, msg string, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, "path", c.Request.URL.Path, "error", err)
	}

	c.JSON(status, Response{
		Success: false,
		Error:   err.Error(),
		Code:    code,
		Reason:  guardReason(err),
	})
}
