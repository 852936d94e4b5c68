package http

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/internflow/internal/application/service"
	"github.com/garyjia/internflow/internal/domain/entity"
)

// Version is reported by the health endpoint
var Version = "dev"

// HealthChecker reports whether a dependency is usable
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Services bundles the application services the handlers call
type Services struct {
	Definitions service.DefinitionService
	Instances   service.InstanceService
	Approvals   service.ApprovalService
	History     service.HistoryService
}

// Handlers contains all HTTP request handlers
type Handlers struct {
	services Services
	tokens   *TokenService
	health   HealthChecker
	logger   Logger
}

// NewHandlers creates a new Handlers instance. health may be nil.
func NewHandlers(services Services, tokens *TokenService, health HealthChecker, logger Logger) *Handlers {
	return &Handlers{
		services: services,
		tokens:   tokens,
		health:   health,
		logger:   logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Error     string `json:"error,omitempty"`
}

// CreateInstanceRequest is the body of POST /workflows/instances
type CreateInstanceRequest struct {
	WorkflowID   int64  `json:"workflow_id" validate:"required,gt=0"`
	ResourceType string `json:"resource_type" validate:"required,oneof=internship resume"`
	ResourceID   string `json:"resource_id" validate:"required,max=64"`
}

// CreateInstanceResponse reports the instance and whether this call created it
type CreateInstanceResponse struct {
	Instance *entity.WorkflowInstance `json:"instance"`
	Created  bool                     `json:"created"`
}

// DecideRequest is the body of POST /workflows/approvals/:id
type DecideRequest struct {
	Action   string `json:"action"`
	Comments string `json:"comments"`
}

// CommentRequest is the body of PATCH /workflows/approvals/:id
type CommentRequest struct {
	Comments string `json:"comments"`
}

// PageRequest holds pagination query parameters
type PageRequest struct {
	Limit  int `form:"limit"`
	Offset int `form:"offset"`
}

func ok(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Success: true, Data: data})
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   Version,
	}

	status := http.StatusOK
	if h.health != nil {
		if err := h.health.Health(c.Request.Context()); err != nil {
			response.Status = "unhealthy"
			response.Error = err.Error()
			status = http.StatusServiceUnavailable
		}
	}

	c.JSON(status, Response{Success: status == http.StatusOK, Data: response})
}

// ListWorkflows handles GET /workflows
func (h *Handlers) ListWorkflows(c *gin.Context) {
	var resourceType *entity.ResourceType
	if raw := c.Query("resource_type"); raw != "" {
		rt := entity.ResourceType(raw)
		resourceType = &rt
	}

	defs, err := h.services.Definitions.ListWorkflows(c.Request.Context(), actorFrom(c), resourceType)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, defs)
}

// CreateWorkflow handles POST /workflows
func (h *Handlers) CreateWorkflow(c *gin.Context) {
	var req service.CreateWorkflowInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, badRequest("body", "invalid JSON: "+err.Error()))
		return
	}

	def, err := h.services.Definitions.CreateWorkflow(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, def)
}

// GetWorkflow handles GET /workflows/:id
func (h *Handlers) GetWorkflow(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	def, err := h.services.Definitions.GetWorkflow(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, def)
}

// UpdateWorkflow handles PATCH /workflows/:id
func (h *Handlers) UpdateWorkflow(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	var req service.UpdateWorkflowInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, badRequest("body", "invalid JSON: "+err.Error()))
		return
	}

	def, err := h.services.Definitions.UpdateWorkflow(c.Request.Context(), actorFrom(c), id, req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, def)
}

// CreateInstance handles POST /workflows/instances
func (h *Handlers) CreateInstance(c *gin.Context) {
	var req CreateInstanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, badRequest("body", "invalid JSON: "+err.Error()))
		return
	}
	if err := service.Validate(req); err != nil {
		h.writeError(c, err)
		return
	}

	ref, err := entity.ParseResourceRef(req.ResourceType, req.ResourceID)
	if err != nil {
		h.writeError(c, badRequest("resource_id", err.Error()))
		return
	}

	result, err := h.services.Instances.CreateInstance(c.Request.Context(), actorFrom(c), req.WorkflowID, ref)
	if err != nil {
		h.writeError(c, err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	ok(c, status, CreateInstanceResponse{Instance: result.Instance, Created: result.Created})
}

// ListInstances handles GET /workflows/instances
func (h *Handlers) ListInstances(c *gin.Context) {
	var req service.ListInstancesInput
	if err := c.ShouldBindQuery(&req); err != nil {
		h.writeError(c, badRequest("query", "invalid query parameters"))
		return
	}

	instances, err := h.services.Instances.ListInstances(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if instances == nil {
		instances = []*entity.WorkflowInstance{}
	}
	ok(c, http.StatusOK, instances)
}

// GetInstance handles GET /workflows/instances/:id
func (h *Handlers) GetInstance(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	detail, err := h.services.Instances.GetInstanceDetail(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, detail)
}

// UpdateInstance handles PATCH /workflows/instances/:id
func (h *Handlers) UpdateInstance(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	var req service.UpdateInstanceStatusInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, badRequest("body", "invalid JSON: "+err.Error()))
		return
	}

	instance, err := h.services.Instances.UpdateInstanceStatus(c.Request.Context(), actorFrom(c), id, req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, instance)
}

// GetHistory handles GET /workflows/instances/:id/history
func (h *Handlers) GetHistory(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	records, err := h.services.History.GetApprovalHistory(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if records == nil {
		records = []*entity.WorkflowApprovalHistory{}
	}
	ok(c, http.StatusOK, records)
}

// ExportHistory handles GET /workflows/instances/:id/history/export
func (h *Handlers) ExportHistory(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	var buf bytes.Buffer
	name, err := h.services.History.ExportHistory(c.Request.Context(), actorFrom(c), id, &buf)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, h.services.History.ContentType(), buf.Bytes())
}

// ListPendingApprovals handles GET /workflows/approvals
func (h *Handlers) ListPendingApprovals(c *gin.Context) {
	var req PageRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.writeError(c, badRequest("query", "invalid query parameters"))
		return
	}

	approvals, err := h.services.Approvals.ListPendingApprovals(c.Request.Context(), actorFrom(c), req.Limit, req.Offset)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if approvals == nil {
		approvals = []*entity.WorkflowApproval{}
	}
	ok(c, http.StatusOK, approvals)
}

// GetApproval handles GET /workflows/approvals/:id
func (h *Handlers) GetApproval(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	detail, err := h.services.Approvals.GetApproval(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, detail)
}

// DecideApproval handles POST /workflows/approvals/:id
func (h *Handlers) DecideApproval(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	var req DecideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, badRequest("body", "invalid JSON: "+err.Error()))
		return
	}

	result, err := h.services.Approvals.Decide(c.Request.Context(), actorFrom(c), id, strings.ToLower(req.Action), req.Comments)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, result)
}

// CommentApproval handles PATCH /workflows/approvals/:id
func (h *Handlers) CommentApproval(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	var req CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, badRequest("body", "invalid JSON: "+err.Error()))
		return
	}

	record, err := h.services.Approvals.AddComment(c.Request.Context(), actorFrom(c), id, req.Comments)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, record)
}

func pathID(c *gin.Context) (int64, error) {
	raw := c.Param("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("id", fmt.Sprintf("invalid id %q", raw))
	}
	return id, nil
}
