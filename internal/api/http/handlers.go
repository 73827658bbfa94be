package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/abilityms/internal/domain/ability"
	"github.com/GriffinCanCode/AgentOS/abilityms/internal/domain/bundle"
	"github.com/GriffinCanCode/AgentOS/abilityms/internal/domain/host"
	"github.com/GriffinCanCode/AgentOS/abilityms/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/abilityms/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/AgentOS/abilityms/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/abilityms/internal/shared/types"
	"github.com/GriffinCanCode/AgentOS/abilityms/internal/shared/utils"
)

// Controller is the serialized lifecycle controller
type Controller interface {
	StartLauncher(ctx context.Context) error
	StartAbility(ctx context.Context, intent *types.Intent) error
	TerminateAbility(ctx context.Context, token uint16) error
	ForceStop(ctx context.Context, name string) error
	ForceStopBundle(ctx context.Context, token uint16) error
	SetCleanAbilityDataFlag(ctx context.Context, clean bool) error
	TopAbility(ctx context.Context) (types.Element, bool, error)
	MissionInfos(ctx context.Context, max int) ([]types.MissionInfo, error)
	Records(ctx context.Context) ([]ability.Snapshot, error)
	Mission(ctx context.Context, mission id.MissionID) ([]ability.Snapshot, error)
	Stats(ctx context.Context) (types.Stats, error)
	SchedulerLifecycleDone(token uint16, kind types.Lifecycle)
}

// TaskLister reports live worker tasks
type TaskLister interface {
	Tasks() []host.TaskInfo
}

// BreakerReporter reports remote device breakers
type BreakerReporter interface {
	BreakerStates() map[string]resilience.State
}

// Handlers contains all HTTP handlers
type Handlers struct {
	ctrl     Controller
	catalog  *bundle.Catalog
	tasks    TaskLister
	breakers BreakerReporter
	logger   *logging.Logger
}

// NewHandlers creates a new handler set. catalog, tasks and breakers may be nil.
func NewHandlers(ctrl Controller, catalog *bundle.Catalog, tasks TaskLister, breakers BreakerReporter, logger *logging.Logger) *Handlers {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handlers{
		ctrl:     ctrl,
		catalog:  catalog,
		tasks:    tasks,
		breakers: breakers,
		logger:   logger,
	}
}

// StartRequest is the body of POST /abilities/start
type StartRequest struct {
	BundleName string `json:"bundle_name" binding:"required"`
	Data       []byte `json:"data"`
	DeviceID   string `json:"device_id"`
	CallerTask uint32 `json:"caller_task"`
}

// ForceStopRequest is the body of POST /abilities/force-stop
type ForceStopRequest struct {
	BundleName string `json:"bundle_name" binding:"required"`
}

// DoneRequest is the body of POST /abilities/:token/done
type DoneRequest struct {
	State string `json:"state" binding:"required"`
}

// CleanDataRequest is the body of POST /abilities/clean-data
type CleanDataRequest struct {
	Enabled bool `json:"enabled"`
}

// Root handles the service banner
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "ability manager",
		"version": "1.0.0",
	})
}

// Health reports controller liveness
func (h *Handlers) Health(c *gin.Context) {
	stats, err := h.ctrl.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":     "healthy",
		"controller": stats,
	})
}

// StartLauncher brings up the home unit
func (h *Handlers) StartLauncher(c *gin.Context) {
	h.respond(c, "start_launcher", h.ctrl.StartLauncher(c.Request.Context()))
}

// StartAbility starts an ability locally or on a remote device
func (h *Handlers) StartAbility(c *gin.Context) {
	var req StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	if err := validateStart(req); err != nil {
		h.badRequest(c, err)
		return
	}

	err := h.ctrl.StartAbility(c.Request.Context(), &types.Intent{
		BundleName: req.BundleName,
		Data:       req.Data,
		DeviceID:   req.DeviceID,
		CallerTask: req.CallerTask,
	})
	h.respond(c, "start_ability", err)
}

// TerminateAbility asks the foreground ability to finish
func (h *Handlers) TerminateAbility(c *gin.Context) {
	token, ok := h.token(c)
	if !ok {
		return
	}
	h.respond(c, "terminate_ability", h.ctrl.TerminateAbility(c.Request.Context(), token))
}

// ForceStopBundle tears down the record owning token
func (h *Handlers) ForceStopBundle(c *gin.Context) {
	token, ok := h.token(c)
	if !ok {
		return
	}
	h.respond(c, "force_stop_bundle", h.ctrl.ForceStopBundle(c.Request.Context(), token))
}

// ForceStop tears down the ability with the given bundle name
func (h *Handlers) ForceStop(c *gin.Context) {
	var req ForceStopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	h.respond(c, "force_stop", h.ctrl.ForceStop(c.Request.Context(), req.BundleName))
}

// LifecycleDone accepts a worker's acknowledgement. Acks are queued, so
// the response only says the ack was accepted.
func (h *Handlers) LifecycleDone(c *gin.Context) {
	token, ok := h.token(c)
	if !ok {
		return
	}
	var req DoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	kind, err := types.ParseLifecycle(req.State)
	if err != nil {
		h.badRequest(c, err)
		return
	}

	h.ctrl.SchedulerLifecycleDone(token, kind)
	c.JSON(http.StatusAccepted, gin.H{"code": ability.CodeOK, "token": token, "state": kind.String()})
}

// SetCleanData toggles clearing of the home payload when it returns to the foreground
func (h *Handlers) SetCleanData(c *gin.Context) {
	var req CleanDataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	h.respond(c, "set_clean_data", h.ctrl.SetCleanAbilityDataFlag(c.Request.Context(), req.Enabled))
}

// TopAbility reports the foreground ability
func (h *Handlers) TopAbility(c *gin.Context) {
	elem, ok, err := h.ctrl.TopAbility(c.Request.Context())
	if err != nil {
		h.fail(c, "top_ability", err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"code": ability.CodeFailed, "error": "no foreground ability"})
		return
	}
	c.JSON(http.StatusOK, elem)
}

// Missions lists mission entries, most recent first
func (h *Handlers) Missions(c *gin.Context) {
	max := 0
	if raw := c.Query("max"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.badRequest(c, errors.New("max must be a non-negative integer"))
			return
		}
		max = n
	}

	infos, err := h.ctrl.MissionInfos(c.Request.Context(), max)
	if err != nil {
		h.fail(c, "missions", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"missions": infos, "count": len(infos)})
}

// Mission lists the records of one mission
func (h *Handlers) Mission(c *gin.Context) {
	mission := c.Param("id")
	if !id.IsValid(mission) {
		h.badRequest(c, errors.New("invalid mission id"))
		return
	}

	records, err := h.ctrl.Mission(c.Request.Context(), id.MissionID(mission))
	if err != nil {
		h.fail(c, "mission", err)
		return
	}
	if len(records) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"code": ability.CodeFailed, "error": "mission not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"mission": mission, "records": records})
}

// Records lists every registry record
func (h *Handlers) Records(c *gin.Context) {
	records, err := h.ctrl.Records(c.Request.Context())
	if err != nil {
		h.fail(c, "records", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records, "count": len(records)})
}

// Bundles lists the catalog
func (h *Handlers) Bundles(c *gin.Context) {
	if h.catalog == nil {
		c.JSON(http.StatusOK, gin.H{"bundles": []bundle.Info{}, "count": 0})
		return
	}
	list := h.catalog.List()
	c.JSON(http.StatusOK, gin.H{"bundles": list, "count": len(list)})
}

// Stats reports controller, host and remote statistics
func (h *Handlers) Stats(c *gin.Context) {
	stats, err := h.ctrl.Stats(c.Request.Context())
	if err != nil {
		h.fail(c, "stats", err)
		return
	}

	resp := gin.H{"controller": stats}
	if h.tasks != nil {
		tasks := h.tasks.Tasks()
		resp["tasks"] = tasks
		resp["task_count"] = len(tasks)
	}
	if h.breakers != nil {
		states := make(map[string]string)
		for device, state := range h.breakers.BreakerStates() {
			states[device] = state.String()
		}
		resp["remote_breakers"] = states
	}
	c.JSON(http.StatusOK, resp)
}

func validateStart(req StartRequest) error {
	if err := utils.ValidateBundleName(req.BundleName); err != nil {
		return err
	}
	if err := utils.ValidateDeviceID(req.DeviceID); err != nil {
		return err
	}
	return utils.ValidatePayload(req.Data)
}

func (h *Handlers) token(c *gin.Context) (uint16, bool) {
	n, err := strconv.ParseUint(c.Param("token"), 10, 16)
	if err != nil {
		h.badRequest(c, errors.New("token must be an integer in [0, 65535]"))
		return 0, false
	}
	return uint16(n), true
}

func (h *Handlers) respond(c *gin.Context, op string, err error) {
	if err != nil {
		h.fail(c, op, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": ability.CodeOK})
}

func (h *Handlers) fail(c *gin.Context, op string, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Warn("Controller request failed", zap.String("op", op), zap.Error(err))
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"code": ability.Code(err), "error": err.Error()})
}

func (h *Handlers) badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"code": ability.CodeParamNull, "error": err.Error()})
}

// StatusFor maps a controller error to an HTTP status
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ability.ErrLoopStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	}

	switch ability.Code(err) {
	case ability.CodeParamNull:
		return http.StatusBadRequest
	case ability.CodeParamCheck:
		return http.StatusForbidden
	case ability.CodeStaleToken:
		return http.StatusConflict
	case ability.CodeCreateTask:
		return http.StatusServiceUnavailable
	case ability.CodeLifecycle:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
