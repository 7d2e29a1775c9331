package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/trafficsim/backend/internal/application/simulation"
	"github.com/trafficsim/backend/internal/domain/traffic"
	"github.com/trafficsim/backend/internal/interfaces/http/dto"
)

// RunHandler handles simulation run lifecycle endpoints
type RunHandler struct {
	BaseHandler
	service *simulation.Service
}

// NewRunHandler creates a new run handler
func NewRunHandler(service *simulation.Service) *RunHandler {
	return &RunHandler{service: service}
}

// Start godoc
// @Summary      Start a simulation run
// @Description  Validates the run configuration, persists a run record and starts generating sessions
// @Tags         simulation
// @Accept       json
// @Produce      json
// @Param        request body simulation.RunConfigRequest true "Run configuration"
// @Success      201 {object} dto.Response{data=simulation.StartRunResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /simulation/runs [post]
func (h *RunHandler) Start(c *gin.Context) {
	var req simulation.RunConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.StartRun(c.Request.Context(), req)
	if err != nil {
		var cfgErr *traffic.ConfigurationError
		if errors.As(err, &cfgErr) {
			h.UnprocessableEntity(c, dto.ErrCodeValidation, cfgErr.Error())
			return
		}
		h.HandleError(c, err)
		return
	}

	h.Created(c, result)
}

// Get godoc
// @Summary      Get run status
// @Description  Returns the run's state with live statistics while in flight
// @Tags         simulation
// @Produce      json
// @Param        id path string true "Run ID"
// @Success      200 {object} dto.Response{data=simulation.RunStatusResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /simulation/runs/{id} [get]
func (h *RunHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid run ID format")
		return
	}

	status, err := h.service.GetStatus(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, status)
}

// Stop godoc
// @Summary      Stop a run
// @Description  Requests cooperative shutdown; in-flight sessions finish their current step
// @Tags         simulation
// @Produce      json
// @Param        id path string true "Run ID"
// @Success      200 {object} dto.Response{data=simulation.RunStatusResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /simulation/runs/{id}/stop [post]
func (h *RunHandler) Stop(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid run ID format")
		return
	}

	status, err := h.service.StopRun(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, status)
}

// List godoc
// @Summary      List recent runs
// @Description  Returns the most recent runs, newest first
// @Tags         simulation
// @Produce      json
// @Param        limit query int false "Maximum number of runs to return" default(50)
// @Success      200 {object} dto.Response{data=simulation.ListRunsResponse}
// @Router       /simulation/runs [get]
func (h *RunHandler) List(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.BadRequest(c, "Invalid limit parameter")
			return
		}
		limit = parsed
	}

	result, err := h.service.ListRuns(c.Request.Context(), limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// Validate godoc
// @Summary      Validate a run configuration
// @Description  Checks a configuration against the construction invariants without starting a run
// @Tags         simulation
// @Accept       json
// @Produce      json
// @Param        request body simulation.RunConfigRequest true "Run configuration"
// @Success      200 {object} dto.Response{data=simulation.ValidateConfigResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /simulation/runs/validate [post]
func (h *RunHandler) Validate(c *gin.Context) {
	var req simulation.RunConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	h.Success(c, h.service.ValidateConfig(req))
}

// DefaultConfig godoc
// @Summary      Get the default run configuration
// @Tags         simulation
// @Produce      json
// @Success      200 {object} dto.Response{data=simulation.ConfigResponse}
// @Router       /simulation/config/defaults [get]
func (h *RunHandler) DefaultConfig(c *gin.Context) {
	h.Success(c, h.service.DefaultConfig())
}

// DefaultPersonas godoc
// @Summary      Get the built-in persona catalog
// @Tags         simulation
// @Produce      json
// @Success      200 {object} dto.Response{data=[]simulation.PersonaDTO}
// @Router       /simulation/personas/defaults [get]
func (h *RunHandler) DefaultPersonas(c *gin.Context) {
	h.Success(c, h.service.DefaultPersonas())
}
