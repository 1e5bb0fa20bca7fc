package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ZanzyTHEbar/workpulse/internal/analytics"
	"github.com/ZanzyTHEbar/workpulse/internal/auth"
	"github.com/ZanzyTHEbar/workpulse/internal/datastore"
	apperrors "github.com/ZanzyTHEbar/workpulse/internal/errors"
	"github.com/ZanzyTHEbar/workpulse/internal/monitoring"
	"github.com/ZanzyTHEbar/workpulse/internal/types"
)

// Handler serves the dashboard endpoints for the authenticated principal.
type Handler struct {
	svc    *analytics.Service
	dir    datastore.Directory
	roles  datastore.RoleWriter
	logger *monitoring.Logger
}

// RoleUpdate is the /role request body.
type RoleUpdate struct {
	Role string `json:"role" binding:"required,max=64"`
}

// UserInfo is the /user-info body.
type UserInfo struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	Team     string `json:"team,omitempty"`
}

func (h *Handler) principal(c *gin.Context) (types.Principal, bool) {
	p, ok := auth.PrincipalFrom(c)
	if !ok {
		_ = c.Error(apperrors.NewUnauthorizedError("No authenticated user"))
	}
	return p, ok
}

// TasksInfo godoc
// @Summary      Personal task counts and progress
// @Tags         dashboard
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  analytics.PersonalStats
// @Failure      401  {object}  apperrors.ErrorResponse
// @Failure      500  {object}  apperrors.ErrorResponse
// @Router       /tasks-info [get]
func (h *Handler) TasksInfo(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	stats, err := h.svc.PersonalStats(c.Request.Context(), p)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Leaderboard godoc
// @Summary      Ranked leaderboard with the caller's position
// @Tags         dashboard
// @Produce      json
// @Security     BearerAuth
// @Param        data  query  string  false  "Window: today, week, this_month, all_time"  default(today)
// @Param        type  query  string  false  "Scope: individual, team"  default(individual)
// @Success      200  {object}  analytics.LeaderboardPayload
// @Failure      400  {object}  apperrors.ErrorResponse
// @Failure      500  {object}  apperrors.ErrorResponse
// @Router       /leaderboard [get]
func (h *Handler) Leaderboard(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	payload, err := h.svc.Leaderboard(c.Request.Context(), c.DefaultQuery("data", "today"), c.DefaultQuery("type", "individual"), p)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", payload)
}

// UserGraph godoc
// @Summary      The caller's bucketed history
// @Tags         dashboard
// @Produce      json
// @Security     BearerAuth
// @Param        data  query  string  false  "Mode: week, 30days, all_time"  default(week)
// @Success      200  {object}  analytics.GraphPayload
// @Failure      400  {object}  apperrors.ErrorResponse
// @Failure      500  {object}  apperrors.ErrorResponse
// @Router       /user-graph [get]
func (h *Handler) UserGraph(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	graph, err := h.svc.Graph(c.Request.Context(), c.DefaultQuery("data", "week"), p)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, graph)
}

// EmailsRemaining godoc
// @Summary      Shared daily target and what is left of it
// @Tags         dashboard
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  analytics.Counter
// @Failure      500  {object}  apperrors.ErrorResponse
// @Router       /emails-remaining [get]
func (h *Handler) EmailsRemaining(c *gin.Context) {
	counter, err := h.svc.GlobalCounter(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, counter)
}

// UserInfo godoc
// @Summary      The caller's profile
// @Tags         dashboard
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  UserInfo
// @Failure      404  {object}  apperrors.ErrorResponse
// @Router       /user-info [get]
func (h *Handler) UserInfo(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	profile, err := h.dir.Profile(c.Request.Context(), p.ID)
	if errors.Is(err, datastore.ErrNotFound) {
		_ = c.Error(apperrors.NewNotFoundError("user"))
		return
	}
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, UserInfo{Username: profile.Name, Role: profile.Role, Team: profile.Team})
}

// UpdateRole godoc
// @Summary      Change the caller's role
// @Tags         dashboard
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      RoleUpdate  true  "New role"
// @Success      200   {object}  map[string]string
// @Failure      400   {object}  apperrors.ErrorResponse
// @Failure      404   {object}  apperrors.ErrorResponse
// @Router       /role [post]
func (h *Handler) UpdateRole(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	var req RoleUpdate
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Role) == "" {
		_ = c.Error(apperrors.NewValidationError("role must be a non-empty string of at most 64 characters"))
		return
	}
	err := h.roles.SetRole(c.Request.Context(), p.ID, strings.TrimSpace(req.Role))
	if errors.Is(err, datastore.ErrNotFound) {
		_ = c.Error(apperrors.NewNotFoundError("user"))
		return
	}
	if err != nil {
		_ = c.Error(err)
		return
	}
	h.logger.Info("Role updated", "user_id", p.ID)
	c.JSON(http.StatusOK, gin.H{"message": "role updated"})
}
