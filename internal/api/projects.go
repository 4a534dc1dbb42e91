package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/switchyard/internal/audit"
	"github.com/zulandar/switchyard/internal/board"
	"github.com/zulandar/switchyard/internal/lifecycle"
	"github.com/zulandar/switchyard/internal/models"
	"github.com/zulandar/switchyard/internal/project"
)

type createProjectRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type settingsRequest struct {
	Name             *string              `json:"name"`
	Description      *string              `json:"description"`
	CardMovementMode *models.MovementMode `json:"card_movement_mode"`
}

type lifecycleRequest struct {
	Action string `json:"action" binding:"required"`
}

type settingsResponse struct {
	Name             string              `json:"name"`
	Description      string              `json:"description"`
	CardMovementMode models.MovementMode `json:"card_movement_mode"`
}

func (s *Server) handleListProjects(c *gin.Context) {
	id := identity(c)
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	result, err := project.List(c.Request.Context(), s.db, project.ListOpts{
		UserID:  id.UserID,
		IsAdmin: id.IsAdmin(),
		Page:    page,
		Limit:   limit,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleCreateProject(c *gin.Context) {
	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	p, err := project.Create(c.Request.Context(), s.db, project.CreateOpts{
		Name:        req.Name,
		Description: req.Description,
		CreatorID:   identity(c).UserID,
		Now:         s.now(),
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"project": p})
}

func (s *Server) handleGetProject(c *gin.Context) {
	p, err := project.Get(c.Request.Context(), s.db, c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"project": p})
}

func (s *Server) handleDeleteProject(c *gin.Context) {
	ctx := c.Request.Context()
	if err := withRetry(ctx, func() error { return project.Delete(ctx, s.db, c.Param("id")) }); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (s *Server) handleGetSettings(c *gin.Context) {
	p, err := project.Get(c.Request.Context(), s.db, c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, settingsResponse{Name: p.Name, Description: p.Description, CardMovementMode: p.CardMovementMode})
}

func (s *Server) handleUpdateSettings(c *gin.Context) {
	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	var p *models.Project
	err := withRetry(ctx, func() (err error) {
		p, err = project.UpdateSettings(ctx, s.db, c.Param("id"), project.SettingsOpts{
			Name:             req.Name,
			Description:      req.Description,
			CardMovementMode: req.CardMovementMode,
			ActorID:          identity(c).UserID,
			Now:              s.now(),
		})
		return err
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, settingsResponse{Name: p.Name, Description: p.Description, CardMovementMode: p.CardMovementMode})
}

func (s *Server) handleSnapshot(c *gin.Context) {
	snap, err := lifecycle.LiveSnapshot(c.Request.Context(), s.db, c.Param("id"), s.now())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) handleLifecycle(c *gin.Context) {
	var req lifecycleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	action, err := lifecycle.ParseAction(req.Action)
	if err != nil {
		s.respondError(c, err)
		return
	}
	ctx := c.Request.Context()
	var p *models.Project
	err = withRetry(ctx, func() (err error) {
		p, err = lifecycle.Apply(ctx, s.db, c.Param("id"), action, identity(c).UserID, s.now())
		return err
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, lifecycle.ComputeSnapshot(p, s.now()))
}

func (s *Server) handleBoard(c *gin.Context) {
	view, err := board.Board(c.Request.Context(), s.db, c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) handleStats(c *gin.Context) {
	stats, err := board.ProjectStats(c.Request.Context(), s.db, c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) handleAudit(c *gin.Context) {
	afterID, _ := strconv.ParseUint(c.Query("after_id"), 10, 64)
	limit, _ := strconv.Atoi(c.Query("limit"))
	entries, err := audit.List(c.Request.Context(), s.db, audit.Filter{
		ProjectID: c.Param("id"),
		AfterID:   uint(afterID),
		Limit:     limit,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}
