package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/switchyard/internal/models"
	"github.com/zulandar/switchyard/internal/project"
)

type labelRequest struct {
	Name  string `json:"name" binding:"required"`
	Color string `json:"color" binding:"required"`
}

type priorityRequest struct {
	Name   string `json:"name" binding:"required"`
	Weight int    `json:"weight" binding:"required"`
}

type memberRequest struct {
	Email string      `json:"email" binding:"required,email"`
	Role  models.Role `json:"role"`
}

func (s *Server) handleListLabels(c *gin.Context) {
	labels, err := project.ListLabels(c.Request.Context(), s.db, c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"labels": labels})
}

func (s *Server) handleCreateLabel(c *gin.Context) {
	var req labelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	l, err := project.CreateLabel(c.Request.Context(), s.db, c.Param("id"), req.Name, req.Color, identity(c).UserID, s.now())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"label": l})
}

func (s *Server) handleDeleteLabel(c *gin.Context) {
	if err := project.DeleteLabel(c.Request.Context(), s.db, c.Param("id"), c.Param("labelId"), identity(c).UserID, s.now()); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (s *Server) handleListPriorities(c *gin.Context) {
	prios, err := project.ListPriorities(c.Request.Context(), s.db, c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"priorities": prios})
}

func (s *Server) handleCreatePriority(c *gin.Context) {
	var req priorityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	p, err := project.CreatePriority(c.Request.Context(), s.db, c.Param("id"), req.Name, req.Weight, identity(c).UserID, s.now())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"priority": p})
}

func (s *Server) handleDeletePriority(c *gin.Context) {
	if err := project.DeletePriority(c.Request.Context(), s.db, c.Param("id"), c.Param("priorityId"), identity(c).UserID, s.now()); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (s *Server) handleListMembers(c *gin.Context) {
	members, err := project.ListMembers(c.Request.Context(), s.db, c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": members})
}

func (s *Server) handleAddMember(c *gin.Context) {
	var req memberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Role == "" {
		req.Role = models.RoleMember
	}
	m, err := project.AddMember(c.Request.Context(), s.db, c.Param("id"), req.Email, req.Role, identity(c).UserID, s.now())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"member": m})
}
