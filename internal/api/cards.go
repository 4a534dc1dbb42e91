package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/switchyard/internal/board"
	"github.com/zulandar/switchyard/internal/models"
	"github.com/zulandar/switchyard/internal/timeline"
)

type createColumnRequest struct {
	Name  string `json:"name" binding:"required"`
	Order *int   `json:"order"`
}

type updateColumnRequest struct {
	Name  *string `json:"name"`
	Order *int    `json:"order"`
}

type createCardRequest struct {
	ColumnID    string   `json:"column_id" binding:"required"`
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description"`
	AssigneeID  *string  `json:"assignee_id"`
	PriorityID  *string  `json:"priority_id"`
	LabelIDs    []string `json:"label_ids"`
}

type updateCardRequest struct {
	Name        *string            `json:"name"`
	Description *string            `json:"description"`
	AssigneeID  *string            `json:"assignee_id"`
	PriorityID  *string            `json:"priority_id"`
	LabelIDs    *[]string          `json:"label_ids"`
	Status      *models.CardStatus `json:"status"`
}

type moveRequest struct {
	ColumnID string `json:"column_id" binding:"required"`
	Order    *int   `json:"order" binding:"required"`
}

func (s *Server) handleListColumns(c *gin.Context) {
	cols, err := board.ListColumns(c.Request.Context(), s.db, c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"columns": cols})
}

func (s *Server) handleCreateColumn(c *gin.Context) {
	var req createColumnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	var col *models.Column
	err := withRetry(ctx, func() (err error) {
		col, err = board.CreateColumn(ctx, s.db, board.CreateColumnOpts{
			ProjectID: c.Param("id"),
			Name:      req.Name,
			Order:     req.Order,
			ActorID:   identity(c).UserID,
			Now:       s.now(),
		})
		return err
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"column": col})
}

func (s *Server) handleUpdateColumn(c *gin.Context) {
	var req updateColumnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	var col *models.Column
	err := withRetry(ctx, func() (err error) {
		col, err = board.UpdateColumn(ctx, s.db, c.Param("id"), board.UpdateColumnOpts{
			Name:    req.Name,
			Order:   req.Order,
			ActorID: identity(c).UserID,
			Now:     s.now(),
		})
		return err
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"column": col})
}

func (s *Server) handleDeleteColumn(c *gin.Context) {
	ctx := c.Request.Context()
	err := withRetry(ctx, func() error {
		return board.DeleteColumn(ctx, s.db, c.Param("id"), identity(c).UserID, s.now())
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (s *Server) handleCreateCard(c *gin.Context) {
	var req createCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	var card *models.Card
	err := withRetry(ctx, func() (err error) {
		card, err = board.CreateCard(ctx, s.db, board.CreateCardOpts{
			ProjectID:   c.Param("id"),
			ColumnID:    req.ColumnID,
			Name:        req.Name,
			Description: req.Description,
			AssigneeID:  req.AssigneeID,
			PriorityID:  req.PriorityID,
			LabelIDs:    req.LabelIDs,
			ActorID:     identity(c).UserID,
			Now:         s.now(),
		})
		return err
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"card": card})
}

func (s *Server) handleGetCard(c *gin.Context) {
	card, err := board.GetCard(c.Request.Context(), s.db, c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"card": card})
}

func (s *Server) handleUpdateCard(c *gin.Context) {
	var req updateCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	var card *models.Card
	err := withRetry(ctx, func() (err error) {
		card, err = board.UpdateCard(ctx, s.db, c.Param("id"), board.UpdateCardOpts{
			Name:        req.Name,
			Description: req.Description,
			AssigneeID:  req.AssigneeID,
			PriorityID:  req.PriorityID,
			LabelIDs:    req.LabelIDs,
			Status:      req.Status,
			ActorID:     identity(c).UserID,
			Now:         s.now(),
		})
		return err
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"card": card})
}

func (s *Server) handleDeleteCard(c *gin.Context) {
	ctx := c.Request.Context()
	err := withRetry(ctx, func() error {
		return board.DeleteCard(ctx, s.db, c.Param("id"), identity(c).UserID, s.now())
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (s *Server) handleMoveCard(c *gin.Context) {
	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	var card *models.Card
	err := withRetry(ctx, func() (err error) {
		card, err = board.MoveCard(ctx, s.db, board.MoveOpts{
			CardID:         c.Param("id"),
			TargetColumnID: req.ColumnID,
			TargetOrder:    *req.Order,
			ActorID:        identity(c).UserID,
			Now:            s.now(),
		})
		return err
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"card": card})
}

func (s *Server) handleTimeline(c *gin.Context) {
	tl, err := timeline.Load(c.Request.Context(), s.db, c.Param("id"), s.now())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tl)
}
