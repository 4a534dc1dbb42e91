package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/switchyard/internal/access"
	"github.com/zulandar/switchyard/internal/apperr"
	"github.com/zulandar/switchyard/internal/board"
)

// authenticate resolves the bearer token and stores the caller's identity
// on the request context.
func (s *Server) authenticate(c *gin.Context) {
	token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
		return
	}
	id, ok, err := s.resolve(c.Request.Context(), strings.TrimSpace(token))
	if err != nil {
		s.respondError(c, err)
		return
	}
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	c.Request = c.Request.WithContext(access.WithIdentity(c.Request.Context(), id))
	c.Next()
}

func identity(c *gin.Context) access.Identity {
	id, _ := access.FromContext(c.Request.Context())
	return id
}

// member wraps h so it runs only for callers with any role in the :id
// project.
func (s *Server) member(h gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) { s.guard(c, c.Param("id"), false, h) }
}

// manager wraps h so it runs only for admins of the :id project.
func (s *Server) manager(h gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) { s.guard(c, c.Param("id"), true, h) }
}

// cardMember authorizes against the project owning the :id card.
func (s *Server) cardMember(h gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		card, err := board.GetCard(c.Request.Context(), s.db, c.Param("id"))
		if err != nil {
			s.lookupFailed(c, err)
			return
		}
		s.guard(c, card.ProjectID, false, h)
	}
}

// columnManager authorizes against the project owning the :id column.
func (s *Server) columnManager(h gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		col, err := board.GetColumn(c.Request.Context(), s.db, c.Param("id"))
		if err != nil {
			s.lookupFailed(c, err)
			return
		}
		s.guard(c, col.ProjectID, true, h)
	}
}

// lookupFailed answers a card or column lookup that failed before the
// owning project is known. Only global admins, who may see every project,
// are told the id does not exist; other callers get the same 403 as a
// non-member asking about an existing id.
func (s *Server) lookupFailed(c *gin.Context, err error) {
	if errors.Is(err, apperr.ErrNotFound) && !identity(c).IsAdmin() {
		forbidden(c)
		return
	}
	s.respondError(c, err)
}

func forbidden(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
}

func (s *Server) guard(c *gin.Context, projectID string, manage bool, h gin.HandlerFunc) {
	ctx := c.Request.Context()
	userID := identity(c).UserID

	var (
		allowed bool
		err     error
	)
	if manage {
		allowed, err = s.authz.CanManage(ctx, userID, projectID)
	} else {
		_, allowed, err = s.authz.RoleOf(ctx, userID, projectID)
	}
	if err != nil {
		s.respondError(c, err)
		return
	}
	if !allowed {
		forbidden(c)
		return
	}
	h(c)
}
