package web

import (
	"errors"
	"net/http"

	"document_notifier/internal/app"
	"document_notifier/internal/domain/document"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type saveMappingRequest struct {
	EntityID string `json:"entity_id"`
	To       string `json:"to"`
	CC       string `json:"cc"`
}

type globalCCRequest struct {
	Value string `json:"value"`
}

func kindParam(c *gin.Context) (document.Kind, bool) {
	kind, ok := document.ParseKind(c.Param("kind"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown document kind"})
	}
	return kind, ok
}

func (s *Server) handleListMappings(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	mappings, err := s.admin.ListMappings(c.Request.Context(), kind)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"mappings": mappings})
}

func (s *Server) handleSaveMapping(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	var req saveMappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	view, err := s.admin.SaveMapping(c.Request.Context(), kind, req.EntityID, req.To, req.CC)
	if err != nil {
		if errors.Is(err, app.ErrEntityIDRequired) || errors.Is(err, app.ErrRecipientRequired) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	s.log.WithFields(logrus.Fields{"kind": kind, "entity_id": view.EntityID, "operator": operator(c)}).Info("Contact mapping saved")
	c.JSON(http.StatusOK, view)
}

func (s *Server) handleDeleteMapping(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	id := c.Param("id")
	if err := s.admin.DeleteMapping(c.Request.Context(), kind, id); err != nil {
		if errors.Is(err, app.ErrMappingNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	s.log.WithFields(logrus.Fields{"kind": kind, "entity_id": id, "operator": operator(c)}).Info("Contact mapping deleted")
	c.Status(http.StatusNoContent)
}

func (s *Server) handleGetGlobalCC(c *gin.Context) {
	cfg, err := s.admin.GlobalCC(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (s *Server) handleSetGlobalCC(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	var req globalCCRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	cfg, err := s.admin.SetGlobalCC(c.Request.Context(), kind, req.Value)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (s *Server) handleSearchParties(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	parties, err := s.admin.SearchParties(c.Request.Context(), kind, c.Query("q"))
	if err != nil {
		if errors.Is(err, app.ErrSearchUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"parties": parties})
}
