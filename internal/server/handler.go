// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes the evidence search service over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/evidencemed/evidence-gateway/internal/evidence"
	"github.com/evidencemed/evidence-gateway/internal/pubmed"
	"github.com/evidencemed/evidence-gateway/pkg/types"
)

// Searcher is the service surface the HTTP layer needs.
type Searcher interface {
	Search(ctx context.Context, req types.SearchRequest) (*types.SearchResponse, error)
}

type SearchHandler struct {
	svc Searcher
	log *zap.SugaredLogger
}

func NewSearchHandler(svc Searcher, log *zap.SugaredLogger) *SearchHandler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &SearchHandler{svc: svc, log: log}
}

func (h *SearchHandler) Search(c *gin.Context) {
	var req types.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	resp, err := h.svc.Search(c.Request.Context(), req)
	if err != nil {
		h.respondSearchError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *SearchHandler) respondSearchError(c *gin.Context, err error) {
	if errors.Is(err, evidence.ErrInvalidRequest) {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	var ue *pubmed.UpstreamError
	if errors.As(err, &ue) {
		h.log.Errorw("upstream failure",
			"request_id", c.GetString("request_id"),
			"phase", ue.Phase, "status", ue.StatusCode, "error", ue)
		c.JSON(http.StatusBadGateway, gin.H{"error": ue.Error(), "phase": ue.Phase})
		return
	}
	h.log.Errorw("search failed", "request_id", c.GetString("request_id"), "error", err)
	respondError(c, http.StatusInternalServerError, err)
}

func respondError(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}

func healthz(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}
