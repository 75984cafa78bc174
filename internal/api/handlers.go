package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cmml-outcomes-server/internal/domain"
	"github.com/cmml-outcomes-server/internal/feedback"
)

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   "1.0.0",
	})
}

// handleRefresh re-fetches both outcome documents. Each section loads
// independently, so a partial failure still returns 200 with the
// per-section status.
func (s *Server) handleRefresh(c *gin.Context) {
	result := s.dashboard.Refresh(c.Request.Context())
	c.JSON(http.StatusOK, result)
}

// handleMetadata describes the currently loaded snapshot
func (s *Server) handleMetadata(c *gin.Context) {
	c.JSON(http.StatusOK, s.dashboard.Snapshot())
}

// handleSummary returns the summary table computed from detailed records
func (s *Server) handleSummary(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rows": s.dashboard.SummaryTable()})
}

// handleOutcomes returns the pre-aggregated summarized outcomes view
func (s *Server) handleOutcomes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rows": s.dashboard.SummarizedTable()})
}

// handleAggregates returns raw per-drug aggregates for one metric path
func (s *Server) handleAggregates(c *gin.Context) {
	stats, err := s.dashboard.AggregatesFor(c.Param("metric"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"aggregates": stats})
}

// handleChart returns comparative chart series for one metric path
func (s *Server) handleChart(c *gin.Context) {
	series, err := s.dashboard.ChartFor(c.Param("metric"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"series": series})
}

// handleRecords returns filtered per-paper detail cards
func (s *Server) handleRecords(c *gin.Context) {
	cat, err := domain.ParseCategory(c.Query("category"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sel := domain.ParseDrugSelector(c.Query("drug"))
	c.JSON(http.StatusOK, s.dashboard.Records(sel, cat))
}

// Flag handlers

func (s *Server) flagStore(c *gin.Context) feedback.Store {
	if s.flags == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "flag store is not configured"})
		return nil
	}
	return s.flags
}

// handleSaveFlag records or updates a data-quality flag against a record field
func (s *Server) handleSaveFlag(c *gin.Context) {
	store := s.flagStore(c)
	if store == nil {
		return
	}

	var flag feedback.Flag
	if err := c.ShouldBindJSON(&flag); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid flag payload: " + err.Error()})
		return
	}
	if flag.PMID == "" || flag.Drug == "" || flag.Field == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "pmid, drug and field are required"})
		return
	}

	if err := store.Save(c.Request.Context(), &flag); err != nil {
		s.logger.WithError(err).Error("Failed to save record flag")
		c.JSON(http.StatusInternalServerError, gin.H{"error": domain.ErrStorage})
		return
	}
	c.JSON(http.StatusOK, flag)
}

// handleListFlags lists flags, optionally scoped to one study
func (s *Server) handleListFlags(c *gin.Context) {
	store := s.flagStore(c)
	if store == nil {
		return
	}

	if pmid := c.Query("pmid"); pmid != "" {
		flags, err := store.ListByPMID(c.Request.Context(), pmid)
		if err != nil {
			s.logger.WithError(err).Error("Failed to list record flags")
			c.JSON(http.StatusInternalServerError, gin.H{"error": domain.ErrStorage})
			return
		}
		c.JSON(http.StatusOK, gin.H{"flags": flags})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	flags, err := store.List(c.Request.Context(), limit, offset)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list record flags")
		c.JSON(http.StatusInternalServerError, gin.H{"error": domain.ErrStorage})
		return
	}
	total, err := store.Count(c.Request.Context())
	if err != nil {
		s.logger.WithError(err).Error("Failed to count record flags")
		c.JSON(http.StatusInternalServerError, gin.H{"error": domain.ErrStorage})
		return
	}
	c.JSON(http.StatusOK, gin.H{"flags": flags, "total": total})
}

// handleResolveFlag marks a flag as resolved
func (s *Server) handleResolveFlag(c *gin.Context) {
	store := s.flagStore(c)
	if store == nil {
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid flag id"})
		return
	}
	if err := store.Resolve(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "resolved", "id": id})
}

// handleExportFlags streams all flags as a JSON document
func (s *Server) handleExportFlags(c *gin.Context) {
	store := s.flagStore(c)
	if store == nil {
		return
	}

	c.Header("Content-Type", "application/json")
	c.Header("Content-Disposition", `attachment; filename="record_flags.json"`)
	if err := store.ExportJSON(c.Request.Context(), c.Writer); err != nil {
		s.logger.WithError(err).Error("Failed to export record flags")
		c.Status(http.StatusInternalServerError)
	}
}
