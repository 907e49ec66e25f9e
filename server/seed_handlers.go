package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"orderly/database"
	"orderly/normalization"
	apperrors "orderly/server/errors"
)

func (s *Server) handleListSeed(c *gin.Context) {
	rows, err := s.store.ListSeedRows(c.Request.Context())
	if err != nil {
		c.Error(apperrors.FromDomainError(err, "failed to list seed rows"))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"rows":    rows,
		"count":   len(rows),
		"version": currentVersion(rows),
	})
}

// currentVersion максимальная версия справочника или пустая строка
func currentVersion(rows []normalization.SeedRow) string {
	best, bestMajor, bestMinor := "", -1, -1
	for _, row := range rows {
		major, minor := normalization.ParseSeedVersion(row.Version)
		if major > bestMajor || (major == bestMajor && minor > bestMinor) {
			best, bestMajor, bestMinor = row.Version, major, minor
		}
	}
	return best
}

type publishRequest struct {
	Kind          string `json:"kind"`
	EffectiveFrom string `json:"effective_from"`
	Version       string `json:"version"`
}

// handlePublishSeed переносит записи AUTO и APPROVED в справочник канонических имен
func (s *Server) handlePublishSeed(c *gin.Context) {
	var req publishRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(apperrors.NewValidationError("некорректное тело запроса", err))
			return
		}
	}
	kind, err := parseKind(req.Kind, false)
	if err != nil {
		c.Error(err)
		return
	}

	ctx := c.Request.Context()
	records, err := s.store.ListCurationRecords(ctx, database.RecordFilter{Kind: kind})
	if err != nil {
		c.Error(apperrors.FromDomainError(err, "failed to list curation records"))
		return
	}
	existing, err := s.store.ListSeedRows(ctx)
	if err != nil {
		c.Error(apperrors.FromDomainError(err, "failed to list seed rows"))
		return
	}

	version := strings.TrimSpace(req.Version)
	if version == "" {
		version = normalization.NextSeedVersion(existing)
	}
	effectiveFrom := strings.TrimSpace(req.EffectiveFrom)
	if effectiveFrom == "" {
		effectiveFrom = s.now().Format("2006-01-02")
	}

	incoming, err := normalization.BuildSeedRows(normalization.ReviewedFromRecords(records), effectiveFrom, version)
	if err != nil {
		c.Error(apperrors.FromDomainError(err, "seed validation failed"))
		return
	}
	merged := normalization.MergeSeed(existing, incoming)

	if _, err := s.store.UpsertSeedRows(ctx, merged); err != nil {
		c.Error(apperrors.FromDomainError(err, "failed to save seed rows"))
		return
	}

	path := ""
	if s.config.SeedPath != "" {
		if err := normalization.SaveSeedFile(s.config.SeedPath, merged); err != nil {
			c.Error(apperrors.NewInternalError("failed to write seed file", err))
			return
		}
		path = s.config.SeedPath
	}

	s.logger.Info("Seed published",
		"kind", kind,
		"version", version,
		"published", len(incoming),
		"total", len(merged),
	)
	c.JSON(http.StatusOK, gin.H{
		"version":   version,
		"published": len(incoming),
		"total":     len(merged),
		"path":      path,
	})
}
