package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"orderly/database"
	"orderly/normalization"
	apperrors "orderly/server/errors"
)

func (s *Server) handleHealth(c *gin.Context) {
	if err := s.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unavailable",
			"database": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"time":      s.now().UTC().Format(time.RFC3339),
		"threshold": s.engine.Options().AutoApprovalThreshold,
	})
}

// parseKind пустое значение означает sku, если allowEmpty == false
func parseKind(raw string, allowEmpty bool) (normalization.EntityKind, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		if allowEmpty {
			return "", nil
		}
		return normalization.EntityKindSKU, nil
	}
	kind := normalization.EntityKind(raw)
	if !kind.Valid() {
		return "", apperrors.NewValidationError("неизвестный вид сущности: "+raw, nil)
	}
	return kind, nil
}

func queryInt(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, apperrors.NewValidationError("параметр "+name+" должен быть неотрицательным числом", err)
	}
	return v, nil
}

func (s *Server) handleListRecords(c *gin.Context) {
	kind, err := parseKind(c.Query("kind"), true)
	if err != nil {
		c.Error(err)
		return
	}

	filter := database.RecordFilter{Kind: kind}
	if raw := c.Query("decision"); raw != "" {
		decision, ok := normalization.ParseDecision(raw)
		if !ok {
			c.Error(apperrors.NewValidationError("неизвестное решение: "+raw, nil))
			return
		}
		filter.Decision = decision
	}
	if filter.Limit, err = queryInt(c, "limit", 100); err != nil {
		c.Error(err)
		return
	}
	if filter.Offset, err = queryInt(c, "offset", 0); err != nil {
		c.Error(err)
		return
	}

	ctx := c.Request.Context()
	records, err := s.store.ListCurationRecords(ctx, filter)
	if err != nil {
		c.Error(apperrors.FromDomainError(err, "failed to list curation records"))
		return
	}
	// Размеры очередей по решениям без учета фильтра решения и пагинации
	decisions, err := s.store.CountByDecision(ctx, kind)
	if err != nil {
		c.Error(apperrors.FromDomainError(err, "failed to count decisions"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"records":   records,
		"count":     len(records),
		"limit":     filter.Limit,
		"offset":    filter.Offset,
		"decisions": decisions,
	})
}

func (s *Server) handleGetRecord(c *gin.Context) {
	record, err := s.store.GetCurationRecord(c.Request.Context(), c.Param("entity_id"))
	if err != nil {
		c.Error(apperrors.FromDomainError(err, "запись не найдена"))
		return
	}
	c.JSON(http.StatusOK, record)
}

// approveRequest тело запроса утверждения; пустое final_name оставляет предложенное имя
type approveRequest struct {
	FinalName  string `json:"final_name"`
	ReviewedBy string `json:"reviewed_by"`
}

func (s *Server) handleApproveRecord(c *gin.Context) {
	var req approveRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(apperrors.NewValidationError("некорректное тело запроса", err))
			return
		}
	}
	reviewer := strings.TrimSpace(req.ReviewedBy)
	if reviewer == "" {
		reviewer = "api"
	}

	record, err := s.store.ApproveCurationRecord(c.Request.Context(), c.Param("entity_id"), req.FinalName, reviewer)
	if err != nil {
		c.Error(apperrors.FromDomainError(err, "запись не найдена"))
		return
	}

	s.logger.Info("Curation record approved",
		"entity_id", record.EntityID,
		"final_name", record.FinalName(),
		"reviewed_by", reviewer,
	)
	c.JSON(http.StatusOK, record)
}

type runRequest struct {
	Kind string `json:"kind"`
}

func (s *Server) handleCreateRun(c *gin.Context) {
	var req runRequest
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
	groups, err := s.store.LoadEntityGroups(ctx, kind)
	if err != nil {
		c.Error(apperrors.FromDomainError(err, "failed to load entity groups"))
		return
	}

	processor := normalization.NewBatchProcessor(s.engine, s.engine.Options().Workers, s.logger)
	result, err := processor.Process(ctx, groups)
	if err != nil {
		c.Error(apperrors.NewInternalError("curation run interrupted", err))
		return
	}

	saved, err := s.store.SaveCurationRecords(ctx, result.RunID, result.Records)
	if err != nil {
		c.Error(apperrors.FromDomainError(err, "failed to save curation records"))
		return
	}
	run := database.RunFromBatch(kind, result)
	if err := s.store.SaveCurationRun(ctx, run); err != nil {
		c.Error(apperrors.FromDomainError(err, "failed to save curation run"))
		return
	}

	report := normalization.NewReportGenerator(s.engine.Options().AutoApprovalThreshold).GenerateFromBatch(result)
	c.JSON(http.StatusCreated, gin.H{
		"run":      run,
		"saved":    saved,
		"failures": result.Failures,
		"report":   report,
	})
}

func (s *Server) handleReport(c *gin.Context) {
	kind, err := parseKind(c.Query("kind"), false)
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
	run, err := s.store.LatestRun(ctx, kind)
	if err != nil {
		c.Error(apperrors.FromDomainError(err, "failed to load latest run"))
		return
	}

	failures := 0
	if run != nil {
		failures = run.Failures
	}
	report := normalization.NewReportGenerator(s.engine.Options().AutoApprovalThreshold).Generate(records, failures)
	if run != nil {
		report.RunID = run.RunID
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleExport(c *gin.Context) {
	kind, err := parseKind(c.Query("kind"), false)
	if err != nil {
		c.Error(err)
		return
	}
	format, err := normalization.ParseExportFormat(c.DefaultQuery("format", "csv"))
	if err != nil {
		c.Error(apperrors.NewValidationError(err.Error(), err))
		return
	}

	records, err := s.store.ListCurationRecords(c.Request.Context(), database.RecordFilter{Kind: kind})
	if err != nil {
		c.Error(apperrors.FromDomainError(err, "failed to list curation records"))
		return
	}

	filename := normalization.FileName(kind, format, s.now())
	switch format {
	case normalization.FormatCSV:
		c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
		c.Header("Content-Type", "text/csv; charset=utf-8")
		c.Status(http.StatusOK)
		if err := normalization.WriteCSV(c.Writer, records); err != nil {
			s.logger.Error("Failed to stream CSV export", "error", err)
		}
	case normalization.FormatJSON:
		c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
		c.Header("Content-Type", "application/json")
		c.Status(http.StatusOK)
		if err := normalization.WriteJSON(c.Writer, records, s.now()); err != nil {
			s.logger.Error("Failed to stream JSON export", "error", err)
		}
	default:
		path, err := normalization.NewExporter(s.config.ExportDir).Export(kind, format, records)
		if err != nil {
			c.Error(apperrors.NewInternalError("failed to export records", err))
			return
		}
		c.FileAttachment(path, filename)
	}
}
