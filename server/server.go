package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"orderly/database"
	"orderly/internal/config"
	"orderly/normalization"
	"orderly/server/middleware"
)

// Store хранилище, с которым работает API ревью
type Store interface {
	Ping(ctx context.Context) error
	LoadEntityGroups(ctx context.Context, kind normalization.EntityKind) ([]normalization.EntityGroup, error)
	SaveCurationRecords(ctx context.Context, runID string, records []*normalization.CurationRecord) (int, error)
	ListCurationRecords(ctx context.Context, filter database.RecordFilter) ([]*normalization.CurationRecord, error)
	GetCurationRecord(ctx context.Context, entityID string) (*normalization.CurationRecord, error)
	ApproveCurationRecord(ctx context.Context, entityID, finalName, reviewer string) (*normalization.CurationRecord, error)
	CountByDecision(ctx context.Context, kind normalization.EntityKind) (map[string]int, error)
	UpsertSeedRows(ctx context.Context, rows []normalization.SeedRow) (int, error)
	ListSeedRows(ctx context.Context) ([]normalization.SeedRow, error)
	SaveCurationRun(ctx context.Context, run database.CurationRun) error
	LatestRun(ctx context.Context, kind normalization.EntityKind) (*database.CurationRun, error)
}

// Server HTTP API ручной проверки результатов курирования
type Server struct {
	config     *config.Config
	store      Store
	engine     *normalization.CurationEngine
	logger     *slog.Logger
	router     *gin.Engine
	httpServer *http.Server
	now        func() time.Time
}

// NewServer собирает роутер. store и engine обязательны.
func NewServer(cfg *config.Config, store Store, engine *normalization.CurationEngine, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if store == nil {
		return nil, errors.New("store is required")
	}
	if engine == nil {
		return nil, errors.New("curation engine is required")
	}
	if logger == nil {
		logger = Logger
	}

	s := &Server{
		config: cfg,
		store:  store,
		engine: engine,
		logger: logger,
		now:    time.Now,
	}
	s.router = s.buildRouter()
	return s, nil
}

// Handler возвращает http.Handler сервера
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() *gin.Engine {
	router := gin.New()
	router.Use(
		middleware.GinRequestIDMiddleware(),
		middleware.GinRecoveryMiddleware(s.logger),
		middleware.GinLoggerMiddleware(s.logger),
		middleware.GinGzipMiddleware(),
		middleware.GinErrorMiddleware(s.logger),
	)

	api := router.Group("/api")
	api.GET("/health", s.handleHealth)

	limited := api.Group("", middleware.GinRateLimitMiddleware(s.config.RateLimit, int(s.config.RateLimit)))

	curation := limited.Group("/curation")
	curation.GET("/records", s.handleListRecords)
	curation.GET("/records/:entity_id", s.handleGetRecord)
	curation.POST("/records/:entity_id/approve", s.handleApproveRecord)
	curation.POST("/runs", s.handleCreateRun)
	curation.GET("/report", s.handleReport)
	curation.GET("/export", s.handleExport)

	seed := limited.Group("/seed")
	seed.GET("", s.handleListSeed)
	seed.POST("/publish", s.handlePublishSeed)

	return router
}

// Start запускает HTTP сервер и останавливает его при отмене ctx
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%s", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // пакетный прогон и выгрузка XLSX занимают время
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("Shutting down HTTP server")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown http server: %w", err)
	}
	return nil
}
