package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/filedrive/semdex/internal/logger"
	"github.com/filedrive/semdex/internal/searcher"
	"github.com/filedrive/semdex/internal/stager"
	"github.com/filedrive/semdex/internal/storage"
	"github.com/filedrive/semdex/pkg/types"
)

// SearchService is the retrieval operation the API exposes.
type SearchService interface {
	Search(ctx context.Context, req searcher.Request) (*types.SearchResponse, error)
}

// IndexService is the indexing side of the API.
type IndexService interface {
	Index(ctx context.Context, ref types.FileRef) (*storage.Entry, error)
	Remove(ctx context.Context, ref types.FileRef) error
}

// Options carries the retrieval defaults applied to every search request.
// Zero values defer to the searcher's own defaults.
type Options struct {
	TopK      int
	Threshold float64
}

// Server is the HTTP surface over search and indexing.
type Server struct {
	log      *logger.Logger
	searcher SearchService
	indexer  IndexService
	opts     Options
	engine   *gin.Engine
	httpSrv  *http.Server
}

// New creates the server and registers routes.
func New(addr string, search SearchService, index IndexService, opts Options, log *logger.Logger) *Server {
	if log == nil {
		log = logger.NewNop()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		log:      log.With("component", "server"),
		searcher: search,
		indexer:  index,
		opts:     opts,
		engine:   engine,
		httpSrv: &http.Server{
			Addr:              addr,
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", s.handleHealth)

	api := s.engine.Group("/api")
	api.POST("/search", s.handleSearch)
	api.POST("/index", s.handleIndex)
	api.DELETE("/index", s.handleRemove)
}

// Run serves until the context is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	s.log.Info("http server listening", "addr", s.httpSrv.Addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpSrv.Shutdown(shutdownCtx)
}

// Handler exposes the router, used by tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

type searchRequest struct {
	Query   string `json:"query"`
	OwnerID string `json:"ownerId"`
}

type indexRequest struct {
	OwnerID string `json:"ownerId"`
	FileKey string `json:"fileKey"`
}

type apiError struct {
	Error string `json:"error"`
}

// POST /api/search
// Bad input is the caller's problem (400); capability and store failures
// already degraded to an empty response inside the searcher.
func (s *Server) handleSearch(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apiError{Error: "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		c.JSON(http.StatusBadRequest, apiError{Error: "query is required"})
		return
	}
	if strings.TrimSpace(req.OwnerID) == "" {
		c.JSON(http.StatusBadRequest, apiError{Error: "ownerId is required"})
		return
	}

	resp, err := s.searcher.Search(c.Request.Context(), searcher.Request{
		Query:     req.Query,
		OwnerID:   req.OwnerID,
		TopK:      s.opts.TopK,
		Threshold: s.opts.Threshold,
		UseCache:  true,
	})
	if err != nil {
		s.log.Error("search failed", "owner", req.OwnerID, "error", err)
		c.JSON(http.StatusOK, types.EmptySearchResponse())
		return
	}
	c.JSON(http.StatusOK, resp)
}

// POST /api/index
func (s *Server) handleIndex(c *gin.Context) {
	ref, ok := bindFileRef(c)
	if !ok {
		return
	}

	entry, err := s.indexer.Index(c.Request.Context(), ref)
	if err != nil {
		if errors.Is(err, stager.ErrOwnerNotFound) {
			c.JSON(http.StatusNotFound, apiError{Error: "owner not found"})
			return
		}
		s.log.Error("indexing failed", "owner", ref.OwnerID, "fileKey", ref.FileKey, "error", err)
		c.JSON(http.StatusInternalServerError, apiError{Error: "indexing failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"indexed": entry != nil})
}

// DELETE /api/index
func (s *Server) handleRemove(c *gin.Context) {
	ref, ok := bindFileRef(c)
	if !ok {
		return
	}

	if err := s.indexer.Remove(c.Request.Context(), ref); err != nil {
		s.log.Error("entry removal failed", "owner", ref.OwnerID, "fileKey", ref.FileKey, "error", err)
		c.JSON(http.StatusInternalServerError, apiError{Error: "removal failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /healthz
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func bindFileRef(c *gin.Context) (types.FileRef, bool) {
	var req indexRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apiError{Error: "invalid request body"})
		return types.FileRef{}, false
	}
	if strings.TrimSpace(req.OwnerID) == "" {
		c.JSON(http.StatusBadRequest, apiError{Error: "ownerId is required"})
		return types.FileRef{}, false
	}
	if strings.TrimSpace(req.FileKey) == "" {
		c.JSON(http.StatusBadRequest, apiError{Error: "fileKey is required"})
		return types.FileRef{}, false
	}
	return types.FileRef{OwnerID: req.OwnerID, FileKey: req.FileKey}, true
}
