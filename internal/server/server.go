package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/storyloom/loom/internal/analytics"
	"github.com/storyloom/loom/internal/consolidate"
	"github.com/storyloom/loom/internal/store"
	"github.com/storyloom/loom/internal/verify"
)

// Server wires the HTTP surface over the engine components. All state lives
// in the components; handlers are thin.
type Server struct {
	store        *store.GraphStore
	consolidator *consolidate.Consolidator
	analytics    *analytics.Service
	verifier     *verify.Engine
	log          *zap.Logger
}

func New(s *store.GraphStore, c *consolidate.Consolidator, a *analytics.Service, v *verify.Engine, log *zap.Logger) *Server {
	return &Server{store: s, consolidator: c, analytics: a, verifier: v, log: log}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.Default()

	r.GET("/healthz", s.Health)
	r.GET("/ontology", s.Ontology)

	r.POST("/digest", s.Digest)
	r.POST("/verify", s.Verify)

	r.GET("/graph/find", s.FindNode)
	r.GET("/graph/path", s.Path)
	r.GET("/graph/ego", s.Ego)
	r.GET("/graph/central", s.Central)
	r.GET("/graph/meta", s.Meta)

	r.GET("/analytics/summary", s.AnalyticsSummary)
	r.GET("/conflicts", s.Conflicts)
	r.GET("/notifications", s.Notifications)

	return r
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) Ontology(c *gin.Context) {
	reg := s.store.Registry()
	kinds := reg.Known()
	out := make([]gin.H, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, gin.H{
			"name":        k.Name,
			"enabled":     reg.IsEnabled(k),
			"description": reg.Describe(k),
		})
	}
	c.JSON(http.StatusOK, gin.H{"kinds": out})
}

type DigestRequest struct {
	Scope  string            `json:"scope"`
	Source string            `json:"source"`
	Batch  consolidate.Batch `json:"batch"`
}

func (s *Server) Digest(c *gin.Context) {
	var req DigestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Scope == "" {
		req.Scope = "default"
	}

	result, err := s.consolidator.Digest(c.Request.Context(), req.Batch, req.Scope, req.Source)
	if err != nil {
		if errors.Is(err, consolidate.ErrLockContention) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		s.log.Error("digest failed", zap.String("scope", req.Scope), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "digest failed"})
		return
	}

	c.JSON(http.StatusOK, result)
}

type VerifyRequest struct {
	Tier     string `json:"tier"`
	SceneRef string `json:"scene_ref"`
	Content  string `json:"content"`
	POV      string `json:"pov"`
}

func (s *Server) Verify(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	vreq := verify.Request{SceneRef: req.SceneRef, Content: req.Content, POV: req.POV}
	switch req.Tier {
	case "", "fast":
		c.JSON(http.StatusOK, s.verifier.RunFast(c.Request.Context(), vreq))
	case "medium":
		// Detached from the request context so the work survives the response.
		s.verifier.RunMediumAsync(context.WithoutCancel(c.Request.Context()), vreq)
		c.JSON(http.StatusAccepted, gin.H{"status": "scheduled", "scene_ref": req.SceneRef})
	case "slow":
		c.JSON(http.StatusOK, s.verifier.RunSlow(c.Request.Context(), vreq))
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown tier " + req.Tier})
	}
}

func (s *Server) FindNode(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name query parameter required"})
		return
	}
	node := s.store.FindByName(name)
	if node == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no node matches " + name})
		return
	}
	c.JSON(http.StatusOK, node)
}

func (s *Server) Path(c *gin.Context) {
	from := s.store.FindByName(c.Query("from"))
	to := s.store.FindByName(c.Query("to"))
	if from == nil || to == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "endpoint not found"})
		return
	}

	ids := s.store.ShortestPath(from.ID, to.ID)
	if ids == nil {
		c.JSON(http.StatusOK, gin.H{"path": []string{}, "connected": false})
		return
	}

	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if n := s.store.GetNode(id); n != nil {
			names = append(names, n.Name)
		}
	}
	c.JSON(http.StatusOK, gin.H{"path": names, "connected": true})
}

func (s *Server) Ego(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name query parameter required"})
		return
	}
	radius := 1
	if raw := c.Query("radius"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "radius must be a positive integer"})
			return
		}
		radius = n
	}
	c.JSON(http.StatusOK, s.store.EgoNetwork(name, radius))
}

func (s *Server) Central(c *gin.Context) {
	topK := 10
	if raw := c.Query("top"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "top must be a positive integer"})
			return
		}
		topK = n
	}
	c.JSON(http.StatusOK, gin.H{"ranked": s.store.CentralRank(topK)})
}

func (s *Server) Meta(c *gin.Context) {
	meta, err := s.store.Meta(c.Request.Context())
	if err != nil {
		s.log.Error("meta lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "meta lookup failed"})
		return
	}
	c.JSON(http.StatusOK, meta)
}

func (s *Server) AnalyticsSummary(c *gin.Context) {
	topK := 5
	if raw := c.Query("top"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "top must be a positive integer"})
			return
		}
		topK = n
	}
	c.JSON(http.StatusOK, s.analytics.Summarize(topK))
}

func (s *Server) Conflicts(c *gin.Context) {
	conflicts, err := s.store.ListConflicts(c.Request.Context(), c.Query("scope"))
	if err != nil {
		s.log.Error("conflict listing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "conflict listing failed"})
		return
	}
	if conflicts == nil {
		conflicts = []store.Conflict{}
	}
	c.JSON(http.StatusOK, gin.H{"conflicts": conflicts})
}

func (s *Server) Notifications(c *gin.Context) {
	notes := s.verifier.Queue().Drain()
	if notes == nil {
		notes = []verify.Notification{}
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notes})
}
