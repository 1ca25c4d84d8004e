// Package mcpserve exposes spiralmem's store and search over a thin
// HTTP/JSON-RPC-shaped transport, grounded on the teacher's Gin router
// (cmd/main.go's corsMiddleware + health/REST handlers) but narrowed to
// the single surface an MCP client needs: a health probe and a JSON-RPC
// "search.keyword" dispatch. Deep MCP protocol conformance is out of scope
// per spec.md §1; this is a stub the `serve-mcp` command spawns,
// exercising the teacher's HTTP stack rather than reimplementing it.
package mcpserve

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"spiralmem/internal/search"
	"spiralmem/internal/store"
)

// Server wires the store and searcher behind the HTTP transport.
type Server struct {
	store    *store.Store
	searcher *search.Searcher
	log      *logrus.Logger
	router   *gin.Engine
}

// New builds a Server. gin runs in release mode; verbose request
// logging belongs to the CLI's own logger, not gin's default logger.
func New(st *store.Store, searcher *search.Searcher, log *logrus.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	s := &Server{store: st, searcher: searcher, log: log, router: r}
	r.GET("/health", s.health)
	r.POST("/rpc", s.rpc)
	return s
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// Run blocks serving on addr (e.g. "127.0.0.1:8848").
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

func (s *Server) health(c *gin.Context) {
	status := "ok"
	if err := s.store.Health(); err != nil {
		status = "error: " + err.Error()
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    status,
		"service":   "spiralmem-mcp",
		"timestamp": time.Now().UTC(),
	})
}

// rpcRequest is the minimal JSON-RPC 2.0 envelope this stub accepts.
type rpcRequest struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      interface{}    `json:"id"`
	Method  string         `json:"method"`
	Params  rpcSearchParam `json:"params"`
}

type rpcSearchParam struct {
	Query   string `json:"query"`
	SpaceID string `json:"spaceId"`
	Limit   int    `json:"limit"`
}

type rpcResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *rpcError   `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// rpc dispatches the one tool this stub exposes, "search.keyword", by
// method name. Unknown methods get a JSON-RPC method-not-found error
// rather than an HTTP error code, per JSON-RPC convention.
func (s *Server) rpc(c *gin.Context) {
	var req rpcRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, rpcResponse{JSONRPC: "2.0", Error: &rpcError{Code: -32700, Message: "parse error: " + err.Error()}})
		return
	}

	switch req.Method {
	case "search.keyword":
		filter := store.MemorySearchFilter{SpaceID: req.Params.SpaceID, Limit: req.Params.Limit}
		results, err := s.searcher.Keyword(req.Params.Query, filter)
		if err != nil {
			c.JSON(http.StatusOK, rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: -32000, Message: err.Error()}})
			return
		}
		c.JSON(http.StatusOK, rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: results})
	default:
		c.JSON(http.StatusOK, rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: -32601, Message: "method not found: " + req.Method}})
	}
}
