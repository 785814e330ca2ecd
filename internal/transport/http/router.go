package enginehttp

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"quorum/internal/engine"
	"quorum/internal/service"
)

// Router exposes decision, history and order queries.
type Router struct {
	svc *service.DecisionService
}

func NewRouter(svc *service.DecisionService) *Router {
	return &Router{svc: svc}
}

// Register mounts the routes under the given group.
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.POST("/decide", r.handleDecide)
	group.GET("/decisions", r.handleDecisions)
	group.GET("/decisions/:trace_id", r.handleDecisionByTrace)
	group.GET("/orders", r.handleOrders)
}

type decideRequest struct {
	Symbol        string                  `json:"symbol" binding:"required"`
	ActionContext string                  `json:"action_context"`
	Triggers      []string                `json:"triggers"`
	Portfolio     *engine.PortfolioState  `json:"portfolio"`
	Account       *engine.AccountSnapshot `json:"account"`
}

type decideResponse struct {
	Decision engine.Decision      `json:"decision"`
	Notional float64              `json:"notional"`
	Reject   *engine.RejectReason `json:"reject,omitempty"`
}

func (r *Router) handleDecide(c *gin.Context) {
	var req decideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	actionCtx := strings.TrimSpace(req.ActionContext)
	if actionCtx == "" {
		actionCtx = "new_position"
	}
	result, err := r.svc.Decide(c.Request.Context(), service.DecideRequest{
		Symbol:        req.Symbol,
		ActionContext: actionCtx,
		Triggers:      req.Triggers,
		Portfolio:     req.Portfolio,
		Account:       req.Account,
	})
	if err != nil {
		if errors.Is(err, engine.ErrDecisionInFlight) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, decideResponse{
		Decision: result.Decision,
		Notional: result.Notional,
		Reject:   result.Reject,
	})
}

func (r *Router) handleDecisions(c *gin.Context) {
	symbol := c.Query("symbol")
	limit := queryInt(c, "limit", 100)
	records, err := r.svc.History(c.Request.Context(), symbol, limit)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"decisions": records})
}

func (r *Router) handleDecisionByTrace(c *gin.Context) {
	traceID := strings.TrimSpace(c.Param("trace_id"))
	if traceID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "trace_id is required"})
		return
	}
	records, err := r.svc.Trace(c.Request.Context(), traceID)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	if len(records) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "trace not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trace_id": traceID, "decisions": records})
}

func (r *Router) handleOrders(c *gin.Context) {
	symbol := strings.TrimSpace(c.Query("symbol"))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol is required"})
		return
	}
	limit := queryInt(c, "limit", 100)
	orders, err := r.svc.Orders(c.Request.Context(), symbol, limit)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func queryInt(c *gin.Context, key string, def int) int {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
