// Package api exposes the engine over HTTP. Every route sits behind the JWT
// middleware; the acting player is always taken from the token.
package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"HoldemTable/internal/game/engine"
	"HoldemTable/internal/game/manager"
	"HoldemTable/internal/game/table"
	"HoldemTable/internal/middleware"
)

type Handler struct {
	eng *engine.Engine
	mgr *manager.GameManager
	log *log.Logger
}

func NewHandler(eng *engine.Engine, mgr *manager.GameManager, logger *log.Logger) *Handler {
	return &Handler{eng: eng, mgr: mgr, log: logger}
}

type CreateTableRequest struct {
	Name string `json:"name"`
}

type JoinRequest struct {
	Name string `json:"name"`
}

type ActionRequest struct {
	Action string `json:"action" binding:"required"`
	Amount int64  `json:"amount"`
}

type ChatRequest struct {
	Text string `json:"text" binding:"required"`
}

type CardsResponse struct {
	TableID string       `json:"tableId"`
	Cards   []table.Card `json:"cards"`
}

func (h *Handler) Register(r gin.IRoutes) {
	r.POST("/tables", h.CreateTable)
	r.GET("/tables", h.ListTables)
	r.GET("/tables/:id", h.GetTable)
	r.POST("/tables/:id/join", h.Join)
	r.POST("/tables/:id/leave", h.Leave)
	r.POST("/tables/:id/start", h.Start)
	r.POST("/tables/:id/action", h.Action)
	r.POST("/tables/:id/chat", h.Chat)
	r.GET("/tables/:id/cards", h.Cards)
}

// POST /tables  body: {name}
func (h *Handler) CreateTable(c *gin.Context) {
	var req CreateTableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	t, err := h.eng.CreateTable(c.Request.Context(), strings.TrimSpace(req.Name))
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.mgr.OpenTable(c.Request.Context(), t.ID); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

// GET /tables
func (h *Handler) ListTables(c *gin.Context) {
	tables, err := h.eng.ListTables(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tables": tables})
}

// GET /tables/:id
func (h *Handler) GetTable(c *gin.Context) {
	t, err := h.eng.GetTable(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// POST /tables/:id/join  body: {name}
func (h *Handler) Join(c *gin.Context) {
	var req JoinRequest
	// 允许空 body
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	id := c.Param("id")
	t, err := h.eng.JoinTable(c.Request.Context(), id, player(c), strings.TrimSpace(req.Name))
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.mgr.OpenTable(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// POST /tables/:id/leave
func (h *Handler) Leave(c *gin.Context) {
	t, err := h.eng.LeaveTable(c.Request.Context(), c.Param("id"), player(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// POST /tables/:id/start  only a seated player may deal the first hand
func (h *Handler) Start(c *gin.Context) {
	id := c.Param("id")
	cur, err := h.eng.GetTable(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !engine.Seated(cur, player(c)) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not seated at this table"})
		return
	}
	t, err := h.eng.StartGame(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// POST /tables/:id/action  body: {action, amount}
func (h *Handler) Action(c *gin.Context) {
	var req ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	action, err := table.ParseAction(strings.ToLower(req.Action))
	if err != nil {
		h.fail(c, err)
		return
	}
	t, err := h.eng.HandlePlayerAction(c.Request.Context(), c.Param("id"), player(c), action, req.Amount)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// POST /tables/:id/chat  body: {text}
func (h *Handler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	msg, err := h.mgr.Chat(c.Request.Context(), c.Param("id"), player(c), req.Text)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// GET /tables/:id/cards  the caller's own hole cards for the current hand
func (h *Handler) Cards(c *gin.Context) {
	id := c.Param("id")
	cards, err := h.eng.HoleCards(c.Request.Context(), id, player(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	if cards == nil {
		cards = []table.Card{}
	}
	c.JSON(http.StatusOK, CardsResponse{TableID: id, Cards: cards})
}

func player(c *gin.Context) string {
	return c.GetString(middleware.PlayerIDKey)
}

// StatusFor maps an engine error to an HTTP status.
func StatusFor(err error) int {
	if errors.Is(err, manager.ErrEmptyChat) || errors.Is(err, manager.ErrChatTooLong) {
		return http.StatusBadRequest
	}
	switch table.KindOf(err) {
	case table.KindNotYourTurn, table.KindInvalidPhaseAction, table.KindTransactionConflict:
		return http.StatusConflict
	case table.KindAmount, table.KindInsufficientChips:
		return http.StatusBadRequest
	case table.KindTableNotFound, table.KindPlayerNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "err", err)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": table.KindOf(err).String()})
}
