package matchmaker

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"HoldemTable/internal/middleware"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// POST /match/join  body: {pool, tableSize}
func (h *Handler) Join(c *gin.Context) {
	var req JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	m, queued, err := h.svc.Join(c.Request.Context(), c.GetString(middleware.PlayerIDKey), req)
	switch {
	case errors.Is(err, ErrInvalidTableSize):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, ErrAlreadySeated):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if queued {
		c.JSON(http.StatusOK, JoinResponse{
			Queued: true, Pool: req.Pool, TableSize: req.TableSize,
		})
		return
	}
	c.JSON(http.StatusOK, JoinResponse{
		Queued: false, Pool: m.Pool, TableSize: m.TableSize, TableID: m.TableID, Players: m.Players,
	})
}

// POST /match/cancel
func (h *Handler) Cancel(c *gin.Context) {
	if err := h.svc.Cancel(c.Request.Context(), c.GetString(middleware.PlayerIDKey)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
