package auth

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/gin-gonic/gin"
)

func generateNonce() (string, error) {
	b := make([]byte, 16)
	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// NonceStore hands out single-use login nonces that expire after ttl.
type NonceStore struct {
	mu     sync.Mutex
	nonces map[string]time.Time // nonce → 过期时间
	ttl    time.Duration
	clock  quartz.Clock
}

func NewNonceStore(ttl time.Duration, clock quartz.Clock) *NonceStore {
	return &NonceStore{nonces: make(map[string]time.Time), ttl: ttl, clock: clock}
}

func (s *NonceStore) Issue() (string, error) {
	nonce, err := generateNonce()
	if err != nil {
		return "", err
	}
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	// 顺手清理过期的
	for n, exp := range s.nonces {
		if now.After(exp) {
			delete(s.nonces, n)
		}
	}
	s.nonces[nonce] = now.Add(s.ttl)
	return nonce, nil
}

// Consume reports whether the nonce was live, and burns it either way.
func (s *NonceStore) Consume(nonce string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.nonces[nonce]
	delete(s.nonces, nonce) // 只允许一次
	return ok && !s.clock.Now().After(exp)
}

// GET|POST /auth/nonce
func (h *Handler) Nonce(c *gin.Context) {
	nonce, err := h.nonces.Issue()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate nonce"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"nonce": nonce})
}
