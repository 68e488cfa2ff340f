package auth

import (
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
)

type LoginRequest struct {
	Address   string `json:"address"`
	Signature string `json:"signature"`
	Nonce     string `json:"nonce"`
}

// TokenIssuer mints a session token for a verified player.
type TokenIssuer interface {
	Issue(playerID string) (string, error)
}

type Handler struct {
	nonces *NonceStore
	issuer TokenIssuer
	log    *log.Logger
}

func NewHandler(nonces *NonceStore, issuer TokenIssuer, logger *log.Logger) *Handler {
	return &Handler{nonces: nonces, issuer: issuer, log: logger}
}

// LoginMessage is the text the wallet signs with personal_sign.
func LoginMessage(nonce string) string {
	return "Sign this message to authenticate with HoldemTable. Nonce: " + nonce
}

// personalHash builds the same digest MetaMask personal_sign produces.
func personalHash(msg string) []byte {
	prefix := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(msg), msg)
	return crypto.Keccak256Hash([]byte(prefix)).Bytes()
}

// RecoverAddress returns the checksummed address that signed msg.
func RecoverAddress(msg, signature string) (string, error) {
	sigBytes, err := hex.DecodeString(strings.TrimPrefix(signature, "0x"))
	if err != nil {
		return "", fmt.Errorf("decode signature: %w", err)
	}
	if len(sigBytes) != crypto.SignatureLength {
		return "", fmt.Errorf("signature must be %d bytes, got %d", crypto.SignatureLength, len(sigBytes))
	}
	// 修正 V 值
	if sigBytes[crypto.RecoveryIDOffset] >= 27 {
		sigBytes[crypto.RecoveryIDOffset] -= 27
	}

	pubKey, err := crypto.SigToPub(personalHash(msg), sigBytes)
	if err != nil {
		return "", fmt.Errorf("recover public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pubKey).Hex(), nil
}

// POST /auth/login
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}

	if !h.nonces.Consume(req.Nonce) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid nonce"})
		return
	}

	recovered, err := RecoverAddress(LoginMessage(req.Nonce), req.Signature)
	if err != nil {
		h.log.Debug("login signature rejected", "address", req.Address, "err", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "signature verify failed"})
		return
	}

	if !strings.EqualFold(recovered, req.Address) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "signature mismatch"})
		return
	}

	// 签名验证成功 → 生成 JWT，玩家 id 即钱包地址
	jwtStr, err := h.issuer.Issue(recovered)
	if err != nil {
		h.log.Error("jwt generation failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "jwt generation failed"})
		return
	}

	h.log.Info("player logged in", "player", recovered)
	c.JSON(http.StatusOK, gin.H{
		"jwt":      jwtStr,
		"playerId": recovered,
	})
}
