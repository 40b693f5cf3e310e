package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/blgvbtc/poolauth/core"
	"github.com/blgvbtc/poolauth/service"
)

// PoolInfo is the static pool metadata reported by the status endpoints.
type PoolInfo struct {
	PoolFee     float64
	StratumPort int
	Version     string
}

// AuthHandlers contains HTTP handlers for the auth and pool endpoints
type AuthHandlers struct {
	authService *service.AuthService
	info        PoolInfo
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authService *service.AuthService, info PoolInfo) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
		info:        info,
	}
}

// Challenge handles the challenge request
func (h *AuthHandlers) Challenge(c *gin.Context) {
	var req struct {
		Platform string `json:"platform"`
	}

	// The body is optional; platform defaults server-side.
	_ = c.ShouldBindJSON(&req)

	res, err := h.authService.StartAuth(c.Request.Context(), req.Platform)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "StorageUnavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"challenge_id": res.Challenge.ID,
		"message":      res.Challenge.Message,
		"expires_at":   res.Challenge.ExpiresAt.Format(time.RFC3339),
		"qr_payload":   res.QRPayload,
	})
}

// Verify handles the signed-challenge submission
func (h *AuthHandlers) Verify(c *gin.Context) {
	var req struct {
		WalletAddress string `json:"wallet_address" binding:"required"`
		WorkerName    string `json:"worker_name"`
		Signature     string `json:"signature" binding:"required"`
		ChallengeID   string `json:"challenge_id" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "MalformedInput"})
		return
	}

	res, err := h.authService.CompleteAuth(c.Request.Context(), req.WalletAddress, req.WorkerName, req.Signature, req.ChallengeID)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrMalformedInput):
			c.JSON(http.StatusBadRequest, gin.H{"error": "MalformedInput"})
		case errors.Is(err, core.ErrSignatureMismatch):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "SignatureMismatch"})
		case errors.Is(err, core.ErrChallengeNotFound),
			errors.Is(err, core.ErrChallengeConsumed),
			errors.Is(err, core.ErrChallengeExpired):
			c.JSON(http.StatusGone, gin.H{"error": "ChallengeInvalidOrExpired"})
		case errors.Is(err, core.ErrStorageUnavailable):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "StorageUnavailable"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Authentication failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_token":  res.SessionToken,
		"wallet_address": res.Session.WalletAddress,
		"miner_id":       res.Miner.ID,
	})
}

// Poll reports the status of an outstanding challenge
func (h *AuthHandlers) Poll(c *gin.Context) {
	var req struct {
		ChallengeID string `json:"challenge_id" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "MalformedInput"})
		return
	}

	res, err := h.authService.PollStatus(c.Request.Context(), req.ChallengeID)
	if err != nil {
		if errors.Is(err, core.ErrChallengeNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "ChallengeInvalidOrExpired"})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "StorageUnavailable"})
		return
	}

	body := gin.H{"status": string(res.Status)}
	if res.Status == service.PollAuthenticated {
		body["session_token"] = res.SessionToken
		body["wallet_address"] = res.WalletAddress
	}
	c.JSON(http.StatusOK, body)
}

// Stats reports aggregate pool statistics from the registry
func (h *AuthHandlers) Stats(c *gin.Context) {
	scope := h.authService.Scope()
	miners, err := h.authService.Registry().ListActive(c.Request.Context(), scope)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "StorageUnavailable"})
		return
	}

	var totalHashRate float64
	for _, m := range miners {
		totalHashRate += m.HashRate
	}

	c.JSON(http.StatusOK, gin.H{
		"pool_hashrate": totalHashRate,
		"active_miners": len(miners),
		"pool_fee":      h.info.PoolFee,
		"stratum_port":  h.info.StratumPort,
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
		"test_mode": gin.H{
			"is_active":  scope.Test,
			"session_id": scope.SessionID,
		},
	})
}

// SystemStatus reports service health
func (h *AuthHandlers) SystemStatus(c *gin.Context) {
	scope := h.authService.Scope()
	c.JSON(http.StatusOK, gin.H{
		"status":         "operational",
		"web_interface":  "online",
		"stratum_server": "online",
		"stratum_port":   h.info.StratumPort,
		"version":        h.info.Version,
		"test_mode": gin.H{
			"is_active":  scope.Test,
			"session_id": scope.SessionID,
		},
	})
}

// MinerStats lists the workers registered for a wallet address
func (h *AuthHandlers) MinerStats(c *gin.Context) {
	address := c.Param("address")
	if len(address) < 26 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid Bitcoin address"})
		return
	}

	miners, err := h.authService.Registry().ListByWallet(c.Request.Context(), address, h.authService.Scope())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "StorageUnavailable"})
		return
	}

	var totalHashRate float64
	workers := make([]gin.H, 0, len(miners))
	for _, m := range miners {
		totalHashRate += m.HashRate
		workers = append(workers, gin.H{
			"name":      m.WorkerName,
			"hashrate":  m.HashRate,
			"status":    string(m.Status),
			"last_seen": m.UpdatedAt.Format(time.RFC3339),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"address":        address,
		"workers":        workers,
		"total_hashrate": totalHashRate,
	})
}

// Heartbeat updates the hash rate of the caller's worker
func (h *AuthHandlers) Heartbeat(c *gin.Context) {
	session := sessionFromContext(c)
	if session == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Session not found in context"})
		return
	}

	var req struct {
		WorkerName string  `json:"worker_name" binding:"required"`
		HashRate   float64 `json:"hash_rate"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "MalformedInput"})
		return
	}

	rec, err := h.authService.Registry().Heartbeat(c.Request.Context(), session.WalletAddress, req.WorkerName, req.HashRate, h.authService.Scope())
	if err != nil {
		if errors.Is(err, core.ErrMinerNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Unknown worker"})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "StorageUnavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"miner_id":   rec.ID,
		"worker":     rec.WorkerName,
		"hash_rate":  rec.HashRate,
		"status":     string(rec.Status),
		"updated_at": rec.UpdatedAt.Format(time.RFC3339),
	})
}

// Payouts lists payouts for a wallet address
func (h *AuthHandlers) Payouts(c *gin.Context) {
	address := c.Param("address")

	payouts, err := h.authService.Registry().ListPayouts(c.Request.Context(), address, h.authService.Scope())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "StorageUnavailable"})
		return
	}

	out := make([]gin.H, 0, len(payouts))
	for _, p := range payouts {
		out = append(out, gin.H{
			"amount":           p.Amount.String(),
			"transaction_hash": p.TransactionHash,
			"status":           p.Status,
			"created_at":       p.CreatedAt.Format(time.RFC3339),
		})
	}

	c.JSON(http.StatusOK, gin.H{"payouts": out})
}

// Me returns the identity carried by the validated session
func (h *AuthHandlers) Me(c *gin.Context) {
	session := sessionFromContext(c)
	if session == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Session not found in context"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"wallet_address": session.WalletAddress,
		"miner_id":       session.MinerID,
		"expires_at":     session.ExpiresAt.Format(time.RFC3339),
	})
}

func sessionFromContext(c *gin.Context) *core.Session {
	v, ok := c.Get(contextSessionKey)
	if !ok {
		return nil
	}
	session, ok := v.(*core.Session)
	if !ok {
		return nil
	}
	return session
}
