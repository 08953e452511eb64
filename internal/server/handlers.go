package server

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"runtime"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pookie-sol/presale-api/internal/adminauth"
	"github.com/pookie-sol/presale-api/internal/logger"
	"github.com/pookie-sol/presale-api/internal/models"
	"go.uber.org/zap"
)

// ==================== Admin authentication ====================

func (s *Server) adminLogin(c *gin.Context) {
	var req struct {
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request"})
		return
	}

	if !s.verifier.SecretConfigured() {
		s.logger.Error("Login denied: admin password not configured")
		c.JSON(503, gin.H{"error": "Admin authentication not configured"})
		return
	}

	if !s.verifier.VerifyPassword(req.Password) {
		// The comparison itself is constant time; the jitter additionally
		// masks everything around it.
		failureDelay()
		s.logger.Warn("Failed login attempt",
			zap.String("client_ip", c.ClientIP()))
		c.JSON(401, gin.H{"error": "Invalid password"})
		return
	}

	token, err := s.verifier.IssueToken("admin", s.verifier.DefaultTTL())
	if err != nil {
		if errors.Is(err, adminauth.ErrSecretNotConfigured) {
			s.logger.Error("Login denied: admin password not configured")
			c.JSON(503, gin.H{"error": "Admin authentication not configured"})
			return
		}
		s.logger.Error("Failed to issue admin token", zap.Error(err))
		c.JSON(500, gin.H{"error": "Failed to issue token"})
		return
	}

	s.logger.Info("Admin logged in successfully",
		zap.String("client_ip", c.ClientIP()))
	c.JSON(200, gin.H{
		"success": true,
		"token":   token,
	})
}

func (s *Server) adminLogout(c *gin.Context) {
	// Tokens are self-verifying and cannot be revoked individually; logout
	// is client-side discard.
	c.JSON(200, gin.H{"success": true})
}

func (s *Server) adminVerify(c *gin.Context) {
	token := c.GetHeader("X-Admin-Token")
	if token == "" || !s.verifier.VerifyToken(token) {
		c.JSON(401, gin.H{"valid": false})
		return
	}

	c.JSON(200, gin.H{"valid": true, "role": s.verifier.TokenRole(token)})
}

// failureDelay sleeps 50-150ms so a failed login's latency says nothing
// about how far the comparison got.
func failureDelay() {
	jitter, err := rand.Int(rand.Reader, big.NewInt(100))
	if err != nil {
		jitter = big.NewInt(50)
	}
	time.Sleep(time.Duration(50+jitter.Int64()) * time.Millisecond)
}

// ==================== Contributions ====================

func (s *Server) listContributions(c *gin.Context) {
	contributions, err := s.store.List()
	if err != nil {
		s.logger.Error("Failed to list contributions", zap.Error(err))
		c.JSON(500, gin.H{"error": "Failed to list contributions"})
		return
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 0 {
			c.JSON(400, gin.H{"error": "Invalid limit"})
			return
		}
		if limit < len(contributions) {
			contributions = contributions[:limit]
		}
	}

	c.JSON(200, contributions)
}

func (s *Server) scanContributions(c *gin.Context) {
	found, err := s.scanner.Scan(c.Request.Context())
	if err != nil {
		s.logger.Warn("Manual contribution scan failed", zap.Error(err))
		c.JSON(409, gin.H{"error": err.Error(), "found": found})
		return
	}

	c.JSON(200, gin.H{"success": true, "found": found})
}

func (s *Server) adminStats(c *gin.Context) {
	stats, err := s.scanner.Stats(c.Request.Context())
	if err != nil {
		s.logger.Error("Failed to compute presale stats", zap.Error(err))
		c.JSON(500, gin.H{"error": "Failed to compute stats"})
		return
	}

	c.JSON(200, stats)
}

func (s *Server) presaleStats(c *gin.Context) {
	stats, err := s.publicStatsSnapshot(c)
	if err != nil {
		s.logger.Error("Failed to compute presale stats", zap.Error(err))
		c.JSON(500, gin.H{"error": "Failed to compute stats"})
		return
	}

	c.JSON(200, stats)
}

// publicStatsSnapshot serves the landing-page stats from a short-lived
// snapshot. Without it every anonymous page load would turn into a live
// getBalance call against the providers, which is the throttling the
// failover client exists to dodge.
func (s *Server) publicStatsSnapshot(c *gin.Context) (*models.PresaleStats, error) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	if s.statsSnapshot != nil && time.Since(s.statsTakenAt) < s.cfg.Presale.StatsCacheTTL {
		return s.statsSnapshot, nil
	}

	stats, err := s.scanner.Stats(c.Request.Context())
	if err != nil {
		return nil, err
	}

	// The public view omits individual senders.
	stats.Recent = nil

	s.statsSnapshot = stats
	s.statsTakenAt = time.Now()
	return stats, nil
}

// ==================== Logs and monitoring ====================

func (s *Server) getLogs(c *gin.Context) {
	n := 100
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil {
			n = parsed
		}
	}

	c.JSON(200, gin.H{"logs": logger.GlobalBuffer.GetRecent(n)})
}

func (s *Server) clearLogs(c *gin.Context) {
	logger.GlobalBuffer.Clear()
	c.JSON(200, gin.H{"success": true})
}

func (s *Server) getSystemStatus(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	c.JSON(200, gin.H{
		"uptime":           time.Since(s.startedAt).Round(time.Second).String(),
		"memoryAlloc":      fmt.Sprintf("%.2f MB", float64(m.Alloc)/1024/1024),
		"memorySys":        fmt.Sprintf("%.2f MB", float64(m.Sys)/1024/1024),
		"numGC":            m.NumGC,
		"loginRateLimiter": s.loginLimiter.Stats(),
		"rpcRateLimiter":   s.rpcLimiter.Stats(),
	})
}

// ==================== Settings ====================

func (s *Server) getSettings(c *gin.Context) {
	// Security settings deliberately excluded.
	c.JSON(200, gin.H{
		"server":  s.cfg.Server,
		"logging": s.cfg.Logging,
		"presale": s.cfg.Presale,
		"rpc":     s.cfg.RPC,
	})
}
