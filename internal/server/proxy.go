package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxRPCBodySize = 64 * 1024

// Methods the frontend legitimately needs; everything else is refused before
// it reaches a provider.
var allowedRPCMethods = map[string]bool{
	"getBalance":                        true,
	"getAccountInfo":                    true,
	"getLatestBlockhash":                true,
	"getRecentBlockhash":                true,
	"getSignaturesForAddress":           true,
	"getSignatureStatuses":              true,
	"getTransaction":                    true,
	"getTokenAccountsByOwner":           true,
	"getMinimumBalanceForRentExemption": true,
	"sendTransaction":                   true,
	"simulateTransaction":               true,
}

// rpcProxy forwards a JSON-RPC request to the configured Solana providers,
// failing over across them so the browser never sees a single provider's
// throttling. The response body is passed through untouched.
func (s *Server) rpcProxy(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxRPCBodySize+1))
	if err != nil {
		c.JSON(400, gin.H{"error": "Failed to read request"})
		return
	}
	if len(body) > maxRPCBodySize {
		c.JSON(413, gin.H{"error": "Request too large"})
		return
	}

	var probe struct {
		Method string `json:"method"`
	}
	if err := json.Unmarshal(body, &probe); err != nil || probe.Method == "" {
		c.JSON(400, gin.H{"error": "Invalid JSON-RPC request"})
		return
	}

	if !allowedRPCMethods[probe.Method] {
		s.logger.Warn("Blocked RPC method",
			zap.String("method", probe.Method),
			zap.String("client_ip", c.ClientIP()))
		c.JSON(403, gin.H{"error": "Method not allowed"})
		return
	}

	client := &http.Client{Timeout: s.cfg.RPC.Timeout}
	var lastErr error

	for attempt, endpoint := range s.cfg.RPC.Endpoints {
		req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			c.JSON(500, gin.H{"error": "Failed to create upstream request"})
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			s.logger.Warn("RPC provider request failed",
				zap.String("endpoint", endpoint),
				zap.String("method", probe.Method),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			lastErr = err
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode != http.StatusOK {
			s.logger.Warn("RPC provider returned error",
				zap.String("endpoint", endpoint),
				zap.String("method", probe.Method),
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt+1))
			lastErr = fmt.Errorf("HTTP %d from %s", resp.StatusCode, endpoint)
			continue
		}

		c.Data(200, "application/json", respBody)
		return
	}

	s.logger.Error("All RPC providers failed",
		zap.String("method", probe.Method),
		zap.Int("providers", len(s.cfg.RPC.Endpoints)),
		zap.Error(lastErr))
	c.JSON(503, gin.H{"error": "All RPC providers unavailable"})
}
