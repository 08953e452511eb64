package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pookie-sol/presale-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func rpcServer(t *testing.T, handler func(req models.RPCRequest) (any, *models.RPCError)) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req models.RPCRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		result, rpcErr := handler(req)
		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestGetBalance(t *testing.T) {
	srv := rpcServer(t, func(req models.RPCRequest) (any, *models.RPCError) {
		assert.Equal(t, "getBalance", req.Method)
		return map[string]any{"value": 2_500_000_000}, nil
	})
	defer srv.Close()

	c := New([]string{srv.URL}, 5*time.Second, zap.NewNop())

	balance, err := c.GetBalance(context.Background(), "treasury")
	require.NoError(t, err)
	assert.Equal(t, 2.5, balance)
}

func TestCall_FailoverToSecondEndpoint(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	}))
	defer bad.Close()

	good := rpcServer(t, func(req models.RPCRequest) (any, *models.RPCError) {
		return map[string]any{"value": 1_000_000_000}, nil
	})
	defer good.Close()

	c := New([]string{bad.URL, good.URL}, 5*time.Second, zap.NewNop())

	balance, err := c.GetBalance(context.Background(), "treasury")
	require.NoError(t, err)
	assert.Equal(t, 1.0, balance)
}

func TestCall_RPCErrorTriggersFailover(t *testing.T) {
	erroring := rpcServer(t, func(req models.RPCRequest) (any, *models.RPCError) {
		return nil, &models.RPCError{Code: -32005, Message: "node is behind"}
	})
	defer erroring.Close()

	good := rpcServer(t, func(req models.RPCRequest) (any, *models.RPCError) {
		return map[string]any{"value": 0}, nil
	})
	defer good.Close()

	c := New([]string{erroring.URL, good.URL}, 5*time.Second, zap.NewNop())

	_, err := c.GetBalance(context.Background(), "treasury")
	assert.NoError(t, err)
}

func TestCall_AllEndpointsFail(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer bad.Close()

	c := New([]string{bad.URL}, 5*time.Second, zap.NewNop())

	_, err := c.Call(context.Background(), "getBalance", []interface{}{"treasury"})
	assert.ErrorContains(t, err, "all rpc endpoints failed")
}

func TestGetSignaturesForAddress_Pagination(t *testing.T) {
	srv := rpcServer(t, func(req models.RPCRequest) (any, *models.RPCError) {
		opts, ok := req.Params[1].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "cursor-sig", opts["before"])
		return []map[string]any{
			{"signature": "sig1", "blockTime": 1700000000},
			{"signature": "sig2", "blockTime": 1700000100},
		}, nil
	})
	defer srv.Close()

	c := New([]string{srv.URL}, 5*time.Second, zap.NewNop())

	sigs, err := c.GetSignaturesForAddress(context.Background(), "treasury", 50, "cursor-sig")
	require.NoError(t, err)
	require.Len(t, sigs, 2)
	assert.Equal(t, "sig1", sigs[0].Signature)
	assert.Equal(t, int64(1700000100), sigs[1].BlockTime)
}

func TestGetTransaction_NullResult(t *testing.T) {
	srv := rpcServer(t, func(req models.RPCRequest) (any, *models.RPCError) {
		return nil, nil
	})
	defer srv.Close()

	c := New([]string{srv.URL}, 5*time.Second, zap.NewNop())

	tx, err := c.GetTransaction(context.Background(), "gone")
	require.NoError(t, err)
	assert.Nil(t, tx)
}
