package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/qs3c/ainexus_server/internal/model/dto"
	"github.com/qs3c/ainexus_server/internal/testutil"
)

func TestSubscriptionHandler_Status_WalletRequired(t *testing.T) {
	s := setupServer(t)

	w := performRequest(s.engine, "GET", "/api/v1/subscription/status", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Wallet address is required", parseError(t, w))
}

func TestSubscriptionHandler_Status_None(t *testing.T) {
	s := setupServer(t)

	w := performRequest(s.engine, "GET", "/api/v1/subscription/status?wallet="+testutil.TestWallet(), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"hasActiveSubscription":false,"subscription":null}`, w.Body.String())
}

func TestSubscriptionHandler_Upload_Errors(t *testing.T) {
	s := setupServer(t)
	exhausted := testutil.TestSubscription(t, s.db, testutil.WithUploads(0, 20))
	expired := testutil.TestSubscription(t, s.db, testutil.WithPeriodEnd(time.Now().Add(-time.Hour)))

	tests := []struct {
		name       string
		body       interface{}
		wantStatus int
		wantError  string
	}{
		{"missing agent", map[string]string{"walletAddress": exhausted.WalletAddress}, http.StatusBadRequest, "Missing required fields"},
		{"no subscription", dto.ConsumeUploadRequest{WalletAddress: testutil.TestWallet(), AgentID: "a"}, http.StatusForbidden, "No active subscription found"},
		{"expired", dto.ConsumeUploadRequest{WalletAddress: expired.WalletAddress, AgentID: "a"}, http.StatusForbidden, "Subscription has expired"},
		{"exhausted", dto.ConsumeUploadRequest{WalletAddress: exhausted.WalletAddress, AgentID: "a"}, http.StatusForbidden, "No uploads remaining in current period"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := performRequest(s.engine, "POST", "/api/v1/subscription/upload", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantError, parseError(t, w))
		})
	}
}
