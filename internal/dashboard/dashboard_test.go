package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BatmanBruc/club-membership-bot/store"
	"github.com/BatmanBruc/club-membership-bot/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const token = "s3cret"

func newServer(t *testing.T, rate int) (http.Handler, *store.MemoryStore) {
	t.Helper()
	mem := store.NewMemoryStore()
	ctx := context.Background()
	due := time.Date(2026, 4, 1, 12, 30, 45, 0, time.UTC)
	require.NoError(t, mem.UpsertMembership(ctx, &types.Membership{UserID: 1, Username: "alice", Plan: types.PlanMonthly, State: types.StateActive, DueDate: due}))
	require.NoError(t, mem.UpsertMembership(ctx, &types.Membership{UserID: 2, Plan: types.PlanYearly, State: types.StatePendingDecision, DueDate: due.AddDate(0, 0, -40)}))
	rt := due.Add(-time.Hour)
	require.NoError(t, mem.SavePending(ctx, &types.PendingRequest{UserID: 3, Status: types.StatusWaitingApproval, Plan: types.PlanMonthly, RequestTime: &rt}))
	require.NoError(t, mem.SetSetting(ctx, "price_monthly", "500"))
	require.NoError(t, mem.ConfirmOldMember(ctx, types.ConfirmedOldMember{UserID: 4, ConfirmedBy: 1, ConfirmedAt: due.Add(-48 * time.Hour)}))
	src := Sources{Memberships: mem, Pending: mem, Settings: mem, OldMembers: mem}
	return NewServer(src, Config{Token: token, RateLimit: rate}).Router(), mem
}

func get(h http.Handler, path, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthIsPublic(t *testing.T) {
	h, _ := newServer(t, 0)
	rec := get(h, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAPIRequiresToken(t *testing.T) {
	h, _ := newServer(t, 0)
	assert.Equal(t, http.StatusUnauthorized, get(h, "/api/memberships", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(h, "/api/memberships", "wrong").Code)
	assert.Equal(t, http.StatusOK, get(h, "/api/memberships", token).Code)
}

func TestListMemberships(t *testing.T) {
	h, _ := newServer(t, 0)
	rec := get(h, "/api/memberships", token)
	require.Equal(t, http.StatusOK, rec.Code)

	var docs []types.MembershipDocument
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &docs))
	require.Len(t, docs, 2)
	assert.Equal(t, "2026-04-01 12:30:45", docs[0].DueDate)
	assert.True(t, docs[0].HasPaid)
	assert.True(t, docs[1].AdminActionPending)
	assert.False(t, docs[1].HasPaid)

	rec = get(h, "/api/memberships?state=pending_decision", token)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &docs))
	require.Len(t, docs, 1)
	assert.Equal(t, int64(2), docs[0].UserID)
}

func TestGetMembership(t *testing.T) {
	h, _ := newServer(t, 0)
	assert.Equal(t, http.StatusOK, get(h, "/api/memberships/1", token).Code)
	assert.Equal(t, http.StatusNotFound, get(h, "/api/memberships/99", token).Code)
	assert.Equal(t, http.StatusBadRequest, get(h, "/api/memberships/abc", token).Code)
}

func TestListPending(t *testing.T) {
	h, _ := newServer(t, 0)
	rec := get(h, "/api/pending", token)
	require.Equal(t, http.StatusOK, rec.Code)

	var views []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, "waiting_approval", views[0]["status"])
	assert.Equal(t, "2026-04-01 11:30:45", views[0]["request_time"])
}

func TestRateLimit(t *testing.T) {
	h, _ := newServer(t, 2)
	assert.Equal(t, http.StatusOK, get(h, "/api/pending", token).Code)
	assert.Equal(t, http.StatusOK, get(h, "/api/pending", token).Code)
	assert.Equal(t, http.StatusTooManyRequests, get(h, "/api/pending", token).Code)
}

func TestListSettingsAndOldMembers(t *testing.T) {
	h, _ := newServer(t, 0)

	rec := get(h, "/api/settings", token)
	require.Equal(t, http.StatusOK, rec.Code)
	var settings map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &settings))
	assert.Equal(t, "500", settings["price_monthly"])

	rec = get(h, "/api/old-members", token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"user_id":4,"confirmed_by":1,"confirmed_at":"2026-03-30 12:30:45"}]`, rec.Body.String())

	assert.Equal(t, http.StatusUnauthorized, get(h, "/api/settings", "").Code)
}
