package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/middleware"
	"github.com/go-chi/chi/v5"
)

// maxTTLSeconds is the longest TTL a time.Duration can hold.
const maxTTLSeconds = math.MaxInt64 / int64(time.Second)

type errorBody struct {
	Error string `json:"error"`
}

type verdictBody struct {
	Allowed           bool   `json:"allowed"`
	Category          string `json:"category"`
	Identifier        string `json:"identifier"`
	CurrentCount      int64  `json:"current_count"`
	Limit             int    `json:"limit"`
	Remaining         int    `json:"remaining"`
	RetryAfterSeconds int64  `json:"retry_after_seconds"`
	Action            string `json:"action"`
	Blocked           bool   `json:"blocked"`
	Degraded          bool   `json:"degraded"`
}

type denyEntryBody struct {
	ID         string `json:"id"`
	TTLSeconds int64  `json:"ttl_seconds"`
}

type ttlRequest struct {
	TTLSeconds int64 `json:"ttl_seconds"`
}

type refreshRequest struct {
	TenantID     string `json:"tenant_id"`
	UserID       string `json:"user_id"`
	RefreshToken string `json:"refresh_token"`
}

type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type failureRequest struct {
	Category   string `json:"category"`
	Identifier string `json:"identifier"`
}

type failureResponse struct {
	Count           int64 `json:"count"`
	Blocked         bool  `json:"blocked"`
	BlockTTLSeconds int64 `json:"block_ttl_seconds"`
}

type reportBody struct {
	Policies              map[string]policyBody `json:"policies"`
	FailOpen              bool                  `json:"fail_open"`
	FailureWindowSeconds  int64                 `json:"failure_window_seconds"`
	FailureThreshold      int                   `json:"failure_threshold"`
	FailureBlockSeconds   int64                 `json:"failure_block_seconds"`
	LeaseTTLMillis        int64                 `json:"lease_ttl_ms"`
	UpstreamTimeoutMillis int64                 `json:"upstream_timeout_ms"`
	KeyedTokenHash        bool                  `json:"keyed_token_hash"`
	IdentityProvider      bool                  `json:"identity_provider"`
	AuditEnabled          bool                  `json:"audit_enabled"`
	AuditDelivered        uint64                `json:"audit_delivered"`
	AuditDropped          uint64                `json:"audit_dropped"`
	AuditDroppedByType    map[string]uint64     `json:"audit_dropped_by_type"`
	MetricsEnabled        bool                  `json:"metrics_enabled"`
}

type policyBody struct {
	MaxRequests   int   `json:"max_requests"`
	WindowSeconds int64 `json:"window_seconds"`
}

func (s *server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.TenantID == "" || req.UserID == "" || req.RefreshToken == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "tenant_id, user_id and refresh_token are required"})
		return
	}
	ctx := goGuard.WithTenantID(r.Context(), req.TenantID)

	// Keyed by caller address as well: user_id is unauthenticated here.
	if v, err := s.engine.CheckRateLimit(ctx, goGuard.CategoryTokenRefresh, s.clientIP(r), req.TenantID, req.UserID); err != nil {
		middleware.WriteError(w, v, err)
		return
	}

	pair, err := s.engine.RefreshAccessToken(ctx, req.TenantID, req.UserID, req.RefreshToken)
	if err != nil {
		middleware.WriteError(w, goGuard.Verdict{}, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, refreshResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

func (s *server) handleFailure(w http.ResponseWriter, r *http.Request) {
	var req failureRequest
	if !s.decode(w, r, &req) {
		return
	}
	c, err := goGuard.ParseCategory(req.Category)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	res, err := s.engine.RecordFailureWithResult(r.Context(), c, req.Identifier)
	if err != nil {
		middleware.WriteError(w, goGuard.Verdict{}, err)
		return
	}
	writeJSON(w, http.StatusOK, failureResponse{
		Count:           res.Count,
		Blocked:         res.Blocked,
		BlockTTLSeconds: int64(res.BlockTTL / time.Second),
	})
}

func (s *server) handleRateLimitStatus(w http.ResponseWriter, r *http.Request) {
	c, ok := categoryParam(w, r)
	if !ok {
		return
	}
	v, err := s.engine.GetRateLimitStatus(r.Context(), c, chi.URLParam(r, "identifier"))
	if err != nil {
		middleware.WriteError(w, goGuard.Verdict{}, err)
		return
	}
	writeJSON(w, http.StatusOK, toVerdictBody(v))
}

func (s *server) handleRateLimitReset(w http.ResponseWriter, r *http.Request) {
	c, ok := categoryParam(w, r)
	if !ok {
		return
	}
	adminID := strings.TrimSpace(r.Header.Get("X-Admin-ID"))
	if adminID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "X-Admin-ID header is required"})
		return
	}
	if err := s.engine.ResetRateLimit(r.Context(), c, chi.URLParam(r, "identifier"), adminID); err != nil {
		middleware.WriteError(w, goGuard.Verdict{}, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleListBlocked(w http.ResponseWriter, r *http.Request) {
	entries, err := s.engine.GetBlockedIPs(r.Context())
	s.writeEntries(w, entries, err)
}

func (s *server) handleListLocked(w http.ResponseWriter, r *http.Request) {
	entries, err := s.engine.GetLockedAccounts(r.Context())
	s.writeEntries(w, entries, err)
}

func (s *server) handleBlockIP(w http.ResponseWriter, r *http.Request) {
	d, ok := s.decodeTTL(w, r)
	if !ok {
		return
	}
	if err := s.engine.BlockIP(r.Context(), chi.URLParam(r, "ip"), d); err != nil {
		middleware.WriteError(w, goGuard.Verdict{}, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleUnblockIP(w http.ResponseWriter, r *http.Request) {
	existed, err := s.engine.UnblockIP(r.Context(), chi.URLParam(r, "ip"))
	writeRemoved(w, existed, err)
}

func (s *server) handleLockAccount(w http.ResponseWriter, r *http.Request) {
	d, ok := s.decodeTTL(w, r)
	if !ok {
		return
	}
	if err := s.engine.LockAccount(r.Context(), chi.URLParam(r, "userID"), d); err != nil {
		middleware.WriteError(w, goGuard.Verdict{}, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleUnlockAccount(w http.ResponseWriter, r *http.Request) {
	existed, err := s.engine.UnlockAccount(r.Context(), chi.URLParam(r, "userID"))
	writeRemoved(w, existed, err)
}

func (s *server) handleSecurityReport(w http.ResponseWriter, _ *http.Request) {
	rep := s.engine.SecurityReport()
	out := reportBody{
		Policies:              make(map[string]policyBody, len(rep.Policies)),
		FailOpen:              rep.FailOpen,
		FailureWindowSeconds:  int64(rep.FailureWindow / time.Second),
		FailureThreshold:      rep.FailureThreshold,
		FailureBlockSeconds:   int64(rep.FailureBlockDuration / time.Second),
		LeaseTTLMillis:        rep.LeaseTTL.Milliseconds(),
		UpstreamTimeoutMillis: rep.UpstreamTimeout.Milliseconds(),
		KeyedTokenHash:        rep.KeyedTokenHash,
		IdentityProvider:      rep.IdentityProviderWired,
		AuditEnabled:          rep.AuditEnabled,
		AuditDelivered:        rep.AuditDelivered,
		AuditDropped:          rep.AuditDropped,
		AuditDroppedByType:    rep.AuditDroppedByType,
		MetricsEnabled:        rep.MetricsEnabled,
	}
	for c, p := range rep.Policies {
		out.Policies[c.String()] = policyBody{MaxRequests: p.MaxRequests, WindowSeconds: int64(p.Window / time.Second)}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) writeEntries(w http.ResponseWriter, entries []goGuard.DenyEntry, err error) {
	if err != nil {
		middleware.WriteError(w, goGuard.Verdict{}, err)
		return
	}
	out := make([]denyEntryBody, 0, len(entries))
	for _, e := range entries {
		out = append(out, denyEntryBody{ID: e.ID, TTLSeconds: ceilSeconds(e.TTL)})
	}
	writeJSON(w, http.StatusOK, out)
}

func writeRemoved(w http.ResponseWriter, existed bool, err error) {
	if err != nil {
		middleware.WriteError(w, goGuard.Verdict{}, err)
		return
	}
	if !existed {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "request body too large"})
			return false
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf("invalid json: %v", err)})
		return false
	}
	return true
}

func (s *server) decodeTTL(w http.ResponseWriter, r *http.Request) (time.Duration, bool) {
	var req ttlRequest
	if !s.decode(w, r, &req) {
		return 0, false
	}
	if req.TTLSeconds <= 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "ttl_seconds must be > 0"})
		return 0, false
	}
	if req.TTLSeconds > maxTTLSeconds {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf("ttl_seconds must be <= %d", maxTTLSeconds)})
		return 0, false
	}
	return time.Duration(req.TTLSeconds) * time.Second, true
}

func categoryParam(w http.ResponseWriter, r *http.Request) (goGuard.Category, bool) {
	c, err := goGuard.ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return 0, false
	}
	return c, true
}

func toVerdictBody(v goGuard.Verdict) verdictBody {
	return verdictBody{
		Allowed:           v.Allowed,
		Category:          v.Category.String(),
		Identifier:        v.Identifier,
		CurrentCount:      v.CurrentCount,
		Limit:             v.Limit,
		Remaining:         v.Remaining,
		RetryAfterSeconds: v.RetryAfterSeconds(),
		Action:            v.Action.String(),
		Blocked:           v.Blocked,
		Degraded:          v.Degraded,
	}
}

func ceilSeconds(d time.Duration) int64 {
	secs := int64(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return secs
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
