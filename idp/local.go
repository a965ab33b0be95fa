package idp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/jwt"
	"github.com/go-chi/chi/v5"
)

// Local issues and rotates token pairs in process.
type Local struct {
	manager *jwt.Manager
}

func NewLocal(m *jwt.Manager) (*Local, error) {
	if m == nil {
		return nil, errors.New("idp: jwt manager required")
	}
	return &Local{manager: m}, nil
}

// Issue signs a first pair for uid in tenantID.
func (l *Local) Issue(tenantID, uid string) (goGuard.TokenPair, error) {
	pair, err := l.manager.IssuePair(uid, tenantID)
	if err != nil {
		return goGuard.TokenPair{}, err
	}
	return goGuard.TokenPair{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, nil
}

// Refresh verifies refreshToken for tenantID and issues a new pair for the
// same subject. Replay protection is the caller's job.
func (l *Local) Refresh(ctx context.Context, tenantID, refreshToken string) (goGuard.TokenPair, error) {
	if err := ctx.Err(); err != nil {
		return goGuard.TokenPair{}, err
	}
	claims, err := l.manager.Parse(refreshToken, jwt.TypeRefresh, tenantID)
	if err != nil {
		return goGuard.TokenPair{}, fmt.Errorf("%w: %v", ErrRejected, err)
	}
	return l.Issue(claims.TID, claims.UID)
}

// Keys returns the published verification keys sorted by kid.
func (l *Local) Keys() []PublicKey {
	published := l.manager.PublicKeys()
	out := make([]PublicKey, 0, len(published))
	for kid, k := range published {
		out = append(out, PublicKey{KeyID: kid, Algorithm: l.manager.Algorithm(), Key: k})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].KeyID < out[j].KeyID })
	return out
}

// Handler serves the provider endpoints consumed by [Client].
func (l *Local) Handler() http.Handler {
	r := chi.NewRouter()
	r.Post("/tenants/{tenant}/token/refresh", l.handleRefresh)
	r.Get("/keys", l.handleKeys)
	return r
}

func (l *Local) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxResponseBytes)).Decode(&req); err != nil || req.RefreshToken == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request"})
		return
	}

	pair, err := l.Refresh(r.Context(), chi.URLParam(r, "tenant"), req.RefreshToken)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid refresh token"})
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

func (l *Local) handleKeys(w http.ResponseWriter, _ *http.Request) {
	keys := l.Keys()
	out := keysResponse{Keys: make([]jsonKey, 0, len(keys))}
	for _, k := range keys {
		out.Keys = append(out.Keys, jsonKey{
			KeyID:     k.KeyID,
			Algorithm: k.Algorithm,
			Key:       base64.RawURLEncoding.EncodeToString(k.Key),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
