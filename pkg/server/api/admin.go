package api

import (
	"encoding/json"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/lockbook/lockbook-core/pkg/server/api/auth"
	"github.com/lockbook/lockbook-core/pkg/server/store"
)

// adminService backs the operator-facing account management surface: the
// one part of this server that isn't reachable by a regular account's
// signed envelope. It holds its own credential and JWT issuer, entirely
// independent of Service's per-account store and blob backends.
type adminService struct {
	username     string
	passwordHash []byte
	jwt          *auth.Service
	store        *store.Store
}

func newAdminService(username, passwordHash string, jwtSvc *auth.Service, s *store.Store) *adminService {
	return &adminService{username: username, passwordHash: []byte(passwordHash), jwt: jwtSvc, store: s}
}

type adminLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (a *adminService) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req adminLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	if req.Username != a.username || bcrypt.CompareHashAndPassword(a.passwordHash, []byte(req.Password)) != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	pair, err := a.jwt.IssueTokenPair(req.Username)
	if err != nil {
		http.Error(w, "failed to issue session", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

type adminRefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (a *adminService) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req adminRefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	claims, err := a.jwt.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		http.Error(w, "invalid or expired refresh token", http.StatusUnauthorized)
		return
	}
	pair, err := a.jwt.IssueTokenPair(claims.Subject)
	if err != nil {
		http.Error(w, "failed to issue session", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (a *adminService) handleMe(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Username string `json:"username"`
	}{Username: claims.Subject})
}

type adminAccountSummary struct {
	Username  string `json:"username"`
	CreatedAt string `json:"created_at"`
	UsedBytes uint64 `json:"used_bytes"`
}

// handleListAccounts lists every registered account with its current
// storage usage, the operator-facing view spec.md's usage accounting has
// no other surface for since regular accounts only ever see their own.
func (a *adminService) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := a.store.ListAccounts(r.Context())
	if err != nil {
		http.Error(w, "failed to list accounts", http.StatusInternalServerError)
		return
	}
	summaries := make([]adminAccountSummary, 0, len(accounts))
	for _, acc := range accounts {
		usage, err := a.store.GetUsage(r.Context(), acc.PublicKey)
		if err != nil {
			http.Error(w, "failed to compute usage", http.StatusInternalServerError)
			return
		}
		var used uint64
		for _, size := range usage {
			used += size
		}
		summaries = append(summaries, adminAccountSummary{
			Username:  acc.Username,
			CreatedAt: acc.CreatedAt.Format(timeFormatRFC3339),
			UsedBytes: used,
		})
	}
	writeJSON(w, http.StatusOK, struct {
		Accounts []adminAccountSummary `json:"accounts"`
	}{Accounts: summaries})
}

const timeFormatRFC3339 = "2006-01-02T15:04:05Z07:00"
