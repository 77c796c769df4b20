package server

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/brk3/habitcal/internal/config"
	"github.com/brk3/habitcal/internal/logger"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gorilla/securecookie"
	"golang.org/x/oauth2"
)

const (
	sessionMaxAge = 24 * time.Hour
	loginTTL      = 5 * time.Minute
	cookieName    = "session"
	apiKeyPrefix  = "hab_"
	liveKeyPrefix = apiKeyPrefix + "live_"
)

type userCtxKey struct{}

type User struct {
	Subject string
	Email   string
	UserID  string
	Claims  map[string]any
}

// AuthProvider is one configured OIDC identity provider.
type AuthProvider struct {
	name       string
	oauth2     *oauth2.Config
	oidcProv   *oidc.Provider
	idVerifier *oidc.IDTokenVerifier
	logins     *loginStates
}

func ConfigureOIDCProviders(cfg *config.Config) (map[string]*AuthProvider, *securecookie.SecureCookie, error) {
	logger.Info("Configuring OIDC providers", "count", len(cfg.OIDCProviders))

	hashKey := securecookie.GenerateRandomKey(64)
	blockKey := securecookie.GenerateRandomKey(32)
	if hashKey == nil || blockKey == nil {
		return nil, nil, fmt.Errorf("failed to generate secure cookie keys")
	}
	sessionCookie := securecookie.New(hashKey, blockKey)
	sessionCookie.MaxAge(int(sessionMaxAge.Seconds()))

	providers := make(map[string]*AuthProvider, len(cfg.OIDCProviders))
	for _, p := range cfg.OIDCProviders {
		prov, err := oidc.NewProvider(context.Background(), p.IssuerURL)
		if err != nil {
			logger.Error("Failed to create OIDC provider", "id", p.Id, "issuer", p.IssuerURL, "error", err)
			return nil, nil, fmt.Errorf("failed to create OIDC provider %q: %w", p.Id, err)
		}

		scopes := p.Scopes
		if len(scopes) == 0 {
			scopes = []string{oidc.ScopeOpenID, "email", oidc.ScopeOfflineAccess}
		}
		providers[p.Id] = &AuthProvider{
			name: p.Name,
			oauth2: &oauth2.Config{
				ClientID:     p.ClientID,
				ClientSecret: p.ClientSecret,
				Endpoint:     prov.Endpoint(),
				RedirectURL:  p.RedirectURL,
				Scopes:       scopes,
			},
			oidcProv:   prov,
			idVerifier: prov.Verifier(&oidc.Config{ClientID: p.ClientID}),
			logins:     newLoginStates(loginTTL),
		}
		logger.Info("OIDC provider configured", "id", p.Id, "name", p.Name)
	}

	return providers, sessionCookie, nil
}

// credential is whatever a request presented to prove who it is.
type credential struct {
	apiKey     string
	providerID string
	idToken    string
	fromCookie bool
}

// credentialFrom reads the session cookie, falling back to the
// Authorization header. Bearer values are API keys when they carry the
// hab_ prefix and "provider:jwt" ID tokens otherwise.
func (s *Server) credentialFrom(r *http.Request) credential {
	if c, err := r.Cookie(cookieName); err == nil {
		var prefixed string
		if err := s.sessionCookie.Decode(cookieName, c.Value, &prefixed); err == nil {
			if pID, tok, err := parseProviderToken(prefixed); err == nil {
				return credential{providerID: pID, idToken: tok, fromCookie: true}
			}
		} else {
			logger.Debug("Failed to decode session cookie", "error", err)
		}
	}

	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return credential{}
	}
	if strings.HasPrefix(token, apiKeyPrefix) {
		return credential{apiKey: token}
	}
	if pID, tok, err := parseProviderToken(token); err == nil {
		return credential{providerID: pID, idToken: tok}
	}
	return credential{}
}

var errUnauthenticated = errors.New("unauthenticated")

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cred := s.credentialFrom(r)

		if cred.apiKey != "" {
			user, ok := s.authenticateAPIKey(cred.apiKey)
			if !ok {
				RecordAuthEvent("verification", "failed", "apikey")
				s.handleAuthFailure(w, r, false)
				return
			}
			RecordAuthEvent("verification", "success", "apikey")
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userCtxKey{}, user)))
			return
		}

		prov, known := s.authProviders[cred.providerID]
		if cred.idToken == "" || !known {
			RecordAuthEvent("verification", "missing_token", "unknown")
			s.handleAuthFailure(w, r, false)
			return
		}

		idTok, err := s.verifyOrRefresh(w, r.Context(), cred, prov)
		if err != nil {
			logger.Debug("ID token rejected", "provider", cred.providerID, "error", err)
			s.handleAuthFailure(w, r, true)
			return
		}

		var claims map[string]any
		if err := idTok.Claims(&claims); err != nil {
			logger.Error("Failed to extract claims from token", "error", err)
			s.handleAuthFailure(w, r, true)
			return
		}
		u := &User{
			Subject: idTok.Subject,
			Email:   strClaim(claims, "email"),
			UserID:  userIDFromClaims(claims),
			Claims:  claims,
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userCtxKey{}, u)))
	})
}

// verifyOrRefresh verifies the presented ID token. An expired token is
// exchanged through the stored refresh token, and a cookie session is
// rewritten with the new one.
func (s *Server) verifyOrRefresh(w http.ResponseWriter, ctx context.Context, cred credential, prov *AuthProvider) (*oidc.IDToken, error) {
	idTok, err := prov.idVerifier.Verify(ctx, cred.idToken)
	if err == nil {
		RecordAuthEvent("verification", "success", cred.providerID)
		return idTok, nil
	}
	RecordAuthEvent("verification", "failed", cred.providerID)

	fresh, ok := s.tryRefreshToken(ctx, cred.providerID, cred.idToken)
	if !ok {
		RecordAuthEvent("refresh", "failed", cred.providerID)
		return nil, fmt.Errorf("%w: %v", errUnauthenticated, err)
	}
	idTok, err = prov.idVerifier.Verify(ctx, fresh)
	if err != nil {
		RecordAuthEvent("refresh", "verification_failed", cred.providerID)
		return nil, fmt.Errorf("%w: refreshed token: %v", errUnauthenticated, err)
	}
	RecordAuthEvent("refresh", "success", cred.providerID)

	if cred.fromCookie {
		val, err := s.sessionCookie.Encode(cookieName, cred.providerID+":"+fresh)
		if err != nil {
			return nil, fmt.Errorf("encoding refreshed session: %w", err)
		}
		setSessionCookie(w, val, int(sessionMaxAge.Seconds()))
	}
	return idTok, nil
}

// parseProviderToken splits a "provider:jwt" token.
func parseProviderToken(token string) (providerID, jwt string, err error) {
	if token == "" {
		return "", "", fmt.Errorf("empty token")
	}
	providerID, jwt, ok := strings.Cut(token, ":")
	switch {
	case !ok:
		return "", "", fmt.Errorf("invalid token format: expected 'provider:jwt'")
	case providerID == "":
		return "", "", fmt.Errorf("empty provider ID")
	case jwt == "":
		return "", "", fmt.Errorf("empty JWT token")
	}
	return providerID, jwt, nil
}

func strClaim(m map[string]any, k string) string {
	if v, ok := m[k].(string); ok {
		return v
	}
	return ""
}

// userIDFromClaims derives a stable user ID from the issuer and subject.
func userIDFromClaims(claims map[string]any) string {
	iss := strClaim(claims, "iss")
	sub := strClaim(claims, "sub")
	if iss == "" || sub == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(iss + "|" + sub))
	return fmt.Sprintf("user-%x", hash[:8])
}

// userIDFromContext extracts the user ID from an authenticated request. With
// auth disabled every caller is the single local user.
func userIDFromContext(authEnabled bool, r *http.Request) string {
	if !authEnabled {
		return localUserID
	}
	user, ok := r.Context().Value(userCtxKey{}).(*User)
	if !ok {
		logger.Error("No user in context")
		return ""
	}
	return user.UserID
}

func (s *Server) handleAuthFailure(w http.ResponseWriter, r *http.Request, clearCookie bool) {
	if clearCookie {
		setSessionCookie(w, "", -1)
	}

	accept := r.Header.Get("Accept")
	if r.Method == http.MethodGet && (accept == "" || strings.Contains(accept, "text/html")) {
		http.Redirect(w, r, "/auth/login", http.StatusFound)
		return
	}
	if clearCookie {
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	} else {
		w.Header().Set("WWW-Authenticate", `Bearer realm="habitcal"`)
	}
	http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
}

// tryRefreshToken exchanges the refresh token stored for the owner of an
// expired ID token and returns the new ID token.
func (s *Server) tryRefreshToken(ctx context.Context, providerID, expiredIDToken string) (string, bool) {
	provider := s.authProviders[providerID]
	verifier := provider.oidcProv.Verifier(&oidc.Config{
		ClientID:        provider.oauth2.ClientID,
		SkipExpiryCheck: true,
	})
	expired, err := verifier.Verify(ctx, expiredIDToken)
	if err != nil {
		logger.Debug("Expired token is not ours", "provider", providerID, "error", err)
		return "", false
	}
	var claims map[string]any
	if err := expired.Claims(&claims); err != nil {
		return "", false
	}
	userID := userIDFromClaims(claims)
	if userID == "" {
		return "", false
	}

	stored, exists, err := s.store.GetRefreshToken(userID)
	if err != nil {
		logger.Error("Failed to retrieve refresh token", "userID", userID, "error", err)
		return "", false
	}
	if !exists {
		return "", false
	}

	fresh, err := provider.oauth2.TokenSource(ctx, stored).Token()
	if err != nil {
		logger.Debug("Token refresh failed", "userID", userID, "error", err)
		if delErr := s.store.DeleteRefreshToken(userID); delErr != nil {
			logger.Error("Failed to delete refresh token", "userID", userID, "error", delErr)
		}
		return "", false
	}
	if err := s.store.PutRefreshToken(userID, fresh); err != nil {
		logger.Error("Failed to persist refresh token", "userID", userID, "error", err)
	}

	newIDToken, ok := fresh.Extra("id_token").(string)
	if !ok || newIDToken == "" {
		logger.Debug("No id_token in refreshed token", "userID", userID)
		return "", false
	}
	logger.Debug("Refreshed session", "userID", userID, "expiry", fresh.Expiry)
	return newIDToken, true
}

// authenticateAPIKey resolves an API key to the user it was issued to.
func (s *Server) authenticateAPIKey(apiKey string) (*User, bool) {
	keyHash := hashAPIKey(apiKey)
	userID, found, err := s.store.GetAPIKey(keyHash)
	if err != nil {
		logger.Error("Failed to lookup API key", "error", err)
		return nil, false
	}
	if !found {
		logger.Debug("Unknown API key", "keyHash", truncateHash(keyHash))
		return nil, false
	}

	// API keys carry no OIDC subject or email
	return &User{
		UserID:  userID,
		Subject: "apikey:" + truncateHash(keyHash),
		Claims:  map[string]any{"auth_method": "api_key"},
	}, true
}
