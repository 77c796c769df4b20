package server

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/brk3/habitcal/internal/logger"
	"github.com/go-chi/chi/v5"
	"golang.org/x/oauth2"
)

func (s *Server) provider(w http.ResponseWriter, r *http.Request) (string, *AuthProvider, bool) {
	id := chi.URLParam(r, "id")
	p, ok := s.authProviders[id]
	if !ok {
		http.Error(w, `{"error":"unknown provider"}`, http.StatusNotFound)
		return "", nil, false
	}
	return id, p, true
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	_, prov, ok := s.provider(w, r)
	if !ok {
		return
	}

	// Generate PKCE challenge
	verifier := make([]byte, 48)
	if _, err := rand.Read(verifier); err != nil {
		http.Error(w, "pkce gen failed", http.StatusInternalServerError)
		return
	}
	verifierStr := base64.RawURLEncoding.EncodeToString(verifier)
	hash := sha256.Sum256([]byte(verifierStr))
	challenge := base64.RawURLEncoding.EncodeToString(hash[:])

	// Generate state
	stateBytes := make([]byte, 16)
	if _, err := rand.Read(stateBytes); err != nil {
		http.Error(w, "state gen failed", http.StatusInternalServerError)
		return
	}
	st := hex.EncodeToString(stateBytes)

	// Capture return path (sanitize to keep it relative)
	ret := r.URL.Query().Get("return")
	if ret == "" {
		ret = "/"
	} else if u, err := url.Parse(ret); err != nil || u.IsAbs() || u.Host != "" {
		ret = "/"
	}

	prov.logins.Start(st, verifierStr, ret)

	authURL := prov.oauth2.AuthCodeURL(
		st,
		oauth2.SetAuthURLParam("code_challenge", challenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
	http.Redirect(w, r, authURL, http.StatusFound)
}

func (s *Server) callback(w http.ResponseWriter, r *http.Request) {
	id, prov, ok := s.provider(w, r)
	if !ok {
		return
	}
	st := r.URL.Query().Get("state")
	if st == "" {
		http.Error(w, "missing state", http.StatusBadRequest)
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing code", http.StatusBadRequest)
		return
	}

	saved, ok := prov.logins.Take(st)
	if !ok {
		http.Error(w, "invalid or expired state", http.StatusBadRequest)
		return
	}

	tok, err := prov.oauth2.Exchange(
		r.Context(),
		code,
		oauth2.SetAuthURLParam("code_verifier", saved.Verifier),
	)
	if err != nil {
		http.Error(w, "code exchange failed", http.StatusBadGateway)
		return
	}
	rawIDToken, ok := tok.Extra("id_token").(string)
	if !ok {
		http.Error(w, "no id_token in response", http.StatusBadGateway)
		return
	}
	if rawIDToken == "" {
		http.Error(w, "no id_token", http.StatusBadGateway)
		return
	}
	idToken, err := prov.idVerifier.Verify(r.Context(), rawIDToken)
	if err != nil {
		http.Error(w, "id_token invalid", http.StatusUnauthorized)
		return
	}

	// Store complete token for future refresh
	logger.Debug("Processing token storage", "hasRefreshToken", tok.RefreshToken != "", "expiry", tok.Expiry)
	if tok.RefreshToken != "" {
		var claims map[string]any
		if err := idToken.Claims(&claims); err != nil {
			logger.Error("Failed to extract claims from ID token", "error", err)
			http.Error(w, "token claims invalid", http.StatusUnauthorized)
			return
		}

		userID := userIDFromClaims(claims)
		if userID != "" {
			if err := s.store.PutRefreshToken(userID, tok); err != nil {
				logger.Error("Failed to persist refresh token", "userID", userID, "error", err)
			} else {
				logger.Debug("Stored oauth2 token for user", "userID", userID, "expiry", tok.Expiry)
			}
		} else {
			logger.Debug("Failed to calculate userID from claims")
		}
	} else {
		logger.Debug("No refresh token in oauth2 token - refresh will not be possible")
	}

	// Set session cookie
	prefixedToken := id + ":" + rawIDToken
	val, err := s.sessionCookie.Encode(cookieName, prefixedToken)
	if err != nil {
		logger.Error("Failed to encode session cookie", "error", err)
		http.Error(w, "session encoding failed", http.StatusInternalServerError)
		return
	}
	setSessionCookie(w, val, int(sessionMaxAge.Seconds()))
	RecordAuthEvent("login", "success", id)

	http.Redirect(w, r, saved.Return, http.StatusFound)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	setSessionCookie(w, "", -1)
	logger.Info("User logout completed")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) simpleLogin(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, `<h1>Login</h1><style>button{display:block;margin:10px 0;padding:10px 20px;}</style>`)
	ids := make([]string, 0, len(s.authProviders))
	for id := range s.authProviders {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintf(w, `<form action="/auth/login/%s"><button>%s</button></form>`,
			html.EscapeString(id), html.EscapeString(s.authProviders[id].name))
	}
}

func (s *Server) getAPIToken(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(cookieName)
	if err != nil {
		http.Error(w, "not logged in", http.StatusUnauthorized)
		return
	}

	var prefixedToken string
	if err := s.sessionCookie.Decode(cookieName, cookie.Value, &prefixedToken); err != nil {
		http.Error(w, "invalid session cookie", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	if _, err := w.Write([]byte(prefixedToken)); err != nil {
		logger.Error("Failed to write API token", "error", err)
	}
}

func (s *Server) generateAPIKey(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(true, r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	key, err := newAPIKey()
	if err != nil {
		logger.Error("Failed to generate API key", "error", err)
		writeError(w, http.StatusInternalServerError, "key generation failed")
		return
	}
	keyHash := hashAPIKey(key)
	if err := s.store.PutAPIKey(keyHash, userID); err != nil {
		logger.Error("Failed to store API key", "userID", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}
	logger.Info("API key generated", "userID", userID, "keyHash", truncateHash(keyHash))

	if err := writeJSON(w, http.StatusOK, map[string]string{"api_key": key}); err != nil {
		logger.Error("Failed to serialize API key response", "error", err)
	}
}

func (s *Server) listAPIKeys(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(true, r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	hashes, err := s.store.ListAPIKeyHashes(userID)
	if err != nil {
		logger.Error("Failed to list API keys", "userID", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}
	resp := APIKeyListResponse{Keys: make([]APIKeyInfo, 0, len(hashes))}
	for _, h := range hashes {
		resp.Keys = append(resp.Keys, APIKeyInfo{Prefix: truncateHash(h)})
	}
	if err := writeJSON(w, http.StatusOK, resp); err != nil {
		logger.Error("Failed to serialize API key list", "error", err)
	}
}

// deleteAPIKey revokes the caller's key whose hash starts with the given
// prefix. An ambiguous prefix is rejected.
func (s *Server) deleteAPIKey(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(true, r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	prefix := strings.TrimSuffix(chi.URLParam(r, "prefix"), "...")
	if prefix == "" {
		writeError(w, http.StatusBadRequest, "key prefix is required")
		return
	}

	hashes, err := s.store.ListAPIKeyHashes(userID)
	if err != nil {
		logger.Error("Failed to list API keys", "userID", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}
	var matches []string
	for _, h := range hashes {
		if strings.HasPrefix(h, prefix) {
			matches = append(matches, h)
		}
	}
	switch len(matches) {
	case 0:
		writeError(w, http.StatusNotFound, "api key not found")
		return
	case 1:
	default:
		writeError(w, http.StatusConflict, "key prefix is ambiguous")
		return
	}

	if err := s.store.DeleteAPIKey(matches[0]); err != nil {
		logger.Error("Failed to delete API key", "userID", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}
	logger.Info("API key revoked", "userID", userID, "keyHash", truncateHash(matches[0]))
	w.WriteHeader(http.StatusNoContent)
}

