package proxy

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dvcrn/bearer-proxy/internal/client"
	"github.com/dvcrn/bearer-proxy/internal/credentials"
)

var (
	errAdminKeyMissing = errors.New("missing Authorization or X-API-Key header")
	errAdminKeyFormat  = errors.New("authorization header is not 'Bearer <key>'")
	errAdminKeyInvalid = errors.New("admin key does not match")
)

// adminKeyFrom extracts the presented key. Authorization wins over X-API-Key
// when both are set.
func adminKeyFrom(r *http.Request) (string, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, key, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || key == "" || strings.ContainsRune(key, ' ') {
			return "", errAdminKeyFormat
		}
		return key, nil
	}
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key, nil
	}
	return "", errAdminKeyMissing
}

// adminMiddleware guards the credential endpoints with the configured key.
func (s *Server) adminMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.adminKey == "" {
			s.logger.Error().Msg("Admin key not configured")
			http.Error(w, "Admin API not configured", http.StatusInternalServerError)
			return
		}

		key, err := adminKeyFrom(r)
		if err == nil && subtle.ConstantTimeCompare([]byte(key), []byte(s.adminKey)) != 1 {
			err = errAdminKeyInvalid
		}
		if err != nil {
			s.logger.Warn().
				Err(err).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("remote_addr", r.RemoteAddr).
				Msg("Rejected admin request")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next(w, r)
	}
}

// credentialsHandler handles POST /admin/credentials.
func (s *Server) credentialsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var rec credentials.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		s.logger.Error().Err(err).Msg("Failed to parse request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if rec.AccessToken == "" {
		http.Error(w, "Missing required field: accessToken", http.StatusBadRequest)
		return
	}

	if err := s.store.Write(r.Context(), rec); err != nil {
		s.logger.Error().Err(err).Msg("Failed to update credentials")
		status := http.StatusInternalServerError
		if errors.Is(err, credentials.ErrReadOnly) {
			status = http.StatusConflict
		}
		http.Error(w, "Failed to update credentials", status)
		return
	}

	s.logger.Info().Msg("Credentials updated successfully")
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Credentials updated successfully",
	})
}

// credentialsStatusHandler handles GET /admin/credentials/status.
func (s *Server) credentialsStatusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	rec, err := s.store.Read(r.Context())
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"hasCredentials": false,
			"error":          err.Error(),
		})
		return
	}
	if rec == nil {
		writeJSON(w, http.StatusOK, map[string]any{"hasCredentials": false})
		return
	}

	response := map[string]any{
		"hasCredentials": true,
		"userID":         rec.UserID,
		"expiresAt":      rec.ExpiresAt,
		"isExpired":      rec.Expired(time.Now(), 0),
	}
	if rec.ExpiresAt != 0 {
		response["minutesUntilExpiry"] = int64(rec.Until(time.Now()) / time.Minute)
	}
	writeJSON(w, http.StatusOK, response)
}

// credentialsRefreshHandler handles POST /admin/credentials/refresh. It
// joins a refresh already in flight instead of starting another.
func (s *Server) credentialsRefreshHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	d := s.client.Dispatcher()
	if d == nil {
		http.Error(w, "Credential handling disabled", http.StatusNotImplemented)
		return
	}

	if _, err := d.ForceRefresh(r.Context()); err != nil {
		switch {
		case errors.Is(err, client.ErrNoSession):
			http.Error(w, "No stored credentials", http.StatusNotFound)
		case errors.Is(err, client.ErrSessionExpired):
			s.logger.Error().Err(err).Msg("❌ Forced refresh failed")
			http.Error(w, "Refresh failed", http.StatusBadGateway)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	s.logger.Info().Msg("✅ Credentials refreshed on request")
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "success",
		"refreshes": d.Refreshes(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
