package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gpis-formation/satisform/internal/middleware"
	"github.com/gpis-formation/satisform/internal/services"
	"github.com/gpis-formation/satisform/internal/utils"
)

type Router struct {
	store       Store
	responses   *services.ResponseService
	connections *services.ConnectionService
	stats       *services.StatsService
	auth        *services.AuthService
	hub         *Hub
}

func NewRouter(store Store) *Router {
	return &Router{
		store:       store,
		responses:   services.NewResponseService(newResponseStoreAdapter(store)),
		connections: services.NewConnectionService(newConnectionStoreAdapter(store)),
		stats:       services.NewStatsService(newStatsStoreAdapter(store)),
		auth:        services.NewAuthService(newAuthStoreAdapter(store), middleware.SignToken),
		hub:         newHub(),
	}
}

// Auth exposes the auth service so main can bootstrap the admin account.
func (rt *Router) Auth() *services.AuthService { return rt.auth }

// Connections exposes the connection service so main can set the idle window.
func (rt *Router) Connections() *services.ConnectionService { return rt.connections }

func (rt *Router) Register(mux *http.ServeMux) {
	mux.HandleFunc("/health", rt.handleHealth)                     // GET/HEAD
	mux.HandleFunc("/api/responses", rt.handleResponses)           // POST/GET/DELETE
	mux.HandleFunc("/api/connections", rt.handleConnections)       // POST
	mux.HandleFunc("/api/connections/active", rt.handleActiveList) // GET
	mux.HandleFunc("/api/active-users", rt.handleActiveUsers)      // GET
	mux.HandleFunc("/api/stats", rt.handleStats)                   // GET
	mux.HandleFunc("/api/form/status", rt.handleFormStatus)        // GET/POST
	mux.HandleFunc("/api/auth/login", rt.handleLogin)              // POST
	mux.HandleFunc("/api/ws/dashboard", rt.hub.handleDashboard)    // GET (websocket)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeServiceError(w http.ResponseWriter, err error) {
	if se, ok := services.AsServiceError(err); ok {
		status := http.StatusBadRequest
		switch se.Code {
		case services.ErrorForbidden:
			status = http.StatusForbidden
		case services.ErrorNotFound:
			status = http.StatusNotFound
		case services.ErrorConflict:
			status = http.StatusConflict
		case services.ErrorUnauthorized:
			status = http.StatusUnauthorized
		}
		http.Error(w, se.Message, status)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

// broadcastState pushes the fresh dashboard snapshot to websocket clients.
func (rt *Router) broadcastState() {
	rt.hub.Broadcast("stats", rt.stats.Realtime())
	rt.hub.Broadcast("connections", map[string]any{"count": rt.connections.ActiveCount()})
}

// GET/HEAD /health — connectivity probe target for kiosks.
func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	locale := middleware.LocaleFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"status": utils.T(locale, "health.ok")})
}

// POST /api/responses — submit one form (Idempotency-Key dedups retries)
// GET  /api/responses — full archive for the dashboard
// DELETE /api/responses — admin-only clear-all
func (rt *Router) handleResponses(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		result, err := rt.responses.Submit(services.SubmitRequest{
			Payload:        payload,
			IdempotencyKey: r.Header.Get("Idempotency-Key"),
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		locale := middleware.LocaleFromContext(r.Context())
		msgKey := "submit.saved"
		status := http.StatusCreated
		if result.Replayed {
			msgKey = "submit.replayed"
			status = http.StatusOK
		} else {
			rt.broadcastState()
		}
		writeJSON(w, status, map[string]any{
			"success":  true,
			"id":       result.Response.ID,
			"replayed": result.Replayed,
			"message":  utils.T(locale, msgKey),
		})
	case http.MethodGet:
		responses := rt.store.ListResponses()
		writeJSON(w, http.StatusOK, map[string]any{"responses": responses, "count": len(responses)})
	case http.MethodDelete:
		if _, ok := middleware.AdminFromContext(r.Context()); !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		n := rt.store.ClearResponses()
		rt.broadcastState()
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "deleted": n})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// POST /api/connections
// { action: "register"|"unregister"|"unregister_all", sessionId, userAgent, timestamp }
// register doubles as heartbeat for a known session; unregister_all is admin-only.
func (rt *Router) handleConnections(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Action    string `json:"action"`
		SessionID string `json:"sessionId"`
		UserAgent string `json:"userAgent"`
		Timestamp string `json:"timestamp"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	switch req.Action {
	case "", "register":
		var ts time.Time
		if req.Timestamp != "" {
			if t, err := time.Parse(time.RFC3339, req.Timestamp); err == nil {
				ts = t
			}
		}
		ua := req.UserAgent
		if ua == "" {
			ua = r.UserAgent()
		}
		rec, err := rt.connections.Register(req.SessionID, ua, ts)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		rt.broadcastState()
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "connection": rec})
	case "unregister":
		removed := rt.connections.Unregister(req.SessionID)
		rt.broadcastState()
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "removed": removed})
	case "unregister_all":
		if _, ok := middleware.AdminFromContext(r.Context()); !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		n := rt.connections.UnregisterAll()
		rt.broadcastState()
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "removed": n})
	default:
		http.Error(w, "unknown action", http.StatusBadRequest)
	}
}

// GET /api/connections/active
func (rt *Router) handleActiveList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	active := rt.connections.Active()
	writeJSON(w, http.StatusOK, map[string]any{"connections": active, "count": len(active)})
}

// GET /api/active-users — lightweight count for the kiosk footer
func (rt *Router) handleActiveUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":     rt.connections.ActiveCount(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// GET /api/stats
func (rt *Router) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, rt.stats.Realtime())
}

// GET /api/form/status — is the form accepting submissions?
// POST /api/form/status — admin open/close toggle
func (rt *Router) handleFormStatus(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"open": rt.store.FormOpen()})
	case http.MethodPost:
		if _, ok := middleware.AdminFromContext(r.Context()); !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var req struct {
			Open bool `json:"open"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		rt.store.SetFormOpen(req.Open)
		rt.hub.Broadcast("form", map[string]any{"open": req.Open})
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "open": req.Open})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// POST /api/auth/login
func (rt *Router) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	res, err := rt.auth.Login(req.Email, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": res.Token, "adminId": res.AdminID})
}
