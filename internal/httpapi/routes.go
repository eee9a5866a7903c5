package httpapi

import "net/http"

// Routes builds the process's single http.Handler. Grounded on
// internal/health/health.go's NewServer, which wires its own
// http.ServeMux by hand rather than through a router framework —
// nothing in the pack imports one, so this is the "no foreign library"
// choice, not a stdlib shortcut against the corpus's grain.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)
	mux.HandleFunc("/metrics", s.handleMetrics)

	mux.HandleFunc("/auth/register", s.handleRegister)
	mux.HandleFunc("/auth/login", s.handleLogin)

	mux.HandleFunc("/account/mode", requireAuth(s.users, s.handleSetMode))

	mux.HandleFunc("/portfolio", requireAuth(s.users, s.handlePortfolio))
	mux.HandleFunc("/risk/status", requireAuth(s.users, s.handleRiskStatus))

	mux.HandleFunc("/trades", requireAuth(s.users, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			s.handleSubmitTrade(w, r)
		default:
			s.handleListTrades(w, r)
		}
	}))

	mux.HandleFunc("/approvals", requireAuth(s.users, s.handleListApprovals))
	mux.HandleFunc("/approvals/", requireAuth(s.users, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case hasSuffix(r.URL.Path, "/approve"):
			s.handleApproveProposal(w, r)
		case hasSuffix(r.URL.Path, "/reject"):
			s.handleRejectProposal(w, r)
		default:
			writeNotFound(w)
		}
	}))

	mux.HandleFunc("/platforms", requireAuth(s.users, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			s.handleCreatePlatform(w, r)
		default:
			s.handleListPlatforms(w, r)
		}
	}))
	mux.HandleFunc("/platforms/", requireAuth(s.users, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case hasSuffix(r.URL.Path, "/test"):
			s.handleTestPlatform(w, r)
		case hasSuffix(r.URL.Path, "/default"):
			s.handleSetDefaultPlatform(w, r)
		case r.Method == http.MethodDelete:
			s.handleDeletePlatform(w, r)
		default:
			writeNotFound(w)
		}
	}))

	mux.HandleFunc("/market/quotes", requireAuth(s.users, s.handleQuotes))
	mux.HandleFunc("/market/", requireAuth(s.users, s.handleQuote))

	mux.HandleFunc("/alerts", requireAuth(s.users, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			s.handleCreateAlert(w, r)
		default:
			s.handleListAlerts(w, r)
		}
	}))
	mux.HandleFunc("/alerts/", requireAuth(s.users, s.handleDismissAlert))
	mux.HandleFunc("/notifications", requireAuth(s.users, s.handleListNotifications))

	mux.HandleFunc("/kill-switch", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodDelete:
			requireAdmin(s.users, s.handleDeactivateKillSwitch)(w, r)
		default:
			requireAdmin(s.users, s.handleActivateKillSwitch)(w, r)
		}
	})

	mux.HandleFunc("/ai/analyze", requireAuth(s.users, s.handleAIAnalyze))

	mux.HandleFunc("/ws", requireAuth(s.users, s.handleWebSocket))

	return mux
}

func hasSuffix(path, suffix string) bool {
	if len(path) < len(suffix) {
		return false
	}
	return path[len(path)-len(suffix):] == suffix
}

func writeNotFound(w http.ResponseWriter) {
	writeError(w, notFoundErr)
}
