package httpapi

import (
	"net/http"
	"strings"
)

// handleQuote implements `GET /market/{symbol}` (§6).
func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	symbol := strings.TrimPrefix(r.URL.Path, "/market/")
	symbol = strings.TrimSuffix(symbol, "/")
	quote, err := s.aggregator.Quote(r.Context(), symbol)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

// handleQuotes implements `GET /market/quotes?symbols=...` (§6): the
// response maps each requested symbol to either its Quote or a
// MissingQuote explaining why no price was available.
func (s *Server) handleQuotes(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("symbols")
	if raw == "" {
		writeJSON(w, http.StatusOK, map[string]interface{}{})
		return
	}
	symbols := strings.Split(raw, ",")

	quotes, missing := s.aggregator.Quotes(r.Context(), symbols)
	out := make(map[string]interface{}, len(symbols))
	for symbol, q := range quotes {
		out[symbol] = q
	}
	for _, m := range missing {
		out[m.Symbol] = m
	}
	writeJSON(w, http.StatusOK, out)
}
