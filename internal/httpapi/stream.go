package httpapi

import (
	"net/http"
	"strings"

	"github.com/tradecore/backend/internal/stream"
	"github.com/tradecore/backend/pkg/errs"
)

// handleWebSocket implements the `/ws` upgrade of §6: the client
// authenticates with the same bearer token as every other route (via
// the auth middleware wired in routes.go) and names the fan-out channel
// it wants in the upgrade URL's `channel` and `symbol` query
// parameters. Subscribe messages sent over the open socket are not
// read as subscriptions; frames from the client are discarded.
// Only one subscription per connection is supported; a client that
// wants several channels opens several connections, matching the
// Hub's one-subscriber-one-channel design (internal/stream/hub.go).
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())

	channel := r.URL.Query().Get("channel")
	symbol := r.URL.Query().Get("symbol")

	sub, err := s.resolveSubscription(p.UserID, channel, symbol)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := stream.Serve(w, r, s.hub, sub); err != nil {
		// Connection-level errors (client disconnects, network resets)
		// are expected and not worth logging at error severity; Serve
		// already unsubscribed before returning.
		return
	}
}

func (s *Server) resolveSubscription(userID, channel, symbol string) (*stream.Subscriber, error) {
	switch channel {
	case "prices":
		if symbol == "" {
			return nil, errs.New(errs.KindValidation, "symbol is required for the prices channel")
		}
		return s.hub.SubscribePrice(strings.ToUpper(symbol)), nil
	case "trades":
		return s.hub.SubscribeTrades(userID), nil
	case "notifications":
		return s.hub.SubscribeNotifications(userID), nil
	case "system":
		return s.hub.SubscribeSystem(), nil
	default:
		return nil, errs.New(errs.KindValidation, "unknown channel")
	}
}
