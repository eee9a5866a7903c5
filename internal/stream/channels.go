package stream

// SystemChannel carries process-wide events published through
// Hub.PublishSystem (§4.9); breaker trips and kill-switch activations
// are not published to it.
const SystemChannel = "system"

// PriceChannel names the last-value-wins channel for symbol.
func PriceChannel(symbol string) string { return "prices:" + symbol }

// TradeChannel names a user's never-drop trade event channel.
func TradeChannel(userID string) string { return "trades:" + userID }

// NotificationChannel names a user's never-drop notification channel.
func NotificationChannel(userID string) string { return "notifications:" + userID }

// PublishPrice fans a quote update out to PriceChannel(symbol) using the
// last-value-wins policy implied by OverflowDropOldest plus a
// single-slot buffer.
func (h *Hub) PublishPrice(symbol string, payload any) {
	h.Publish(PriceChannel(symbol), payload)
}

// PublishTrade fans a trade event out to the owning user's channel.
func (h *Hub) PublishTrade(userID string, payload any) {
	h.Publish(TradeChannel(userID), payload)
}

// PublishNotification fans a notification out to the owning user's
// channel.
func (h *Hub) PublishNotification(userID string, payload any) {
	h.Publish(NotificationChannel(userID), payload)
}

// PublishSystem fans a system-wide event out to every system
// subscriber.
func (h *Hub) PublishSystem(payload any) {
	h.Publish(SystemChannel, payload)
}

// SubscribePrice joins the last-value-wins price channel for symbol.
func (h *Hub) SubscribePrice(symbol string) *Subscriber {
	return h.Subscribe(PriceChannel(symbol), OverflowDropOldest, PriceChannelBuffer)
}

// SubscribeTrades joins userID's never-drop trade channel.
func (h *Hub) SubscribeTrades(userID string) *Subscriber {
	return h.Subscribe(TradeChannel(userID), OverflowDisconnect, UserChannelBuffer)
}

// SubscribeNotifications joins userID's never-drop notification
// channel.
func (h *Hub) SubscribeNotifications(userID string) *Subscriber {
	return h.Subscribe(NotificationChannel(userID), OverflowDisconnect, UserChannelBuffer)
}

// SubscribeSystem joins the global system channel.
func (h *Hub) SubscribeSystem() *Subscriber {
	return h.Subscribe(SystemChannel, OverflowDropOldest, PriceChannelBuffer)
}
