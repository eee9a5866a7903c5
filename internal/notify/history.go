package notify

import "sync"

// historyDepth bounds how many samples are kept per symbol, enough for
// the default RSI period plus headroom without growing unbounded for a
// symbol that is watched indefinitely.
const historyDepth = 200

// series is one symbol's trailing price/volume samples, oldest first.
type series struct {
	prices  []float64
	volumes []float64
}

// PriceHistory accumulates the trailing samples the RSI and
// volume-spike conditions need; the Aggregator itself only ever serves
// the latest Quote, so the alert engine keeps its own short window
// (§4.8 condition evaluation needs more than a single point-in-time
// quote).
type PriceHistory struct {
	mu   sync.Mutex
	data map[string]*series
}

func NewPriceHistory() *PriceHistory {
	return &PriceHistory{data: make(map[string]*series)}
}

// Record appends a new sample for symbol, trimming to historyDepth.
func (h *PriceHistory) Record(symbol string, price, volume float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.data[symbol]
	if !ok {
		s = &series{}
		h.data[symbol] = s
	}
	s.prices = append(s.prices, price)
	s.volumes = append(s.volumes, volume)
	if len(s.prices) > historyDepth {
		s.prices = s.prices[len(s.prices)-historyDepth:]
		s.volumes = s.volumes[len(s.volumes)-historyDepth:]
	}
}

// Prices returns a copy of symbol's trailing price samples.
func (h *PriceHistory) Prices(symbol string) []float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.data[symbol]
	if !ok {
		return nil
	}
	out := make([]float64, len(s.prices))
	copy(out, s.prices)
	return out
}

// AverageVolume returns the mean of symbol's trailing volume samples
// excluding the most recent one, so the spike comparison is against
// what came before it rather than including itself.
func (h *PriceHistory) AverageVolume(symbol string) (float64, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.data[symbol]
	if !ok || len(s.volumes) < 2 {
		return 0, false
	}
	prior := s.volumes[:len(s.volumes)-1]
	var sum float64
	for _, v := range prior {
		sum += v
	}
	return sum / float64(len(prior)), true
}
