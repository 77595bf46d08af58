package strategy

import (
	"fmt"
	"sync"

	"coinbase_bot/internal/models"
)

// RSI — пороговая стратегия: buy при RSI < oversold, sell при RSI > overbought.
// RSI = 100 - 100/(1+RS), RS = средний гейн / средний лосс за окно.
type RSI struct {
	mu         sync.Mutex
	window     int
	oversold   float64
	overbought float64
	hist       map[string][]float64
}

func NewRSI(window int, oversold, overbought float64) *RSI {
	return &RSI{
		window:     window,
		oversold:   oversold,
		overbought: overbought,
		hist:       map[string][]float64{},
	}
}

func (s *RSI) Name() models.StrategyType { return models.StrategyRSI }

func (s *RSI) OnPrice(pair string, price float64) models.Signal {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := append(s.hist[pair], price)
	// для окна window нужно window+1 цен (window приращений)
	if len(h) > s.window+1 {
		h = h[len(h)-s.window-1:]
	}
	s.hist[pair] = h

	sig := models.Signal{Pair: pair, Price: price, Strategy: models.StrategyRSI}

	rsi, ok := s.value(h)
	if !ok {
		return sig
	}

	switch {
	case rsi < s.oversold:
		sig.Side = models.SideBuy
		sig.Reason = fmt.Sprintf("RSI %.2f < oversold %.0f", rsi, s.oversold)
	case rsi > s.overbought:
		sig.Side = models.SideSell
		sig.Reason = fmt.Sprintf("RSI %.2f > overbought %.0f", rsi, s.overbought)
	}
	return sig
}

func (s *RSI) value(h []float64) (float64, bool) {
	if len(h) < s.window+1 {
		return 0, false
	}

	var gain, loss float64
	for i := 1; i < len(h); i++ {
		change := h[i] - h[i-1]
		if change > 0 {
			gain += change
		} else {
			loss -= change
		}
	}
	avgGain := gain / float64(s.window)
	avgLoss := loss / float64(s.window)

	// плоское окно (цена не двигалась) — не перекупленность, сигнала нет
	if avgGain == 0 && avgLoss == 0 {
		return 0, false
	}
	if avgLoss == 0 {
		return 100, true
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), true
}

func (s *RSI) Dump(pair string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	rsi, ok := s.value(s.hist[pair])
	if !ok {
		return "RSI=warmup"
	}
	return fmt.Sprintf("RSI=%.2f", rsi)
}
