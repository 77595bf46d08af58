package strategy

import (
	"fmt"
	"sync"

	"coinbase_bot/internal/models"
)

// MACross — пересечение простых скользящих средних.
// buy: short > long, sell: short < long, равенство — нет сделки.
// Пока истории меньше длинного окна, среднее считается нулевым и сигналов нет.
type MACross struct {
	mu    sync.Mutex
	short int
	long  int
	hist  map[string][]float64
}

func NewMACross(short, long int) *MACross {
	return &MACross{
		short: short,
		long:  long,
		hist:  map[string][]float64{},
	}
}

func (s *MACross) Name() models.StrategyType { return models.StrategyMACross }

func (s *MACross) OnPrice(pair string, price float64) models.Signal {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := append(s.hist[pair], price)
	// хвоста длинного окна достаточно, дальше история не нужна
	if len(h) > s.long {
		h = h[len(h)-s.long:]
	}
	s.hist[pair] = h

	shortMA := sma(h, s.short)
	longMA := sma(h, s.long)

	sig := models.Signal{Pair: pair, Price: price, Strategy: models.StrategyMACross}

	// ноль означает "мало данных", не настоящий кроссовер
	if shortMA == 0 || longMA == 0 {
		return sig
	}

	switch {
	case shortMA > longMA:
		sig.Side = models.SideBuy
		sig.Reason = fmt.Sprintf("short MA %.4f > long MA %.4f", shortMA, longMA)
	case shortMA < longMA:
		sig.Side = models.SideSell
		sig.Reason = fmt.Sprintf("short MA %.4f < long MA %.4f", shortMA, longMA)
	}
	return sig
}

func (s *MACross) Dump(pair string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.hist[pair]
	return fmt.Sprintf("MA_S=%.4f MA_L=%.4f n=%d", sma(h, s.short), sma(h, s.long), len(h))
}

// sma — простое среднее хвоста длиной window; 0 при нехватке истории.
func sma(prices []float64, window int) float64 {
	if window <= 0 || len(prices) < window {
		return 0
	}
	sum := 0.0
	for _, p := range prices[len(prices)-window:] {
		sum += p
	}
	return sum / float64(window)
}
