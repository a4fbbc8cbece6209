// Package signal holds the pure computations behind the mean-reversion
// strategy: a short EMA reversal setup and trend-extrapolated support and
// resistance lines. Nothing here touches the network or the ledger.
package signal

import (
	"errors"

	"meanrev-bot/pkg/market/binance"
)

// ErrInsufficientData is returned when a candle series is too short for the
// requested computation.
var ErrInsufficientData = errors.New("insufficient candle data")

// EMA computes the exponential moving average series of values with the
// given window, seeded with the simple average of the first window. The
// result has len(values)-window+1 entries; the last one corresponds to the
// last input value.
func EMA(values []float64, window int) ([]float64, error) {
	if window <= 0 || len(values) < window {
		return nil, ErrInsufficientData
	}

	seed := 0.0
	for _, v := range values[:window] {
		seed += v
	}
	seed /= float64(window)

	out := make([]float64, 0, len(values)-window+1)
	out = append(out, seed)
	mult := 2.0 / float64(window+1)
	prev := seed
	for _, v := range values[window:] {
		prev = (v-prev)*mult + prev
		out = append(out, prev)
	}
	return out, nil
}

// SupportResistance derives support and resistance lines over the full
// window. The support anchor is the lowest low; the line through it takes
// the flattest slope that keeps every later low on or above it, then is
// projected forward to the latest bar. Resistance mirrors this from the
// highest high. The lines are independent trend extrapolations, not flat
// levels, so support above resistance is possible and not an error.
func SupportResistance(klines []binance.Kline) (support, resistance float64, err error) {
	if len(klines) == 0 {
		return 0, 0, ErrInsufficientData
	}

	lowIdx, highIdx := 0, 0
	for i, k := range klines {
		if k.Low < klines[lowIdx].Low {
			lowIdx = i
		}
		if k.High > klines[highIdx].High {
			highIdx = i
		}
	}

	last := len(klines) - 1
	support = project(klines, lowIdx, last, true)
	resistance = project(klines, highIdx, last, false)
	return support, resistance, nil
}

// project extends the trend line anchored at idx to the target bar. For a
// support line the slope is the smallest rise over the bars after the
// anchor (the line stays under the lows); for resistance it is the largest.
func project(klines []binance.Kline, idx, target int, isSupport bool) float64 {
	anchor := klines[idx].High
	if isSupport {
		anchor = klines[idx].Low
	}
	if idx >= target {
		return anchor
	}

	slope := 0.0
	first := true
	for i := idx + 1; i <= target; i++ {
		val := klines[i].High
		if isSupport {
			val = klines[i].Low
		}
		s := (val - anchor) / float64(i-idx)
		if first || (isSupport && s < slope) || (!isSupport && s > slope) {
			slope = s
			first = false
		}
	}
	return anchor + slope*float64(target-idx)
}

// Entry reports the reversal entry setup: the latest bar peaked and closed
// strictly below its short EMA.
func Entry(klines []binance.Kline, emaWindow int) (bool, error) {
	ema, err := EMA(binance.Closes(klines), emaWindow)
	if err != nil {
		return false, err
	}
	last := klines[len(klines)-1]
	ref := ema[len(ema)-1]
	return last.High < ref && last.Close < ref, nil
}

// Exit reports the symmetric opposite of Entry: the latest bar bottomed and
// opened strictly above its short EMA. The sell decision is gated on the
// price target alone; this signal is advisory.
func Exit(klines []binance.Kline, emaWindow int) (bool, error) {
	ema, err := EMA(binance.Closes(klines), emaWindow)
	if err != nil {
		return false, err
	}
	last := klines[len(klines)-1]
	ref := ema[len(ema)-1]
	return last.Low > ref && last.Open > ref, nil
}
