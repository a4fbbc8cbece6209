package binance

// Kline represents a single candlestick.
type Kline struct {
	OpenTime  int64   // ms
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	CloseTime int64 // ms
}

// Fill is the confirmed outcome of a market order: the average fill price
// over all partial fills and the executed quantity.
type Fill struct {
	Price    float64
	Quantity float64
}

// Closes extracts the close series from a set of klines, oldest first.
func Closes(klines []Kline) []float64 {
	out := make([]float64, len(klines))
	for i, k := range klines {
		out[i] = k.Close
	}
	return out
}
