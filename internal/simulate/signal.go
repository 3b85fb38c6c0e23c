// Package simulate produces synthetic multi-channel EEG recordings and
// streams them to an ingest endpoint chunk by chunk, the way a bedside
// device would.
package simulate

import (
	"math"
	"math/rand"
)

// CHBMITChannels is the 23-channel bipolar montage of the CHB-MIT scalp
// recordings. The repeated T8-P8 derivation carries a suffix so names stay
// unique.
var CHBMITChannels = []string{
	"FP1-F7", "F7-T7", "T7-P7", "P7-O1",
	"FP1-F3", "F3-C3", "C3-P3", "P3-O1",
	"FP2-F4", "F4-C4", "C4-P4", "P4-O2",
	"FP2-F8", "F8-T8", "T8-P8-0", "P8-O2",
	"FZ-CZ", "CZ-PZ", "P7-T7", "T7-FT9",
	"FT9-FT10", "FT10-T8", "T8-P8-1",
}

// band is one rhythmic component of the synthetic signal.
type band struct {
	freq      float64 // Hz
	amplitude float64 // µV
}

var bands = []band{
	{freq: 2, amplitude: 20},  // delta
	{freq: 6, amplitude: 10},  // theta
	{freq: 10, amplitude: 25}, // alpha
	{freq: 20, amplitude: 5},  // beta
}

// Generate returns len(channels) rows of seconds*rate samples in µV.
// Each channel mixes the classic rhythms with its own phase plus gaussian
// noise. The same seed always yields the same recording.
func Generate(channels []string, rate, seconds int, seed int64) [][]float64 {
	rng := rand.New(rand.NewSource(seed))
	n := rate * seconds

	data := make([][]float64, len(channels))
	for c := range data {
		phases := make([]float64, len(bands))
		for i := range phases {
			phases[i] = rng.Float64() * 2 * math.Pi
		}

		row := make([]float64, n)
		for s := range row {
			t := float64(s) / float64(rate)
			var v float64
			for i, b := range bands {
				v += b.amplitude * math.Sin(2*math.Pi*b.freq*t+phases[i])
			}
			row[s] = v + rng.NormFloat64()*3
		}
		data[c] = row
	}
	return data
}

// Split cuts [channel][sample] data into chunks of size samples per
// channel. A trailing partial chunk is dropped.
func Split(data [][]float64, size int) [][][]float64 {
	if len(data) == 0 || size <= 0 {
		return nil
	}
	total := len(data[0])

	var chunks [][][]float64
	for start := 0; start+size <= total; start += size {
		chunk := make([][]float64, len(data))
		for c := range data {
			chunk[c] = data[c][start : start+size]
		}
		chunks = append(chunks, chunk)
	}
	return chunks
}
