package audio

import (
	"errors"
	"math"
	"sort"
)

// Low-level signal helpers shared by the feature extractors. Frames are
// non-centered: the final partial frame is dropped.

func mean(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += v
	}
	return sum / float64(len(x))
}

// std is the population standard deviation.
func std(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	m := mean(x)
	var sum float64
	for _, v := range x {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(x)))
}

func minMax(x []float64) (float64, float64) {
	if len(x) == 0 {
		return 0, 0
	}
	lo, hi := x[0], x[0]
	for _, v := range x[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

func diff(x []float64) []float64 {
	if len(x) < 2 {
		return nil
	}
	out := make([]float64, len(x)-1)
	for i := 1; i < len(x); i++ {
		out[i-1] = x[i] - x[i-1]
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round3(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Round(v*1000) / 1000
}

// sanitize replaces NaN/Inf with zero so no non-finite value escapes to
// serialized output.
func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func hannWindow(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// fft computes an in-place radix-2 Cooley-Tukey transform. len(re) must be a
// power of two and equal to len(im).
func fft(re, im []float64) {
	n := len(re)
	if n <= 1 {
		return
	}
	// Bit-reversal permutation.
	for i, j := 1, 0; i < n; i++ {
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j ^= bit
		}
		j ^= bit
		if i < j {
			re[i], re[j] = re[j], re[i]
			im[i], im[j] = im[j], im[i]
		}
	}
	for length := 2; length <= n; length <<= 1 {
		ang := -2 * math.Pi / float64(length)
		wRe, wIm := math.Cos(ang), math.Sin(ang)
		for start := 0; start < n; start += length {
			cwRe, cwIm := 1.0, 0.0
			half := length / 2
			for k := 0; k < half; k++ {
				evenRe, evenIm := re[start+k], im[start+k]
				oddRe := re[start+k+half]*cwRe - im[start+k+half]*cwIm
				oddIm := re[start+k+half]*cwIm + im[start+k+half]*cwRe
				re[start+k], im[start+k] = evenRe+oddRe, evenIm+oddIm
				re[start+k+half], im[start+k+half] = evenRe-oddRe, evenIm-oddIm
				cwRe, cwIm = cwRe*wRe-cwIm*wIm, cwRe*wIm+cwIm*wRe
			}
		}
	}
}

func frameCount(signalLen, frameLen, hop int) int {
	if signalLen < frameLen {
		return 0
	}
	return 1 + (signalLen-frameLen)/hop
}

// powerSpectrogram returns per-frame one-sided power spectra
// (frameLen/2 + 1 bins, Hann windowed). frameLen must be a power of two.
func powerSpectrogram(signal []float64, frameLen, hop int) [][]float64 {
	n := frameCount(len(signal), frameLen, hop)
	if n == 0 {
		return nil
	}
	window := hannWindow(frameLen)
	bins := frameLen/2 + 1
	out := make([][]float64, n)
	re := make([]float64, frameLen)
	im := make([]float64, frameLen)
	for f := 0; f < n; f++ {
		start := f * hop
		for i := 0; i < frameLen; i++ {
			re[i] = signal[start+i] * window[i]
			im[i] = 0
		}
		fft(re, im)
		spec := make([]float64, bins)
		for b := 0; b < bins; b++ {
			spec[b] = re[b]*re[b] + im[b]*im[b]
		}
		out[f] = spec
	}
	return out
}

func rmsFrames(signal []float64, frameLen, hop int) []float64 {
	n := frameCount(len(signal), frameLen, hop)
	out := make([]float64, 0, n)
	for f := 0; f < n; f++ {
		start := f * hop
		var sum float64
		for i := 0; i < frameLen; i++ {
			sum += signal[start+i] * signal[start+i]
		}
		out = append(out, math.Sqrt(sum/float64(frameLen)))
	}
	return out
}

func zcrFrames(signal []float64, frameLen, hop int) []float64 {
	n := frameCount(len(signal), frameLen, hop)
	out := make([]float64, 0, n)
	for f := 0; f < n; f++ {
		start := f * hop
		crossings := 0
		for i := 1; i < frameLen; i++ {
			a, b := signal[start+i-1], signal[start+i]
			if (a >= 0 && b < 0) || (a < 0 && b >= 0) {
				crossings++
			}
		}
		out = append(out, float64(crossings)/float64(frameLen))
	}
	return out
}

// autocorrPitch estimates the fundamental frequency of one frame via the
// normalized autocorrelation peak inside [fmin, fmax]. The clarity threshold
// rejects unvoiced frames.
func autocorrPitch(frame []float64, sampleRate int, fmin, fmax float64) (float64, bool) {
	const clarityThreshold = 0.30

	n := len(frame)
	if n == 0 || fmin <= 0 || fmax <= fmin {
		return 0, false
	}
	var energy float64
	for _, v := range frame {
		energy += v * v
	}
	if energy == 0 {
		return 0, false
	}

	minLag := int(float64(sampleRate) / fmax)
	maxLag := int(float64(sampleRate) / fmin)
	if minLag < 1 {
		minLag = 1
	}
	if maxLag >= n {
		maxLag = n - 1
	}
	if minLag > maxLag {
		return 0, false
	}

	bestLag, bestVal := 0, 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		var acc float64
		for i := 0; i+lag < n; i++ {
			acc += frame[i] * frame[i+lag]
		}
		norm := acc / energy
		if norm > bestVal {
			bestVal = norm
			bestLag = lag
		}
	}
	if bestLag == 0 || bestVal < clarityThreshold {
		return 0, false
	}
	return float64(sampleRate) / float64(bestLag), true
}

func medianFilter(x []float64, k int) []float64 {
	if k <= 1 || len(x) == 0 {
		return append([]float64(nil), x...)
	}
	half := k / 2
	out := make([]float64, len(x))
	buf := make([]float64, 0, k)
	for i := range x {
		lo := i - half
		if lo < 0 {
			lo = 0
		}
		hi := i + half
		if hi >= len(x) {
			hi = len(x) - 1
		}
		buf = append(buf[:0], x[lo:hi+1]...)
		sort.Float64s(buf)
		out[i] = buf[len(buf)/2]
	}
	return out
}

var errSignalTooShort = errors.New("signal shorter than one analysis frame")

// hpssEnergies splits the spectrogram into harmonic and percussive parts by
// median filtering along time and frequency respectively, then sums power
// under hard masks. Errors only when the signal is too short to frame.
func hpssEnergies(signal []float64, frameLen, hop, kernel int) (float64, float64, error) {
	spec := powerSpectrogram(signal, frameLen, hop)
	if len(spec) == 0 {
		return 0, 0, errSignalTooShort
	}
	numFrames := len(spec)
	bins := len(spec[0])

	// Harmonic: smooth each frequency row across time.
	harm := make([][]float64, numFrames)
	for f := range harm {
		harm[f] = make([]float64, bins)
	}
	row := make([]float64, numFrames)
	for b := 0; b < bins; b++ {
		for f := 0; f < numFrames; f++ {
			row[f] = spec[f][b]
		}
		smoothed := medianFilter(row, kernel)
		for f := 0; f < numFrames; f++ {
			harm[f][b] = smoothed[f]
		}
	}

	// Percussive: smooth each frame across frequency.
	var harmonicEnergy, percussiveEnergy float64
	for f := 0; f < numFrames; f++ {
		perc := medianFilter(spec[f], kernel)
		for b := 0; b < bins; b++ {
			if harm[f][b] >= perc[b] {
				harmonicEnergy += spec[f][b]
			} else {
				percussiveEnergy += spec[f][b]
			}
		}
	}
	return harmonicEnergy, percussiveEnergy, nil
}

func hzToMel(hz float64) float64 {
	return 2595 * math.Log10(1+hz/700)
}

func melToHz(mel float64) float64 {
	return 700 * (math.Pow(10, mel/2595) - 1)
}

// melFilterbank builds numFilters triangular filters over bins one-sided
// spectrum bins for the given sample rate.
func melFilterbank(numFilters, bins, sampleRate int) [][]float64 {
	lowMel := hzToMel(0)
	highMel := hzToMel(float64(sampleRate) / 2)
	points := make([]float64, numFilters+2)
	for i := range points {
		m := lowMel + (highMel-lowMel)*float64(i)/float64(numFilters+1)
		hz := melToHz(m)
		points[i] = hz / (float64(sampleRate) / 2) * float64(bins-1)
	}

	filters := make([][]float64, numFilters)
	for f := 0; f < numFilters; f++ {
		filt := make([]float64, bins)
		left, center, right := points[f], points[f+1], points[f+2]
		for b := 0; b < bins; b++ {
			x := float64(b)
			switch {
			case x > left && x <= center && center > left:
				filt[b] = (x - left) / (center - left)
			case x > center && x < right && right > center:
				filt[b] = (right - x) / (right - center)
			}
		}
		filters[f] = filt
	}
	return filters
}

// dctII computes the first numCoeffs DCT-II coefficients with orthonormal
// scaling.
func dctII(x []float64, numCoeffs int) []float64 {
	n := len(x)
	out := make([]float64, numCoeffs)
	if n == 0 {
		return out
	}
	for k := 0; k < numCoeffs; k++ {
		var sum float64
		for i := 0; i < n; i++ {
			sum += x[i] * math.Cos(math.Pi*float64(k)*(float64(i)+0.5)/float64(n))
		}
		scale := math.Sqrt(2 / float64(n))
		if k == 0 {
			scale = math.Sqrt(1 / float64(n))
		}
		out[k] = sum * scale
	}
	return out
}

// regressionDeltas computes per-coefficient time derivatives over a +/-2
// frame regression window. rows is coefficients x frames.
func regressionDeltas(rows [][]float64) [][]float64 {
	const n = 2
	var denom float64
	for i := 1; i <= n; i++ {
		denom += 2 * float64(i*i)
	}
	out := make([][]float64, len(rows))
	for c, row := range rows {
		d := make([]float64, len(row))
		for t := range row {
			var num float64
			for i := 1; i <= n; i++ {
				prev := t - i
				if prev < 0 {
					prev = 0
				}
				next := t + i
				if next >= len(row) {
					next = len(row) - 1
				}
				num += float64(i) * (row[next] - row[prev])
			}
			d[t] = num / denom
		}
		out[c] = d
	}
	return out
}
