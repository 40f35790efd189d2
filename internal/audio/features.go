package audio

import (
	"math"
	"sort"
)

// Severity levels shared by stress indicators.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Stress indicator types.
const (
	StressHighPitchVariation = "high_pitch_variation"
	StressVocalTension       = "vocal_tension"
	StressLowEnergy          = "low_energy"
)

// Features is the full acoustic analysis of one recording.
type Features struct {
	Duration          float64           `json:"duration"`
	Cepstral          CepstralStats     `json:"mfccs"`
	Pitch             PitchStats        `json:"pitch"`
	Energy            EnergyStats       `json:"energy"`
	VoiceQuality      VoiceQualityStats `json:"voice_quality"`
	Prosody           ProsodyStats      `json:"prosodic"`
	Timeline          []TimelineWindow  `json:"confidence_timeline"`
	StressIndicators  []StressIndicator `json:"stress_indicators"`
	OverallConfidence float64           `json:"overall_confidence"`
}

// CepstralStats summarizes the cepstral coefficients and their first and
// second time derivatives.
type CepstralStats struct {
	Mean       []float64 `json:"mean"`
	Std        []float64 `json:"std"`
	NumFrames  int       `json:"num_frames"`
	DeltaMean  []float64 `json:"delta_mean"`
	DeltaStd   []float64 `json:"delta_std"`
	Delta2Mean []float64 `json:"delta2_mean"`
	Delta2Std  []float64 `json:"delta2_std"`
}

// PitchStats summarizes the fundamental-frequency track.
type PitchStats struct {
	Mean             float64 `json:"mean"`
	Std              float64 `json:"std"`
	Min              float64 `json:"min"`
	Max              float64 `json:"max"`
	Variation        float64 `json:"variation"`
	VoicedPercentage float64 `json:"voiced_percentage"`
}

// EnergyStats summarizes frame-wise RMS amplitude and zero-crossing rate.
type EnergyStats struct {
	RMSMean float64 `json:"rms_mean"`
	RMSStd  float64 `json:"rms_std"`
	ZCRMean float64 `json:"zcr_mean"`
	ZCRStd  float64 `json:"zcr_std"`
}

// VoiceQualityStats holds spectral shape plus jitter/shimmer/HNR proxies.
type VoiceQualityStats struct {
	Jitter                float64   `json:"jitter"`
	Shimmer               float64   `json:"shimmer"`
	HNR                   float64   `json:"hnr"`
	SpectralCentroidMean  float64   `json:"spectral_centroid_mean"`
	SpectralRolloffMean   float64   `json:"spectral_rolloff_mean"`
	SpectralBandwidthMean float64   `json:"spectral_bandwidth_mean"`
	SpectralContrastMean  []float64 `json:"spectral_contrast_mean"`
	SpectralContrastStd   []float64 `json:"spectral_contrast_std"`
}

// ProsodyStats holds speech rate and pause statistics.
type ProsodyStats struct {
	SpeechRate      float64 `json:"speech_rate"`
	PausePercentage float64 `json:"pause_percentage"`
	SpeechSegments  int     `json:"speech_segments"`
}

// TimelineWindow is one ~1s slice of the confidence timeline.
type TimelineWindow struct {
	Time           float64 `json:"time"`
	Confidence     float64 `json:"confidence"`
	PitchStability float64 `json:"pitch_stability"`
	EnergyLevel    float64 `json:"energy_level"`
	VoiceQuality   float64 `json:"voice_quality"`
}

// StressIndicator is a detected acoustic anomaly. Indicators are only
// created when their threshold is exceeded and are never retracted.
type StressIndicator struct {
	Type        string  `json:"type"`
	Severity    string  `json:"severity"`
	Description string  `json:"description"`
	Metric      float64 `json:"metric"`
}

// ConfidenceWeights are the six factor weights of the overall model.
type ConfidenceWeights struct {
	F0Stability       float64
	EnergyConsistency float64
	SpeechRate        float64
	Hesitation        float64
	PitchRange        float64
	VoiceQuality      float64
}

// TimelineWeights combine the three per-window sub-scores.
type TimelineWeights struct {
	PitchStability float64
	EnergyLevel    float64
	VoiceQuality   float64
}

// Config holds all scoring constants. Immutable once handed to NewExtractor
// so tests can inject alternate weightings.
type Config struct {
	FrameLength int
	HopLength   int
	NumCepstra  int
	NumMels     int

	PitchMinHz       float64
	PitchMaxHz       float64
	WindowPitchMinHz float64
	WindowPitchMaxHz float64

	HPSSKernel int

	ContrastBands  int
	ContrastMinHz  float64
	ContrastAlpha  float64
	RolloffPercent float64

	StressPitchVariation float64
	StressJitter         float64
	StressRMSMean        float64
	StressPenalty        float64

	OptimalSpeechRate float64

	Weights         ConfidenceWeights
	TimelineWeights TimelineWeights
}

// DefaultConfig returns the production scoring constants.
func DefaultConfig() Config {
	return Config{
		FrameLength:      2048,
		HopLength:        512,
		NumCepstra:       13,
		NumMels:          40,
		PitchMinHz:       65,
		PitchMaxHz:       2000,
		WindowPitchMinHz: 65,
		WindowPitchMaxHz: 400,
		HPSSKernel:       17,
		ContrastBands:    6,
		ContrastMinHz:    200,
		ContrastAlpha:    0.02,
		RolloffPercent:   0.85,

		StressPitchVariation: 0.15,
		StressJitter:         10,
		StressRMSMean:        0.02,
		StressPenalty:        0.03,
		OptimalSpeechRate:    2.6,

		Weights: ConfidenceWeights{
			F0Stability:       0.25,
			EnergyConsistency: 0.20,
			SpeechRate:        0.15,
			Hesitation:        0.20,
			PitchRange:        0.10,
			VoiceQuality:      0.10,
		},
		TimelineWeights: TimelineWeights{
			PitchStability: 0.4,
			EnergyLevel:    0.3,
			VoiceQuality:   0.3,
		},
	}
}

// Extractor derives acoustic features from decoded audio. Stateless and safe
// for concurrent use across jobs.
type Extractor struct {
	cfg Config
}

// NewExtractor builds an Extractor with the given scoring constants.
func NewExtractor(cfg Config) *Extractor {
	return &Extractor{cfg: cfg}
}

// Extract analyzes a mono signal. It fails with ExtractionError only when
// the signal is empty or the sample rate is invalid; every sub-feature
// failure degrades to neutral defaults instead.
func (e *Extractor) Extract(signal []float64, sampleRate int) (Features, error) {
	if len(signal) == 0 {
		return Features{}, extractionErr("empty signal", nil)
	}
	if sampleRate <= 0 {
		return Features{}, extractionErr("invalid sample rate", nil)
	}

	duration := float64(len(signal)) / float64(sampleRate)
	spec := powerSpectrogram(signal, e.cfg.FrameLength, e.cfg.HopLength)
	rms := rmsFrames(signal, e.cfg.FrameLength, e.cfg.HopLength)

	f0, voiced := e.pitchTrack(signal, sampleRate, e.cfg.PitchMinHz, e.cfg.PitchMaxHz)

	features := Features{
		Duration:          round3(duration),
		Cepstral:          e.cepstralStats(spec, sampleRate),
		Pitch:             pitchStatsFrom(f0, voiced),
		Energy:            energyStatsFrom(rms, zcrFrames(signal, e.cfg.FrameLength, e.cfg.HopLength)),
		VoiceQuality:      e.voiceQuality(signal, sampleRate, spec, rms, f0),
		Prosody:           prosodyFrom(rms, duration),
		Timeline:          e.confidenceTimeline(signal, sampleRate, duration),
	}
	features.StressIndicators = e.detectStress(features.Pitch, features.Energy, features.VoiceQuality)
	features.OverallConfidence = e.overallConfidence(
		features.Pitch, features.Energy, features.VoiceQuality,
		features.Prosody, len(features.StressIndicators),
	)
	return features, nil
}

// pitchTrack returns the per-frame F0 estimates of voiced frames plus the
// total frame count.
func (e *Extractor) pitchTrack(signal []float64, sampleRate int, fmin, fmax float64) ([]float64, int) {
	n := frameCount(len(signal), e.cfg.FrameLength, e.cfg.HopLength)
	voiced := make([]float64, 0, n)
	for f := 0; f < n; f++ {
		start := f * e.cfg.HopLength
		frame := signal[start : start+e.cfg.FrameLength]
		if hz, ok := autocorrPitch(frame, sampleRate, fmin, fmax); ok {
			voiced = append(voiced, hz)
		}
	}
	return voiced, n
}

func pitchStatsFrom(voiced []float64, totalFrames int) PitchStats {
	if len(voiced) == 0 {
		return PitchStats{}
	}
	m := mean(voiced)
	s := std(voiced)
	lo, hi := minMax(voiced)
	variation := 0.0
	if m > 0 {
		variation = s / m
	}
	voicedPct := 0.0
	if totalFrames > 0 {
		voicedPct = float64(len(voiced)) / float64(totalFrames) * 100
	}
	return PitchStats{
		Mean:             sanitize(m),
		Std:              sanitize(s),
		Min:              sanitize(lo),
		Max:              sanitize(hi),
		Variation:        sanitize(variation),
		VoicedPercentage: sanitize(voicedPct),
	}
}

func energyStatsFrom(rms, zcr []float64) EnergyStats {
	return EnergyStats{
		RMSMean: sanitize(mean(rms)),
		RMSStd:  sanitize(std(rms)),
		ZCRMean: sanitize(mean(zcr)),
		ZCRStd:  sanitize(std(zcr)),
	}
}

func (e *Extractor) cepstralStats(spec [][]float64, sampleRate int) CepstralStats {
	nc := e.cfg.NumCepstra
	zeros := func() []float64 { return make([]float64, nc) }
	if len(spec) == 0 {
		return CepstralStats{
			Mean: zeros(), Std: zeros(),
			DeltaMean: zeros(), DeltaStd: zeros(),
			Delta2Mean: zeros(), Delta2Std: zeros(),
		}
	}

	filters := melFilterbank(e.cfg.NumMels, len(spec[0]), sampleRate)

	// rows: coefficient x frame
	rows := make([][]float64, nc)
	for c := range rows {
		rows[c] = make([]float64, len(spec))
	}
	logMel := make([]float64, e.cfg.NumMels)
	for f, frame := range spec {
		for m, filt := range filters {
			var acc float64
			for b, w := range filt {
				if w != 0 {
					acc += w * frame[b]
				}
			}
			logMel[m] = math.Log(acc + 1e-10)
		}
		coeffs := dctII(logMel, nc)
		for c := 0; c < nc; c++ {
			rows[c][f] = coeffs[c]
		}
	}

	delta := regressionDeltas(rows)
	delta2 := regressionDeltas(delta)

	statsOf := func(m [][]float64) ([]float64, []float64) {
		means := make([]float64, nc)
		stds := make([]float64, nc)
		for c := 0; c < nc; c++ {
			means[c] = sanitize(mean(m[c]))
			stds[c] = sanitize(std(m[c]))
		}
		return means, stds
	}
	meanV, stdV := statsOf(rows)
	dMean, dStd := statsOf(delta)
	d2Mean, d2Std := statsOf(delta2)

	return CepstralStats{
		Mean: meanV, Std: stdV, NumFrames: len(spec),
		DeltaMean: dMean, DeltaStd: dStd,
		Delta2Mean: d2Mean, Delta2Std: d2Std,
	}
}

func (e *Extractor) voiceQuality(signal []float64, sampleRate int, spec [][]float64, rms, f0 []float64) VoiceQualityStats {
	vq := VoiceQualityStats{
		SpectralContrastMean: make([]float64, e.cfg.ContrastBands+1),
		SpectralContrastStd:  make([]float64, e.cfg.ContrastBands+1),
	}

	if len(spec) > 0 {
		centroid, rolloff, bandwidth := e.spectralShape(spec, sampleRate)
		vq.SpectralCentroidMean = sanitize(mean(centroid))
		vq.SpectralRolloffMean = sanitize(mean(rolloff))
		vq.SpectralBandwidthMean = sanitize(mean(bandwidth))
		cMean, cStd := e.spectralContrast(spec, sampleRate)
		vq.SpectralContrastMean = cMean
		vq.SpectralContrastStd = cStd
	}

	// Jitter: variability of consecutive voiced pitch estimates.
	if len(f0) > 1 {
		vq.Jitter = sanitize(std(diff(f0)))
	}
	// Shimmer: variability of consecutive frame amplitudes.
	if len(rms) > 1 {
		vq.Shimmer = sanitize(std(diff(rms)))
	}

	vq.HNR = e.harmonicToNoise(signal)
	return vq
}

// harmonicToNoise computes HNR in dB from harmonic/percussive separation.
// A silent percussive part maps to a very high 40 dB; separation failure
// falls back to a moderate 20 dB.
func (e *Extractor) harmonicToNoise(signal []float64) float64 {
	harmonic, percussive, err := hpssEnergies(signal, e.cfg.FrameLength, e.cfg.HopLength, e.cfg.HPSSKernel)
	if err != nil {
		return 20.0
	}
	if percussive <= 0 {
		return 40.0
	}
	hnr := 10 * math.Log10(harmonic/percussive)
	if math.IsNaN(hnr) || math.IsInf(hnr, 0) {
		return 20.0
	}
	return hnr
}

func (e *Extractor) spectralShape(spec [][]float64, sampleRate int) (centroid, rolloff, bandwidth []float64) {
	bins := len(spec[0])
	freqs := make([]float64, bins)
	for b := range freqs {
		freqs[b] = float64(b) * float64(sampleRate) / float64(2*(bins-1))
	}

	centroid = make([]float64, len(spec))
	rolloff = make([]float64, len(spec))
	bandwidth = make([]float64, len(spec))
	for f, frame := range spec {
		var total, weighted float64
		for b, p := range frame {
			total += p
			weighted += p * freqs[b]
		}
		if total <= 0 {
			continue
		}
		c := weighted / total
		centroid[f] = c

		var acc float64
		threshold := e.cfg.RolloffPercent * total
		for b, p := range frame {
			acc += p
			if acc >= threshold {
				rolloff[f] = freqs[b]
				break
			}
		}

		var spread float64
		for b, p := range frame {
			d := freqs[b] - c
			spread += p * d * d
		}
		bandwidth[f] = math.Sqrt(spread / total)
	}
	return centroid, rolloff, bandwidth
}

// spectralContrast measures per-band peak-to-valley spread across
// octave-spaced bands, mirroring the usual n_bands+1 sub-band layout.
func (e *Extractor) spectralContrast(spec [][]float64, sampleRate int) ([]float64, []float64) {
	bins := len(spec[0])
	nyquist := float64(sampleRate) / 2
	hzPerBin := nyquist / float64(bins-1)

	edges := make([]float64, e.cfg.ContrastBands+2)
	edges[0] = 0
	edge := e.cfg.ContrastMinHz
	for i := 1; i < len(edges); i++ {
		edges[i] = math.Min(edge, nyquist)
		edge *= 2
	}

	numBands := e.cfg.ContrastBands + 1
	perBand := make([][]float64, numBands)
	for band := 0; band < numBands; band++ {
		lo := int(edges[band] / hzPerBin)
		hi := int(edges[band+1] / hzPerBin)
		if hi <= lo {
			hi = lo + 1
		}
		if hi > bins {
			hi = bins
		}
		vals := make([]float64, 0, len(spec))
		for _, frame := range spec {
			sub := append([]float64(nil), frame[lo:hi]...)
			vals = append(vals, contrastOf(sub, e.cfg.ContrastAlpha))
		}
		perBand[band] = vals
	}

	means := make([]float64, numBands)
	stds := make([]float64, numBands)
	for band, vals := range perBand {
		means[band] = sanitize(mean(vals))
		stds[band] = sanitize(std(vals))
	}
	return means, stds
}

func contrastOf(sub []float64, alpha float64) float64 {
	if len(sub) == 0 {
		return 0
	}
	sorted := append([]float64(nil), sub...)
	sort.Float64s(sorted)
	k := int(alpha * float64(len(sorted)))
	if k < 1 {
		k = 1
	}
	valley := mean(sorted[:k]) + 1e-10
	peak := mean(sorted[len(sorted)-k:]) + 1e-10
	return math.Log(peak) - math.Log(valley)
}

func prosodyFrom(rms []float64, duration float64) ProsodyStats {
	if len(rms) == 0 {
		return ProsodyStats{}
	}
	threshold := mean(rms) * 0.2

	onsets := 0
	silent := 0
	prevSpeech := rms[0] > threshold
	if !prevSpeech {
		silent++
	}
	for _, v := range rms[1:] {
		speech := v > threshold
		if speech && !prevSpeech {
			onsets++
		}
		if !speech {
			silent++
		}
		prevSpeech = speech
	}

	rate := 0.0
	if duration > 0 {
		rate = float64(onsets) / duration
	}
	return ProsodyStats{
		SpeechRate:      sanitize(rate),
		PausePercentage: sanitize(float64(silent) / float64(len(rms)) * 100),
		SpeechSegments:  onsets,
	}
}

// detectStress evaluates the whole-clip thresholds independently; every
// exceeded threshold adds one indicator. Comparisons are strictly greater
// (or strictly less for energy).
func (e *Extractor) detectStress(pitch PitchStats, energy EnergyStats, vq VoiceQualityStats) []StressIndicator {
	indicators := []StressIndicator{}

	if pitch.Variation > e.cfg.StressPitchVariation {
		indicators = append(indicators, StressIndicator{
			Type:        StressHighPitchVariation,
			Severity:    SeverityMedium,
			Description: "Elevated pitch variation may indicate stress or uncertainty",
			Metric:      pitch.Variation,
		})
	}
	if vq.Jitter > e.cfg.StressJitter {
		indicators = append(indicators, StressIndicator{
			Type:        StressVocalTension,
			Severity:    SeverityMedium,
			Description: "High jitter suggests vocal tension or nervousness",
			Metric:      vq.Jitter,
		})
	}
	if energy.RMSMean < e.cfg.StressRMSMean {
		indicators = append(indicators, StressIndicator{
			Type:        StressLowEnergy,
			Severity:    SeverityLow,
			Description: "Low vocal energy may indicate hesitation",
			Metric:      energy.RMSMean,
		})
	}
	return indicators
}

// overallConfidence is the six-factor weighted model with a flat penalty per
// stress indicator.
func (e *Extractor) overallConfidence(pitch PitchStats, energy EnergyStats, vq VoiceQualityStats, prosody ProsodyStats, stressCount int) float64 {
	w := e.cfg.Weights

	f0Stability := math.Max(0, 1-pitch.Variation)

	ratio := 0.5
	if energy.RMSMean > 0 {
		ratio = energy.RMSStd / energy.RMSMean
	}
	energyConsistency := math.Max(0, 1-ratio)

	rateDeviation := math.Abs(prosody.SpeechRate-e.cfg.OptimalSpeechRate) / e.cfg.OptimalSpeechRate
	speechRateScore := math.Max(0, 1-rateDeviation)

	hesitationScore := math.Max(0, 1-prosody.PausePercentage/50)

	var pitchRangeScore float64
	switch {
	case pitch.Mean >= 100 && pitch.Mean <= 150:
		pitchRangeScore = 1
	case pitch.Mean < 100:
		pitchRangeScore = math.Max(0, pitch.Mean/100)
	default:
		pitchRangeScore = math.Max(0, 1-(pitch.Mean-150)/150)
	}

	hnrScore := clamp((vq.HNR-10)/30, 0, 1)

	confidence := f0Stability*w.F0Stability +
		energyConsistency*w.EnergyConsistency +
		speechRateScore*w.SpeechRate +
		hesitationScore*w.Hesitation +
		pitchRangeScore*w.PitchRange +
		hnrScore*w.VoiceQuality

	confidence -= float64(stressCount) * e.cfg.StressPenalty
	return round3(clamp(confidence, 0, 1))
}
