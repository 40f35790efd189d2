package audio

import (
	"bytes"
	"errors"
	"math"
	"testing"
)

func sineSignal(freq float64, seconds float64, sampleRate int, amp float64) []float64 {
	n := int(seconds * float64(sampleRate))
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return out
}

func TestExtractEmptySignalFails(t *testing.T) {
	ex := NewExtractor(DefaultConfig())
	_, err := ex.Extract(nil, 16000)
	var extractionErr *ExtractionError
	if !errors.As(err, &extractionErr) {
		t.Fatalf("expected ExtractionError, got %v", err)
	}

	_, err = ex.Extract([]float64{0.1, 0.2}, 0)
	if !errors.As(err, &extractionErr) {
		t.Fatalf("expected ExtractionError for invalid sample rate, got %v", err)
	}
}

func TestExtractScoresStayInRange(t *testing.T) {
	ex := NewExtractor(DefaultConfig())
	signal := sineSignal(120, 3, 8000, 0.5)

	features, err := ex.Extract(signal, 8000)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if features.OverallConfidence < 0 || features.OverallConfidence > 1 {
		t.Fatalf("overall confidence out of range: %v", features.OverallConfidence)
	}
	for _, w := range features.Timeline {
		for name, v := range map[string]float64{
			"confidence":      w.Confidence,
			"pitch_stability": w.PitchStability,
			"energy_level":    w.EnergyLevel,
			"voice_quality":   w.VoiceQuality,
		} {
			if v < 0 || v > 1 {
				t.Fatalf("window %s out of range: %v", name, v)
			}
		}
	}
}

func TestTimelineWindowCountAndTimes(t *testing.T) {
	ex := NewExtractor(DefaultConfig())
	signal := sineSignal(120, 3, 8000, 0.5)

	features, err := ex.Extract(signal, 8000)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(features.Timeline) != 3 {
		t.Fatalf("expected 3 windows for 3s clip, got %d", len(features.Timeline))
	}
	prev := math.Inf(-1)
	for i, w := range features.Timeline {
		want := float64(i) + 0.5
		if w.Time != want {
			t.Fatalf("window %d time = %v, want %v", i, w.Time, want)
		}
		if w.Time <= prev {
			t.Fatalf("window times not strictly increasing")
		}
		prev = w.Time
	}
}

func TestTimelineDropsWindowsUnderTenthSecond(t *testing.T) {
	ex := NewExtractor(DefaultConfig())

	// 0.05s of audio: the single candidate window holds <0.1s and is dropped.
	short := sineSignal(120, 0.05, 8000, 0.5)
	features, err := ex.Extract(short, 8000)
	if err != nil {
		t.Fatalf("Extract short: %v", err)
	}
	if len(features.Timeline) != 0 {
		t.Fatalf("expected empty timeline for 0.05s clip, got %d windows", len(features.Timeline))
	}

	// 0.5s still yields one window.
	half := sineSignal(120, 0.5, 8000, 0.5)
	features, err = ex.Extract(half, 8000)
	if err != nil {
		t.Fatalf("Extract half-second: %v", err)
	}
	if len(features.Timeline) != 1 {
		t.Fatalf("expected one window for 0.5s clip, got %d", len(features.Timeline))
	}
}

func TestShortSignalDegradesWithoutError(t *testing.T) {
	ex := NewExtractor(DefaultConfig())
	features, err := ex.Extract([]float64{0.01, -0.02, 0.03}, 16000)
	if err != nil {
		t.Fatalf("expected degraded extraction, got error: %v", err)
	}
	if features.OverallConfidence < 0 || features.OverallConfidence > 1 {
		t.Fatalf("overall confidence out of range: %v", features.OverallConfidence)
	}
}

func TestStressThresholdsAreStrict(t *testing.T) {
	ex := NewExtractor(DefaultConfig())

	cases := []struct {
		name      string
		pitch     PitchStats
		energy    EnergyStats
		vq        VoiceQualityStats
		wantTypes []string
	}{
		{
			name:   "exact boundaries do not trigger",
			pitch:  PitchStats{Variation: 0.15},
			energy: EnergyStats{RMSMean: 0.02},
			vq:     VoiceQualityStats{Jitter: 10},
		},
		{
			name:      "pitch variation over threshold",
			pitch:     PitchStats{Variation: 0.1501},
			energy:    EnergyStats{RMSMean: 0.05},
			wantTypes: []string{StressHighPitchVariation},
		},
		{
			name:      "jitter over threshold",
			energy:    EnergyStats{RMSMean: 0.05},
			vq:        VoiceQualityStats{Jitter: 10.01},
			wantTypes: []string{StressVocalTension},
		},
		{
			name:      "low energy under threshold",
			energy:    EnergyStats{RMSMean: 0.019},
			wantTypes: []string{StressLowEnergy},
		},
		{
			name:      "all three",
			pitch:     PitchStats{Variation: 0.3},
			energy:    EnergyStats{RMSMean: 0.001},
			vq:        VoiceQualityStats{Jitter: 25},
			wantTypes: []string{StressHighPitchVariation, StressVocalTension, StressLowEnergy},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ex.detectStress(tc.pitch, tc.energy, tc.vq)
			if len(got) != len(tc.wantTypes) {
				t.Fatalf("got %d indicators, want %d", len(got), len(tc.wantTypes))
			}
			for i, want := range tc.wantTypes {
				if got[i].Type != want {
					t.Fatalf("indicator %d type = %s, want %s", i, got[i].Type, want)
				}
			}
		})
	}
}

func TestOverallConfidenceSixFactor(t *testing.T) {
	ex := NewExtractor(DefaultConfig())

	perfect := ex.overallConfidence(
		PitchStats{Mean: 125, Variation: 0},
		EnergyStats{RMSMean: 0.05, RMSStd: 0},
		VoiceQualityStats{HNR: 40},
		ProsodyStats{SpeechRate: 2.6, PausePercentage: 0},
		0,
	)
	if perfect != 1.0 {
		t.Fatalf("expected perfect score 1.0, got %v", perfect)
	}

	penalized := ex.overallConfidence(
		PitchStats{Mean: 125, Variation: 0},
		EnergyStats{RMSMean: 0.05, RMSStd: 0},
		VoiceQualityStats{HNR: 40},
		ProsodyStats{SpeechRate: 2.6, PausePercentage: 0},
		2,
	)
	if penalized != 0.94 {
		t.Fatalf("expected 0.94 after two-indicator penalty, got %v", penalized)
	}

	// Silent clip: energy consistency falls back to the neutral ratio.
	silent := ex.overallConfidence(
		PitchStats{},
		EnergyStats{},
		VoiceQualityStats{},
		ProsodyStats{},
		0,
	)
	if silent < 0 || silent > 1 {
		t.Fatalf("silent-clip confidence out of range: %v", silent)
	}
}

func TestPitchRangeScoreFalloff(t *testing.T) {
	ex := NewExtractor(DefaultConfig())

	base := PitchStats{Variation: 0}
	energy := EnergyStats{RMSMean: 0.05, RMSStd: 0}
	vq := VoiceQualityStats{HNR: 40}
	prosody := ProsodyStats{SpeechRate: 2.6, PausePercentage: 0}

	inBand := base
	inBand.Mean = 100
	below := base
	below.Mean = 50
	above := base
	above.Mean = 300

	scoreIn := ex.overallConfidence(inBand, energy, vq, prosody, 0)
	scoreBelow := ex.overallConfidence(below, energy, vq, prosody, 0)
	scoreAbove := ex.overallConfidence(above, energy, vq, prosody, 0)

	if scoreIn != 1.0 {
		t.Fatalf("expected in-band pitch to score 1.0, got %v", scoreIn)
	}
	// 50 Hz: range factor 0.5 -> total 0.95; 300 Hz: factor 0 -> total 0.9.
	if scoreBelow != 0.95 {
		t.Fatalf("expected 0.95 below band, got %v", scoreBelow)
	}
	if scoreAbove != 0.9 {
		t.Fatalf("expected 0.9 above band, got %v", scoreAbove)
	}
}

func TestPitchTrackerFindsSineFundamental(t *testing.T) {
	ex := NewExtractor(DefaultConfig())
	signal := sineSignal(120, 2, 8000, 0.5)

	features, err := ex.Extract(signal, 8000)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if features.Pitch.Mean < 100 || features.Pitch.Mean > 140 {
		t.Fatalf("expected F0 near 120 Hz, got %v", features.Pitch.Mean)
	}
	if features.Pitch.VoicedPercentage <= 0 {
		t.Fatalf("expected voiced frames for a pure tone")
	}
}

func TestWAVRoundTrip(t *testing.T) {
	signal := sineSignal(200, 0.25, 8000, 0.4)

	var buf bytes.Buffer
	if err := EncodeWAV(&buf, signal, 8000); err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}

	decoded, sr, err := DecodeWAV(&buf)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if sr != 8000 {
		t.Fatalf("sample rate = %d, want 8000", sr)
	}
	if len(decoded) != len(signal) {
		t.Fatalf("decoded %d samples, want %d", len(decoded), len(signal))
	}
	for i := range decoded {
		if math.Abs(decoded[i]-signal[i]) > 1e-3 {
			t.Fatalf("sample %d: got %v want %v", i, decoded[i], signal[i])
		}
	}
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	var extractionErr *ExtractionError

	_, _, err := DecodeWAV(bytes.NewReader([]byte("not a wav file at all")))
	if !errors.As(err, &extractionErr) {
		t.Fatalf("expected ExtractionError, got %v", err)
	}

	_, _, err = DecodeWAV(bytes.NewReader(nil))
	if !errors.As(err, &extractionErr) {
		t.Fatalf("expected ExtractionError for empty input, got %v", err)
	}
}
