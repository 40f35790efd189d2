package audio

import "math"

// confidenceTimeline analyzes each non-overlapping 1s window independently.
// Windows holding less than 0.1s of audio are dropped. A window whose
// analysis cannot produce finite scores degrades to 0.5 across the board
// instead of failing the extraction.
func (e *Extractor) confidenceTimeline(signal []float64, sampleRate int, duration float64) []TimelineWindow {
	numIntervals := int(duration)
	if numIntervals < 1 {
		numIntervals = 1
	}

	timeline := make([]TimelineWindow, 0, numIntervals)
	for i := 0; i < numIntervals; i++ {
		start := i * sampleRate
		end := (i + 1) * sampleRate
		if start >= len(signal) {
			break
		}
		if end > len(signal) {
			end = len(signal)
		}
		window := signal[start:end]
		if len(window) < sampleRate/10 {
			continue
		}

		w := e.analyzeWindow(window, sampleRate)
		w.Time = float64(i) + 0.5
		timeline = append(timeline, w)
	}
	return timeline
}

func (e *Extractor) analyzeWindow(window []float64, sampleRate int) TimelineWindow {
	weights := e.cfg.TimelineWeights

	pitchStability := e.windowPitchStability(window, sampleRate)
	energyLevel := e.windowEnergyLevel(window)
	voiceQuality := e.windowVoiceQuality(window)

	if !finite(pitchStability) || !finite(energyLevel) || !finite(voiceQuality) {
		return TimelineWindow{Confidence: 0.5, PitchStability: 0.5, EnergyLevel: 0.5, VoiceQuality: 0.5}
	}

	confidence := pitchStability*weights.PitchStability +
		energyLevel*weights.EnergyLevel +
		voiceQuality*weights.VoiceQuality

	return TimelineWindow{
		Confidence:     round3(clamp(confidence, 0, 1)),
		PitchStability: round3(pitchStability),
		EnergyLevel:    round3(energyLevel),
		VoiceQuality:   round3(voiceQuality),
	}
}

func (e *Extractor) windowPitchStability(window []float64, sampleRate int) float64 {
	frameLen := e.cfg.FrameLength
	if frameLen > len(window) {
		frameLen = len(window)
	}
	n := frameCount(len(window), frameLen, e.cfg.HopLength)

	voiced := make([]float64, 0, n)
	for f := 0; f < n; f++ {
		start := f * e.cfg.HopLength
		frame := window[start : start+frameLen]
		if hz, ok := autocorrPitch(frame, sampleRate, e.cfg.WindowPitchMinHz, e.cfg.WindowPitchMaxHz); ok {
			voiced = append(voiced, hz)
		}
	}
	if len(voiced) == 0 {
		return 0.5
	}
	m := mean(voiced)
	variation := 0.5
	if m > 0 {
		variation = std(voiced) / m
	}
	return math.Max(0, 1-variation)
}

func (e *Extractor) windowEnergyLevel(window []float64) float64 {
	frameLen := e.cfg.FrameLength
	if frameLen > len(window) {
		frameLen = len(window)
	}
	rms := rmsFrames(window, frameLen, e.cfg.HopLength)
	if len(rms) == 0 {
		return 0.5
	}
	return math.Min(mean(rms)/0.1, 1)
}

// windowVoiceQuality normalizes the window HNR to [0, 1]; HNR defaults to a
// moderate 20 dB when separation fails, landing exactly on 0.5.
func (e *Extractor) windowVoiceQuality(window []float64) float64 {
	hnr := 20.0
	harmonic, percussive, err := hpssEnergies(window, e.cfg.FrameLength, e.cfg.HopLength, e.cfg.HPSSKernel)
	if err == nil {
		if percussive <= 0 {
			hnr = 20.0
		} else {
			hnr = 10 * math.Log10(harmonic / percussive)
			if !finite(hnr) {
				hnr = 20.0
			}
		}
	}
	return clamp(hnr/40, 0, 1)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
