package chunker

// Preprocess resamples raw (already mono, at cfg.SourceSampleRate) down to
// cfg.TargetSampleRate using linear interpolation, then optionally
// normalizes, optionally high-pass filters, and finally pads/truncates to a
// fixed length. Every step is a pure function of its input bytes: the same
// input always produces byte-identical output (spec.md §4.2, §8).
func Preprocess(raw []float32, cfg Config) []float32 {
	out := Resample(raw, cfg.SourceSampleRate, cfg.TargetSampleRate)
	if cfg.Normalize {
		out = Normalize(out)
	}
	if cfg.HighPassFilter {
		out = HighPass(out, 0.97)
	}
	if cfg.FixedInputSamples > 0 {
		out = PadOrTruncate(out, cfg.FixedInputSamples)
	}
	return out
}

// Resample converts samples from srcRate to dstRate with linear
// interpolation — the floor quality level spec.md §4.1/§9 calls for.
// Equal rates return the input unchanged (and unshared: a fresh copy).
func Resample(samples []float32, srcRate, dstRate int) []float32 {
	if srcRate <= 0 || dstRate <= 0 || len(samples) == 0 {
		return append([]float32(nil), samples...)
	}
	if srcRate == dstRate {
		return append([]float32(nil), samples...)
	}

	ratio := float64(srcRate) / float64(dstRate)
	outLen := int(float64(len(samples)) / ratio)
	out := make([]float32, outLen)
	for i := range out {
		srcPos := float64(i) * ratio
		idx := int(srcPos)
		frac := srcPos - float64(idx)
		if idx+1 < len(samples) {
			out[i] = samples[idx]*float32(1-frac) + samples[idx+1]*float32(frac)
		} else {
			out[i] = samples[len(samples)-1]
		}
	}
	return out
}

// Normalize peak-scales samples so that max(|x|) == 1. An all-zero buffer is
// returned unchanged (identity), per spec.md §8.
func Normalize(samples []float32) []float32 {
	var peak float32
	for _, s := range samples {
		abs := s
		if abs < 0 {
			abs = -abs
		}
		if abs > peak {
			peak = abs
		}
	}
	if peak == 0 {
		return append([]float32(nil), samples...)
	}
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = s / peak
	}
	return out
}

// HighPass applies a single-pole high-pass filter with the given
// coefficient, a cheap noise-reduction pass per spec.md §4.2.
func HighPass(samples []float32, coeff float32) []float32 {
	out := make([]float32, len(samples))
	var prevIn, prevOut float32
	for i, s := range samples {
		out[i] = coeff * (prevOut + s - prevIn)
		prevIn = s
		prevOut = out[i]
	}
	return out
}

// PadOrTruncate fixes samples to exactly n elements, zero-padding or
// truncating as needed, for models requiring a fixed input length.
func PadOrTruncate(samples []float32, n int) []float32 {
	out := make([]float32, n)
	copy(out, samples)
	return out
}
