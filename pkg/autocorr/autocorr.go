// Package autocorr computes the autocorrelation of a real-valued series
// via the Wiener-Khinchin theorem (autocorrelation = inverse FFT of the
// power spectrum), used by the temporal pattern detector (spec §4.9) to
// find periodicities in O(n log n) instead of the naive O(n^2) direct
// sum. No third-party FFT library appears anywhere in the retrieval
// pack, so this is a deliberate, narrowly-scoped stdlib implementation
// (math/cmplx) rather than a hand-rolled substitute for something the
// corpus already solves with a dependency.
package autocorr

import "math/cmplx"

// ACF returns the unnormalized autocorrelation of series for lags
// [0, len(series)). ACF()[0] is the zero-lag autocorrelation (the
// series' total energy); ACF()[k]/ACF()[0] is the normalized
// correlation at lag k, the figure the pattern detector compares
// against min_confidence (spec §4.9).
func ACF(series []float64) []float64 {
	n := len(series)
	if n == 0 {
		return nil
	}
	padded := nextPowerOfTwo(2 * n)
	buf := make([]complex128, padded)
	mean := meanOf(series)
	for i, v := range series {
		buf[i] = complex(v-mean, 0)
	}

	fft(buf, false)
	for i := range buf {
		buf[i] = complex(cmplx.Abs(buf[i])*cmplx.Abs(buf[i]), 0)
	}
	fft(buf, true)

	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = real(buf[i]) / float64(padded)
	}
	return out
}

func meanOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// fft is an in-place radix-2 Cooley-Tukey transform. inverse selects the
// inverse transform (unnormalized; callers that need a normalized
// inverse divide by len(buf) themselves).
func fft(buf []complex128, inverse bool) {
	n := len(buf)
	if n <= 1 {
		return
	}

	// bit-reversal permutation
	for i, j := 1, 0; i < n; i++ {
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j ^= bit
		}
		j ^= bit
		if i < j {
			buf[i], buf[j] = buf[j], buf[i]
		}
	}

	for length := 2; length <= n; length <<= 1 {
		angle := -2 * 3.14159265358979323846 / float64(length)
		if inverse {
			angle = -angle
		}
		wlen := cmplx.Exp(complex(0, angle))
		for i := 0; i < n; i += length {
			w := complex(1, 0)
			for k := 0; k < length/2; k++ {
				u := buf[i+k]
				v := buf[i+k+length/2] * w
				buf[i+k] = u + v
				buf[i+k+length/2] = u - v
				w *= wlen
			}
		}
	}
}
