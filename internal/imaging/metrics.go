package imaging

// Pixel-sampling parameters. Sampling one pixel in four keeps per-tick cost
// bounded so the capture controller can run on a 1s timer without drift.
const (
	diffPixelStride = 4
	// Odd stride so the sparse grid does not lock onto one parity of
	// alternating pixel patterns.
	laplacianStride = 3
)

// BlurThreshold is the Laplacian-variance floor under which a frame is
// considered blurry.
const BlurThreshold = 60.0

// SceneDelta computes the normalized mean absolute pixel difference between
// two buffers, sampling one pixel in diffPixelStride and averaging the R, G
// and B channel diffs of each sampled pixel. The result is in [0, 1].
// Buffers of mismatched size compare as fully different.
func SceneDelta(prev, curr *Buffer) float64 {
	if prev == nil || curr == nil {
		return 1.0
	}
	if prev.Width != curr.Width || prev.Height != curr.Height {
		return 1.0
	}

	var sum float64
	var count int
	pixels := len(curr.Pix) / 4
	for p := 0; p < pixels; p += diffPixelStride {
		base := p * 4
		for c := 0; c < 3; c++ {
			d := int(curr.Pix[base+c]) - int(prev.Pix[base+c])
			if d < 0 {
				d = -d
			}
			sum += float64(d)
		}
		count += 3
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count) / 255.0
}

// LaplacianVariance estimates frame sharpness as the variance of a discrete
// 4-neighbor Laplacian over a sparse pixel grid. Lower values indicate blur.
func LaplacianVariance(b *Buffer) float64 {
	if b == nil || b.Width < 3 || b.Height < 3 {
		return 0
	}

	values := make([]float64, 0, (b.Width/laplacianStride)*(b.Height/laplacianStride))
	for y := 1; y < b.Height-1; y += laplacianStride {
		for x := 1; x < b.Width-1; x += laplacianStride {
			lap := 4*b.gray(x, y) - b.gray(x-1, y) - b.gray(x+1, y) - b.gray(x, y-1) - b.gray(x, y+1)
			values = append(values, lap)
		}
	}
	if len(values) == 0 {
		return 0
	}

	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	return variance / float64(len(values))
}

// IsBlurry reports whether the buffer falls under the sharpness floor.
func IsBlurry(b *Buffer) bool {
	return LaplacianVariance(b) < BlurThreshold
}
