package imaging

// sharpenKernel is a fixed 3x3 sharpening convolution. It recovers some
// detail in frames degraded by motion blur before they are stored.
var sharpenKernel = [3][3]float64{
	{0, -1, 0},
	{-1, 5, -1},
	{0, -1, 0},
}

// Sharpen applies the 3x3 sharpening kernel and returns a new buffer.
// Border pixels are copied unchanged.
func Sharpen(b *Buffer) *Buffer {
	out := NewBuffer(b.Width, b.Height)
	copy(out.Pix, b.Pix)

	for y := 1; y < b.Height-1; y++ {
		for x := 1; x < b.Width-1; x++ {
			for c := 0; c < 3; c++ {
				var acc float64
				for ky := -1; ky <= 1; ky++ {
					for kx := -1; kx <= 1; kx++ {
						i := ((y+ky)*b.Width + (x + kx)) * 4
						acc += sharpenKernel[ky+1][kx+1] * float64(b.Pix[i+c])
					}
				}
				out.Pix[(y*b.Width+x)*4+c] = clampByte(acc)
			}
		}
	}
	return out
}

func clampByte(v float64) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}
