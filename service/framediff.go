package service

// Frame is one captured image in RGBA layout, 4 bytes per pixel, row-major.
type Frame struct {
	Width  int
	Height int
	Pix    []byte
}

// FrameDiff scores how much the screen changed between consecutive frames.
// Each frame is downsampled to a fixed grid; a grid cell counts as changed
// when the summed per-channel difference against the previous frame exceeds
// the pixel threshold. The score is the changed fraction as a percentage.
//
// It keeps the previous downsampled frame as private state; Reset clears it
// so the first frame of a fresh monitoring episode always scores 100.
type FrameDiff struct {
	grid      int
	threshold int
	prev      []byte // grid*grid*3, RGB
}

func NewFrameDiff(grid, pixelThreshold int) *FrameDiff {
	return &FrameDiff{grid: grid, threshold: pixelThreshold}
}

// Reset forgets the previous frame. The next scored frame is treated as
// fully changed regardless of content.
func (d *FrameDiff) Reset() {
	d.prev = nil
}

// Score downsamples the frame, compares it to the previous one and returns
// the change percentage in [0, 100].
func (d *FrameDiff) Score(f *Frame) float64 {
	current := downsample(f, d.grid)

	if d.prev == nil {
		d.prev = current
		return 100
	}

	prev := d.prev
	d.prev = current

	changed := 0
	total := d.grid * d.grid
	for i := 0; i < total*3; i += 3 {
		diff := absDiff(current[i], prev[i]) +
			absDiff(current[i+1], prev[i+1]) +
			absDiff(current[i+2], prev[i+2])
		if diff > d.threshold {
			changed++
		}
	}
	return float64(changed) / float64(total) * 100
}

// downsample picks one RGB sample per grid cell, nearest-neighbor.
func downsample(f *Frame, grid int) []byte {
	out := make([]byte, grid*grid*3)
	if f.Width <= 0 || f.Height <= 0 {
		return out
	}
	for gy := 0; gy < grid; gy++ {
		srcY := gy * f.Height / grid
		for gx := 0; gx < grid; gx++ {
			srcX := gx * f.Width / grid
			src := (srcY*f.Width + srcX) * 4
			dst := (gy*grid + gx) * 3
			out[dst] = f.Pix[src]
			out[dst+1] = f.Pix[src+1]
			out[dst+2] = f.Pix[src+2]
		}
	}
	return out
}

func absDiff(a, b byte) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}
