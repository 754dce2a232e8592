package ocr

import (
	"fmt"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/image/draw"

	// Registered for image.Decode.
	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Preprocessing parameters.
const (
	thresholdBlock = 11
	thresholdC     = 2
	minDimension   = 1000
)

// Preprocess prepares img for recognition: grayscale, adaptive Gaussian
// threshold, 3x3 median denoise, morphological close, then upscaling when
// either side is shorter than 1000px.
func Preprocess(img image.Image) *image.Gray {
	g := toGray(img)
	g = adaptiveThreshold(g, thresholdBlock, thresholdC)
	g = median3(g)
	g = erode3(dilate3(g))
	return upscale(g, minDimension)
}

// PreprocessFile decodes src, preprocesses it and writes a PNG into dir.
// The caller owns the returned file.
func PreprocessFile(src, dir string) (string, error) {
	f, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("open image: %w", err)
	}
	img, _, err := image.Decode(f)
	_ = f.Close()
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}

	out, err := os.CreateTemp(dir, "pre-*.png")
	if err != nil {
		return "", fmt.Errorf("create preprocessed image: %w", err)
	}
	if err := png.Encode(out, Preprocess(img)); err != nil {
		_ = out.Close()
		_ = os.Remove(out.Name())
		return "", fmt.Errorf("encode preprocessed image: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(out.Name())
		return "", fmt.Errorf("close preprocessed image: %w", err)
	}
	return filepath.Clean(out.Name()), nil
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Rect.Min == (image.Point{}) {
		return g
	}
	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(g, g.Bounds(), img, b.Min, draw.Src)
	return g
}

// gaussianKernel returns a normalized 1-D kernel using the sigma OpenCV
// derives from the kernel size.
func gaussianKernel(size int) []float64 {
	sigma := 0.3*(float64(size-1)*0.5-1) + 0.8
	k := make([]float64, size)
	half := size / 2
	var sum float64
	for i := range k {
		x := float64(i - half)
		k[i] = math.Exp(-(x * x) / (2 * sigma * sigma))
		sum += k[i]
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// adaptiveThreshold binarizes g against a Gaussian-weighted local mean.
// Pixels brighter than mean-c become white.
func adaptiveThreshold(g *image.Gray, block int, c float64) *image.Gray {
	w, h := g.Bounds().Dx(), g.Bounds().Dy()
	if w == 0 || h == 0 {
		return g
	}
	k := gaussianKernel(block)
	half := block / 2

	horiz := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var s float64
			for i, kv := range k {
				xx := clampInt(x+i-half, 0, w-1)
				s += kv * float64(g.Pix[y*g.Stride+xx])
			}
			horiz[y*w+x] = s
		}
	}

	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var mean float64
			for i, kv := range k {
				yy := clampInt(y+i-half, 0, h-1)
				mean += kv * horiz[yy*w+x]
			}
			if float64(g.Pix[y*g.Stride+x]) > mean-c {
				out.Pix[y*out.Stride+x] = 255
			}
		}
	}
	return out
}

// neighbourhood3 applies pick to each 3x3 window with edge clamping.
func neighbourhood3(g *image.Gray, pick func([]uint8) uint8) *image.Gray {
	w, h := g.Bounds().Dx(), g.Bounds().Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	win := make([]uint8, 0, 9)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			win = win[:0]
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					xx := clampInt(x+dx, 0, w-1)
					yy := clampInt(y+dy, 0, h-1)
					win = append(win, g.Pix[yy*g.Stride+xx])
				}
			}
			out.Pix[y*out.Stride+x] = pick(win)
		}
	}
	return out
}

func median3(g *image.Gray) *image.Gray {
	return neighbourhood3(g, func(w []uint8) uint8 {
		sort.Slice(w, func(i, j int) bool { return w[i] < w[j] })
		return w[len(w)/2]
	})
}

func dilate3(g *image.Gray) *image.Gray {
	return neighbourhood3(g, func(w []uint8) uint8 {
		m := w[0]
		for _, v := range w[1:] {
			if v > m {
				m = v
			}
		}
		return m
	})
}

func erode3(g *image.Gray) *image.Gray {
	return neighbourhood3(g, func(w []uint8) uint8 {
		m := w[0]
		for _, v := range w[1:] {
			if v < m {
				m = v
			}
		}
		return m
	})
}

// upscale enlarges g so that a side shorter than side reaches it.
func upscale(g *image.Gray, side int) *image.Gray {
	w, h := g.Bounds().Dx(), g.Bounds().Dy()
	if w == 0 || h == 0 || (w >= side && h >= side) {
		return g
	}
	scale := math.Max(float64(side)/float64(w), float64(side)/float64(h))
	nw := int(math.Round(float64(w) * scale))
	nh := int(math.Round(float64(h) * scale))
	out := image.NewGray(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(out, out.Bounds(), g, g.Bounds(), draw.Src, nil)
	return out
}
