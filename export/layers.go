// Package export renders rank volumes as layer images and 3D point clouds.
package export

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/pthm-cable/voidcluster/errs"
	"github.com/pthm-cable/voidcluster/volume"
)

// LayerGray renders layer z with pixel = min(255, rank·256/size).
func LayerGray(v *volume.Volume, z int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, v.D0, v.D1))
	size := uint64(v.Size())
	for i, r := range v.Layer(z) {
		img.Pix[i] = uint8(min(255, uint64(r)*256/size))
	}
	return img
}

// LayerGray16 renders layer z with pixel = min(65535, rank·65536/size).
func LayerGray16(v *volume.Volume, z int) *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, v.D0, v.D1))
	size := uint64(v.Size())
	for i, r := range v.Layer(z) {
		p := min(65535, uint64(r)*65536/size)
		img.Pix[2*i] = uint8(p >> 8)
		img.Pix[2*i+1] = uint8(p)
	}
	return img
}

type encodeFunc func(io.Writer, image.Image) error

func encoderFor(ext string) (encodeFunc, error) {
	switch strings.ToLower(ext) {
	case ".png":
		return png.Encode, nil
	case ".tif", ".tiff":
		return func(w io.Writer, m image.Image) error {
			return tiff.Encode(w, m, &tiff.Options{Compression: tiff.Deflate})
		}, nil
	case ".bmp":
		return bmp.Encode, nil
	}
	return nil, errs.Config("output.layer_ext", ext, "unsupported image format")
}

// LayerName returns the file name of layer z.
func LayerName(prefix string, z int, ext string) string {
	return prefix + strconv.Itoa(z) + ext
}

// WriteLayers writes one image per Z layer into dir, creating it if needed.
// depth is 8 or 16 bits per pixel. Returns the paths written so far, also
// on error.
func WriteLayers(dir, prefix, ext string, depth int, v *volume.Volume) ([]string, error) {
	enc, err := encoderFor(ext)
	if err != nil {
		return nil, err
	}
	if depth != 8 && depth != 16 {
		return nil, errs.Config("output.layer_depth", depth, "must be 8 or 16")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating layer dir: %w", err)
	}

	paths := make([]string, 0, v.D2)
	for z := 0; z < v.D2; z++ {
		var img image.Image
		if depth == 16 {
			img = LayerGray16(v, z)
		} else {
			img = LayerGray(v, z)
		}
		path := filepath.Join(dir, LayerName(prefix, z, ext))
		if err := writeImage(path, img, enc); err != nil {
			return paths, fmt.Errorf("layer %d: %w", z, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeImage(path string, img image.Image, enc encodeFunc) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := enc(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return f.Close()
}

// LayerRGBA returns layer z as row-major RGBA pixels for texture upload.
// With level > 0 the layer is thresholded: cells below level are black,
// the rest white. Otherwise pixels follow LayerGray.
func LayerRGBA(v *volume.Volume, z int, level float64) []color.RGBA {
	gray := LayerGray(v, z)
	cut := level * float64(v.Size())
	out := make([]color.RGBA, len(gray.Pix))
	for i, r := range v.Layer(z) {
		g := gray.Pix[i]
		if level > 0 {
			g = 255
			if float64(r) < cut {
				g = 0
			}
		}
		out[i] = color.RGBA{R: g, G: g, B: g, A: 255}
	}
	return out
}
