package export

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/qmuntal/gltf"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/pthm-cable/voidcluster/errs"
	"github.com/pthm-cable/voidcluster/volume"
)

// rampVolume holds ranks in linear index order.
func rampVolume(t *testing.T, d0, d1, d2 int) *volume.Volume {
	t.Helper()
	v, err := volume.New(d0, d1, d2)
	if err != nil {
		t.Fatal(err)
	}
	for i := range v.Ranks {
		v.Ranks[i] = uint32(i)
	}
	return v
}

func TestLayerGray(t *testing.T) {
	v := rampVolume(t, 4, 4, 4)
	img := LayerGray(v, 1)
	if b := img.Bounds(); b.Dx() != 4 || b.Dy() != 4 {
		t.Fatalf("bounds = %v", b)
	}
	// Layer 1 starts at rank 16; 16·256/64 = 64, each step adds 4.
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			want := uint8((16 + x + 4*y) * 4)
			if got := img.GrayAt(x, y).Y; got != want {
				t.Errorf("pixel (%d,%d) = %d, want %d", x, y, got, want)
			}
		}
	}
}

func TestLayerGrayWrapsZ(t *testing.T) {
	v := rampVolume(t, 2, 1, 1) // ranks 0 and 1 of 2 map to 0 and 128
	img := LayerGray(v, -3)
	if img.GrayAt(0, 0).Y != 0 || img.GrayAt(1, 0).Y != 128 {
		t.Errorf("pixels = %d %d", img.GrayAt(0, 0).Y, img.GrayAt(1, 0).Y)
	}
}

func TestLayerGray16(t *testing.T) {
	v := rampVolume(t, 4, 4, 4)
	img := LayerGray16(v, 3)
	// Rank 63 is the largest: 63·65536/64 = 64512.
	if got := img.Gray16At(3, 3).Y; got != 64512 {
		t.Errorf("last pixel = %d, want 64512", got)
	}
	if got := img.Gray16At(0, 0).Y; got != 48*1024 {
		t.Errorf("first pixel = %d, want %d", got, 48*1024)
	}
}

func TestWriteLayersFormats(t *testing.T) {
	v := rampVolume(t, 4, 3, 2)
	decoders := map[string]func(*os.File) (image.Image, error){
		".png": func(f *os.File) (image.Image, error) { return png.Decode(f) },
		".tif": func(f *os.File) (image.Image, error) { return tiff.Decode(f) },
		".bmp": func(f *os.File) (image.Image, error) { return bmp.Decode(f) },
	}

	for ext, decode := range decoders {
		t.Run(ext, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "out")
			paths, err := WriteLayers(dir, "layer_", ext, 8, v)
			if err != nil {
				t.Fatal(err)
			}
			if len(paths) != 2 {
				t.Fatalf("expected 2 layers, got %d", len(paths))
			}
			if want := filepath.Join(dir, "layer_1"+ext); paths[1] != want {
				t.Errorf("path = %q, want %q", paths[1], want)
			}

			f, err := os.Open(paths[1])
			if err != nil {
				t.Fatal(err)
			}
			defer f.Close()
			img, err := decode(f)
			if err != nil {
				t.Fatal(err)
			}
			want := LayerGray(v, 1)
			for y := 0; y < 3; y++ {
				for x := 0; x < 4; x++ {
					got := color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y
					if got != want.GrayAt(x, y).Y {
						t.Errorf("pixel (%d,%d) = %d, want %d", x, y, got, want.GrayAt(x, y).Y)
					}
				}
			}
		})
	}
}

func TestWriteLayers16Bit(t *testing.T) {
	v := rampVolume(t, 4, 4, 1)
	paths, err := WriteLayers(t.TempDir(), "l", ".png", 16, v)
	if err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(paths[0])
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	g16, ok := img.(*image.Gray16)
	if !ok {
		t.Fatalf("decoded %T, want *image.Gray16", img)
	}
	if got := g16.Gray16At(1, 0).Y; got != 4096 {
		t.Errorf("pixel = %d, want 4096", got)
	}
}

func TestWriteLayersRejectsBadOptions(t *testing.T) {
	v := rampVolume(t, 2, 2, 2)
	if _, err := WriteLayers(t.TempDir(), "l", ".jpg", 8, v); !errors.Is(err, errs.ErrConfig) {
		t.Errorf("unknown extension: expected config error, got %v", err)
	}
	if _, err := WriteLayers(t.TempDir(), "l", ".png", 12, v); !errors.Is(err, errs.ErrConfig) {
		t.Errorf("bad depth: expected config error, got %v", err)
	}
}

func TestWriteGLB(t *testing.T) {
	v := rampVolume(t, 4, 4, 4)

	var buf bytes.Buffer
	if err := WriteGLB(&buf, v, 0.25); err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("glTF")) {
		t.Fatal("output is not binary glTF")
	}

	doc := new(gltf.Document)
	if err := gltf.NewDecoder(bytes.NewReader(buf.Bytes())).Decode(doc); err != nil {
		t.Fatal(err)
	}
	if len(doc.Meshes) != 1 || len(doc.Meshes[0].Primitives) != 1 {
		t.Fatalf("unexpected mesh layout: %d meshes", len(doc.Meshes))
	}
	prim := doc.Meshes[0].Primitives[0]
	if prim.Mode != gltf.PrimitivePoints {
		t.Errorf("mode = %v, want points", prim.Mode)
	}
	pos := doc.Accessors[prim.Attributes[gltf.POSITION]]
	if pos.Count != 16 {
		t.Errorf("point count = %d, want 16", pos.Count)
	}
}

func TestPointCloudRejectsBadThreshold(t *testing.T) {
	v := rampVolume(t, 2, 2, 2)
	for _, th := range []float64{0, -0.5, 1.5} {
		if _, err := PointCloud(v, th); !errors.Is(err, errs.ErrConfig) {
			t.Errorf("threshold %v: expected config error, got %v", th, err)
		}
	}
	// 0.1·8 = 0.8 keeps rank 0 only.
	doc, err := PointCloud(v, 0.1)
	if err != nil {
		t.Fatal(err)
	}
	if n := doc.Accessors[0].Count; n != 1 {
		t.Errorf("point count = %d, want 1", n)
	}
}

func TestLayerRGBA(t *testing.T) {
	v := rampVolume(t, 4, 4, 2)
	gray := LayerRGBA(v, 0, 0)
	if gray[5].R != 5*8 || gray[5].A != 255 {
		t.Errorf("gray pixel = %+v", gray[5])
	}

	// Level 0.25 of 32 cells blacks out ranks 0..7.
	mask := LayerRGBA(v, 0, 0.25)
	for i, px := range mask {
		want := uint8(255)
		if i < 8 {
			want = 0
		}
		if px.R != want {
			t.Errorf("pixel %d = %d, want %d", i, px.R, want)
		}
	}
}
