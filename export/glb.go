package export

import (
	"fmt"
	"io"
	"os"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/pthm-cable/voidcluster/errs"
	"github.com/pthm-cable/voidcluster/volume"
)

// PointCloud builds a glTF document with a single POINTS primitive holding
// every cell whose normalised rank is below threshold. Points sit at cell
// centres in a unit-per-cell frame and are shaded from dark (rank 0) to
// light (rank at the threshold).
func PointCloud(v *volume.Volume, threshold float64) (*gltf.Document, error) {
	if !(threshold > 0 && threshold <= 1) {
		return nil, errs.Config("output.glb_threshold", threshold, "must be in (0, 1]")
	}
	cut := threshold * float64(v.Size())

	var positions [][3]float32
	var colors [][4]float32
	for z := 0; z < v.D2; z++ {
		for y := 0; y < v.D1; y++ {
			for x := 0; x < v.D0; x++ {
				r := float64(v.At(x, y, z))
				if r >= cut {
					continue
				}
				shade := float32(0.15 + 0.85*r/cut)
				positions = append(positions, [3]float32{float32(x) + 0.5, float32(y) + 0.5, float32(z) + 0.5})
				colors = append(colors, [4]float32{shade, shade, shade, 1})
			}
		}
	}
	if len(positions) == 0 {
		return nil, errs.Config("output.glb_threshold", threshold, "selects no cells")
	}

	doc := gltf.NewDocument()
	doc.Asset.Generator = "voidcluster"
	posAccessor := modeler.WritePosition(doc, positions)
	colorAccessor := modeler.WriteColor(doc, colors)
	prim := &gltf.Primitive{
		Attributes: map[string]uint32{
			gltf.POSITION: uint32(posAccessor),
			gltf.COLOR_0:  uint32(colorAccessor),
		},
		Mode: gltf.PrimitivePoints,
	}
	doc.Meshes = []*gltf.Mesh{{Name: "DitherPoints", Primitives: []*gltf.Primitive{prim}}}
	doc.Nodes = []*gltf.Node{{Name: "DitherPoints", Mesh: gltf.Index(0)}}
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, uint32(0))
	return doc, nil
}

// WriteGLB encodes the point cloud of v at threshold as binary glTF.
func WriteGLB(w io.Writer, v *volume.Volume, threshold float64) error {
	doc, err := PointCloud(v, threshold)
	if err != nil {
		return err
	}
	enc := gltf.NewEncoder(w)
	enc.AsBinary = true
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding glb: %w", err)
	}
	return nil
}

// SaveGLB writes the point cloud to path.
func SaveGLB(path string, v *volume.Volume, threshold float64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating glb: %w", err)
	}
	if err := WriteGLB(f, v, threshold); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
