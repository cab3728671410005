// Layer viewer - step through the Z layers of a rank volume.
//
// Usage:
//
//	go run ./cmd/layerview -volume 32x32x32/ranks.vcrv
//	go run ./cmd/layerview -size 16 -seed 3
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	rl "github.com/gen2brain/raylib-go/raylib"
	gui "github.com/gen2brain/raylib-go/raygui"

	"github.com/pthm-cable/voidcluster/analysis"
	"github.com/pthm-cable/voidcluster/config"
	"github.com/pthm-cable/voidcluster/dither"
	"github.com/pthm-cable/voidcluster/export"
	"github.com/pthm-cable/voidcluster/telemetry"
	"github.com/pthm-cable/voidcluster/volume"
)

const (
	windowWidth  = 1000
	windowHeight = 620
	previewSize  = 512
	panelWidth   = windowWidth - previewSize - 30
)

func main() {
	volumePath := flag.String("volume", "", "Rank volume file to view (empty = generate)")
	configPath := flag.String("config", "", "Config used when generating")
	size := flag.Int("size", 16, "Cubic lattice edge when generating")
	seed := flag.Uint64("seed", 0, "Seed when generating")
	flag.Parse()

	vol, err := loadOrGenerate(*volumePath, *configPath, *size, *seed)
	if err != nil {
		slog.Error("failed to obtain volume", "error", err)
		os.Exit(1)
	}

	rl.InitWindow(windowWidth, windowHeight, "Dither Layer Viewer")
	defer rl.CloseWindow()
	rl.SetTargetFPS(30)

	img := rl.GenImageColor(vol.D0, vol.D1, rl.Black)
	texture := rl.LoadTextureFromImage(img)
	rl.UnloadImage(img)
	defer rl.UnloadTexture(texture)

	layerStats := analysis.LayerStats(vol)

	layer := 0
	var level float32 // 0 = grayscale ranks
	needsRedraw := true

	for !rl.WindowShouldClose() {
		if rl.IsKeyPressed(rl.KeyN) || rl.IsKeyPressed(rl.KeyRight) || rl.IsKeyPressed(rl.KeyUp) {
			layer = (layer + 1) % vol.D2
			needsRedraw = true
		}
		if rl.IsKeyPressed(rl.KeyP) || rl.IsKeyPressed(rl.KeyLeft) || rl.IsKeyPressed(rl.KeyDown) {
			layer = (layer - 1 + vol.D2) % vol.D2
			needsRedraw = true
		}

		if needsRedraw {
			rl.UpdateTexture(texture, export.LayerRGBA(vol, layer, float64(level)))
			needsRedraw = false
		}

		rl.BeginDrawing()
		rl.ClearBackground(rl.RayWhite)

		rl.DrawTexturePro(
			texture,
			rl.Rectangle{X: 0, Y: 0, Width: float32(vol.D0), Height: float32(vol.D1)},
			rl.Rectangle{X: 10, Y: 10, Width: previewSize, Height: previewSize},
			rl.Vector2{X: 0, Y: 0},
			0,
			rl.White,
		)
		rl.DrawRectangleLines(10, 10, previewSize, previewSize, rl.DarkGray)

		st := layerStats[layer]
		statsY := int32(previewSize + 25)
		rl.DrawText(fmt.Sprintf("Layer %d/%d  Mean: %.3f  Std: %.3f", layer, vol.D2-1, st.Mean, st.StdDev), 15, statsY, 16, rl.DarkGray)
		rl.DrawText(fmt.Sprintf("Below 0.5: %.1f%%  Volume: %dx%dx%d", st.HalfDensity*100, vol.D0, vol.D1, vol.D2), 15, statsY+20, 16, rl.DarkGray)

		// Control panel
		panelX := float32(previewSize + 20)
		panelY := float32(10)

		rl.DrawText("Dither Volume", int32(panelX), int32(panelY), 20, rl.DarkGray)
		panelY += 35

		rl.DrawText("Layer (Z)", int32(panelX), int32(panelY), 14, rl.Gray)
		panelY += 18
		newLayer := gui.SliderBar(
			rl.Rectangle{X: panelX, Y: panelY, Width: float32(panelWidth - 80), Height: 20},
			"0", fmt.Sprintf("%d", vol.D2-1),
			float32(layer), 0, float32(vol.D2-1),
		)
		rl.DrawText(fmt.Sprintf("%d", layer), int32(panelX+float32(panelWidth-70)), int32(panelY+2), 16, rl.DarkGray)
		if int(newLayer) != layer {
			layer = int(newLayer)
			needsRedraw = true
		}
		panelY += 35

		rl.DrawText("Threshold (0 = show ranks)", int32(panelX), int32(panelY), 14, rl.Gray)
		panelY += 18
		newLevel := gui.SliderBar(
			rl.Rectangle{X: panelX, Y: panelY, Width: float32(panelWidth - 80), Height: 20},
			"0", "1",
			level, 0, 1,
		)
		rl.DrawText(fmt.Sprintf("%.2f", level), int32(panelX+float32(panelWidth-70)), int32(panelY+2), 16, rl.DarkGray)
		if newLevel != level {
			level = newLevel
			needsRedraw = true
		}
		panelY += 45

		if gui.Button(rl.Rectangle{X: panelX, Y: panelY, Width: 120, Height: 30}, "Prev") {
			layer = (layer - 1 + vol.D2) % vol.D2
			needsRedraw = true
		}
		if gui.Button(rl.Rectangle{X: panelX + 130, Y: panelY, Width: 120, Height: 30}, "Next") {
			layer = (layer + 1) % vol.D2
			needsRedraw = true
		}
		panelY += 45

		if gui.Button(rl.Rectangle{X: panelX, Y: panelY, Width: 120, Height: 30}, "Show Ranks") {
			level = 0
			needsRedraw = true
		}
		if gui.Button(rl.Rectangle{X: panelX + 130, Y: panelY, Width: 120, Height: 30}, "Half Tone") {
			level = 0.5
			needsRedraw = true
		}

		rl.DrawText("N/P or arrows step layers, ESC closes", int32(panelX), int32(windowHeight-30), 12, rl.LightGray)

		rl.EndDrawing()
	}
}

func loadOrGenerate(path, configPath string, size int, seed uint64) (*volume.Volume, error) {
	if path != "" {
		return volume.Load(path)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	cfg.Lattice.Width, cfg.Lattice.Height, cfg.Lattice.Depth = size, size, size
	cfg.Seed.Value = seed
	cfg.Generator.InitialCount = 0
	if err := cfg.Finalize(); err != nil {
		return nil, err
	}

	opts := cfg.GeneratorOptions()
	opts.Progress = telemetry.NewProgressBar(os.Stderr).Report
	gen, err := dither.New(opts)
	if err != nil {
		return nil, err
	}
	res, err := gen.Generate(cfg.Derived.InitialCount)
	if err != nil {
		return nil, err
	}
	return res.Volume(), nil
}
