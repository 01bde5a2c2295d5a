package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/panoblur/internal/detector"
	"github.com/MeKo-Tech/panoblur/internal/geometry"
	"github.com/MeKo-Tech/panoblur/internal/store"
	"github.com/MeKo-Tech/panoblur/internal/testutil"
)

var classColors = map[string]color.NRGBA{
	"face": {R: 230, G: 190, B: 160, A: 255},
	"sign": {R: 250, G: 250, B: 250, A: 255},
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	var (
		outDir  = flag.String("out", "testdata/panoramas", "Output directory")
		count   = flag.Int("n", 4, "Number of panoramas")
		width   = flag.Int("width", 1024, "Panorama width in pixels")
		marks   = flag.Int("marks", 5, "Objects per panorama")
		seed    = flag.Uint64("seed", 1, "Random seed")
		verbose = flag.Bool("v", false, "Verbose output")
		help    = flag.Bool("h", false, "Show help")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Generate synthetic equirectangular panoramas with ground truth.\n\n")
		fmt.Fprintf(os.Stderr, "For every panorama N the directory receives panoN.png, the ground truth\n")
		fmt.Fprintf(os.Stderr, "document panoN.yaml and the evaluation mask panoN-mask.png.\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEXAMPLES:\n")
		fmt.Fprintf(os.Stderr, "  %s                       # Four panoramas in testdata/panoramas\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -n 20 -width 2048     # Larger set\n", os.Args[0])
	}

	flag.Parse()

	if *help {
		flag.Usage()
		return
	}
	if *count < 1 || *width < 16 || *marks < 0 {
		slog.Error("Invalid options", "n", *count, "width", *width, "marks", *marks)
		os.Exit(2)
	}

	if *verbose {
		slog.Info("Options", "out", *outDir, "n", *count, "width", *width, "marks", *marks, "seed", *seed)
	}

	if err := testutil.EnsureDir(*outDir); err != nil {
		slog.Error("Failed to create output directory", "error", err)
		os.Exit(1)
	}

	rng := rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))
	for i := range *count {
		name := filepath.Join(*outDir, fmt.Sprintf("pano%d", i+1))
		if err := generate(rng, name, *width, *marks); err != nil {
			slog.Error("Failed to generate panorama", "name", name, "error", err)
			os.Exit(1)
		}
		if *verbose {
			slog.Info("Panorama written", "name", name)
		}
	}

	slog.Info("Test data generation completed", "panoramas", *count, "out", *outDir)
}

// generate writes one panorama with its ground truth document and mask.
func generate(rng *rand.Rand, name string, width, n int) error {
	cfg := testutil.DefaultPanoramaConfig()
	cfg.Width, cfg.Height = width, width/2

	classes := []string{"face", "sign"}
	var objects []detector.DetectedObject
	for range n {
		class := classes[rng.IntN(len(classes))]
		m := testutil.Mark{
			Yaw:   rng.Float64() * 360,
			Pitch: rng.Float64()*120 - 60,
			Size:  cfg.Height/32 + rng.IntN(cfg.Height/12+1),
			Color: classColors[class],
		}
		cfg.Marks = append(cfg.Marks, m)
		objects = append(objects, detector.NewObject(class, sphericalBox(cfg, cfg.MarkRect(m))))
	}

	if err := imaging.Save(testutil.GeneratePanorama(cfg), name+".png"); err != nil {
		return fmt.Errorf("save panorama: %w", err)
	}
	doc := store.FromObjects(objects)
	if err := store.Save(name+".yaml", &store.Document{Algorithm: "ground-truth", Source: name + ".png", Objects: doc}); err != nil {
		return err
	}
	return imaging.Save(mask(cfg, objects), name+"-mask.png")
}

// sphericalBox converts a mark rectangle that may run past either edge into a
// spherical box that wraps across the seam.
func sphericalBox(cfg testutil.PanoramaConfig, r image.Rectangle) geometry.BoundingBox {
	w, h := float64(cfg.Width), float64(cfg.Height)
	azimuth := func(x int) float64 {
		a := math.Mod(float64(x)/w*2*math.Pi, 2*math.Pi)
		if a < 0 {
			a += 2 * math.Pi
		}
		return a
	}
	elevation := func(y int) float64 {
		return float64(max(0, min(y, cfg.Height)))/h*math.Pi - math.Pi/2
	}
	return geometry.NewBox(geometry.Spherical,
		azimuth(r.Min.X), elevation(r.Min.Y), azimuth(r.Max.X), elevation(r.Max.Y))
}

// mask paints every object white on black.
func mask(cfg testutil.PanoramaConfig, objects []detector.DetectedObject) *image.Gray {
	m := image.NewGray(image.Rect(0, 0, cfg.Width, cfg.Height))
	for _, o := range objects {
		for _, r := range o.Area.Rects(cfg.Width, cfg.Height) {
			draw.Draw(m, r, image.White, image.Point{}, draw.Src)
		}
	}
	return m
}
