package recognizer

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // registered for image.Decode
	"log/slog"
	"path/filepath"
	"time"

	"github.com/your-org/facegate/internal/config"
	"github.com/your-org/facegate/internal/observability"
)

// Pipeline is the ONNX-backed Extractor: decode → detect → crop → embed.
type Pipeline struct {
	detector *detector
	embedder *embedder
}

// NewPipeline loads the detection and embedding models from cfg.ModelsDir.
func NewPipeline(cfg config.RecognizerConfig) (*Pipeline, error) {
	detPath := filepath.Join(cfg.ModelsDir, "det_10g.onnx")
	embPath := filepath.Join(cfg.ModelsDir, "w600k_r50.onnx")

	slog.Info("loading detection model", "path", detPath)
	det, err := newDetector(detPath, float32(cfg.DetectionThreshold))
	if err != nil {
		return nil, fmt.Errorf("load detector: %w", err)
	}

	slog.Info("loading embedding model", "path", embPath)
	emb, err := newEmbedder(embPath)
	if err != nil {
		det.close()
		return nil, fmt.Errorf("load embedder: %w", err)
	}

	return &Pipeline{detector: det, embedder: emb}, nil
}

// Extract decodes imageData, detects faces, and returns one Face per
// detection in detector order. A zero-length result means no face was found.
func (p *Pipeline) Extract(imageData []byte) ([]Face, error) {
	img, err := jpeg.Decode(bytes.NewReader(imageData))
	if err != nil {
		img, _, err = image.Decode(bytes.NewReader(imageData))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
		}
	}

	bounds := img.Bounds()
	origW := bounds.Dx()
	origH := bounds.Dy()

	start := time.Now()
	detInput := preprocessForDetection(img, p.detector.inputW, p.detector.inputH)
	observability.InferenceDuration.WithLabelValues("preprocess").Observe(time.Since(start).Seconds())

	start = time.Now()
	detections, err := p.detector.detect(detInput, origW, origH)
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}
	observability.InferenceDuration.WithLabelValues("detect").Observe(time.Since(start).Seconds())

	var faces []Face
	for _, det := range detections {
		crop := cropFace(img, det.BBox)
		if crop == nil {
			continue
		}

		start = time.Now()
		embInput := preprocessForEmbedding(crop, p.embedder.inputW, p.embedder.inputH)
		embedding, err := p.embedder.extract(embInput)
		observability.InferenceDuration.WithLabelValues("embed").Observe(time.Since(start).Seconds())
		if err != nil {
			return nil, fmt.Errorf("embed: %w", err)
		}

		faces = append(faces, Face{
			Embedding:  embedding,
			Confidence: det.Confidence,
			Area:       det.Area(),
		})
	}

	return faces, nil
}

// Close releases the ONNX sessions.
func (p *Pipeline) Close() {
	if p.detector != nil {
		p.detector.close()
	}
	if p.embedder != nil {
		p.embedder.close()
	}
}

// --- Image preprocessing helpers ---

func preprocessForDetection(img image.Image, targetW, targetH int) []float32 {
	return imageToFloat32CHW(img, targetW, targetH, [3]float32{127.5, 127.5, 127.5}, [3]float32{128.0, 128.0, 128.0})
}

func preprocessForEmbedding(img image.Image, targetW, targetH int) []float32 {
	return imageToFloat32CHW(img, targetW, targetH, [3]float32{127.5, 127.5, 127.5}, [3]float32{127.5, 127.5, 127.5})
}

// imageToFloat32CHW converts an image to CHW float32 format with
// pixel = (pixel - mean) / std normalization.
func imageToFloat32CHW(img image.Image, targetW, targetH int, mean, std [3]float32) []float32 {
	resized := resizeImage(img, targetW, targetH)
	bounds := resized.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()

	data := make([]float32, 3*h*w)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := resized.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()

			rf := float32(r >> 8)
			gf := float32(g >> 8)
			bf := float32(b >> 8)

			idx := y*w + x
			data[0*h*w+idx] = (rf - mean[0]) / std[0]
			data[1*h*w+idx] = (gf - mean[1]) / std[1]
			data[2*h*w+idx] = (bf - mean[2]) / std[2]
		}
	}

	return data
}

// resizeImage performs nearest-neighbour resize (fast, good enough for ML input).
func resizeImage(img image.Image, targetW, targetH int) image.Image {
	bounds := img.Bounds()
	srcW := bounds.Dx()
	srcH := bounds.Dy()

	dst := image.NewRGBA(image.Rect(0, 0, targetW, targetH))

	for y := 0; y < targetH; y++ {
		for x := 0; x < targetW; x++ {
			srcX := bounds.Min.X + x*srcW/targetW
			srcY := bounds.Min.Y + y*srcH/targetH
			dst.Set(x, y, img.At(srcX, srcY))
		}
	}

	return dst
}

// cropFace extracts a face region with 10% padding on each side.
func cropFace(img image.Image, bbox [4]float32) image.Image {
	bounds := img.Bounds()

	x1 := int(bbox[0])
	y1 := int(bbox[1])
	x2 := int(bbox[2])
	y2 := int(bbox[3])

	w := x2 - x1
	h := y2 - y1
	if w <= 0 || h <= 0 {
		return nil
	}

	x1 -= w / 10
	y1 -= h / 10
	x2 += w / 10
	y2 += h / 10

	if x1 < bounds.Min.X {
		x1 = bounds.Min.X
	}
	if y1 < bounds.Min.Y {
		y1 = bounds.Min.Y
	}
	if x2 > bounds.Max.X {
		x2 = bounds.Max.X
	}
	if y2 > bounds.Max.Y {
		y2 = bounds.Max.Y
	}
	if x2-x1 <= 0 || y2-y1 <= 0 {
		return nil
	}

	crop := image.NewRGBA(image.Rect(0, 0, x2-x1, y2-y1))
	for cy := y1; cy < y2; cy++ {
		for cx := x1; cx < x2; cx++ {
			crop.Set(cx-x1, cy-y1, img.At(cx, cy))
		}
	}

	return crop
}
