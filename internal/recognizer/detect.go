package recognizer

import (
	"fmt"
	"math"
	"sort"

	ort "github.com/yalue/onnxruntime_go"
)

// Detection is one face bounding box from the detector.
type Detection struct {
	BBox       [4]float32 // x1, y1, x2, y2 in original-image pixels
	Confidence float32
}

// Area returns the bounding-box area in pixels.
func (d Detection) Area() float32 {
	return (d.BBox[2] - d.BBox[0]) * (d.BBox[3] - d.BBox[1])
}

// detector runs RetinaFace (det_10g) face detection via ONNX Runtime.
// Only the score and bbox heads are bound; the landmark heads are unused
// here since the face crop works off the bounding box.
type detector struct {
	session       *ort.AdvancedSession
	inputTensor   *ort.Tensor[float32]
	outputTensors []*ort.Tensor[float32]
	threshold     float32
	inputW        int
	inputH        int
}

// det_10g anchor configuration: two anchors per cell at strides 8/16/32.
var detStrides = []int{8, 16, 32}

const detAnchorsPerCell = 2

func newDetector(modelPath string, threshold float32) (*detector, error) {
	inputW, inputH := 640, 640

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, int64(inputH), int64(inputW)))
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	// det_10g output heads have no batch dimension. Rows per stride:
	// (640/s)^2 * 2 anchors = 12800 / 3200 / 800.
	type outputSpec struct {
		name string
		rows int64
		cols int64
	}
	outputs := []outputSpec{
		{"448", 12800, 1}, // scores, stride 8
		{"471", 3200, 1},  // scores, stride 16
		{"494", 800, 1},   // scores, stride 32
		{"451", 12800, 4}, // bboxes, stride 8
		{"474", 3200, 4},  // bboxes, stride 16
		{"497", 800, 4},   // bboxes, stride 32
	}

	outputNames := make([]string, len(outputs))
	outputTensors := make([]*ort.Tensor[float32], len(outputs))
	outputValues := make([]ort.Value, len(outputs))
	for i, spec := range outputs {
		outputNames[i] = spec.name
		t, err := ort.NewEmptyTensor[float32](ort.NewShape(spec.rows, spec.cols))
		if err != nil {
			for j := 0; j < i; j++ {
				outputTensors[j].Destroy()
			}
			inputTensor.Destroy()
			return nil, fmt.Errorf("create output tensor %s: %w", spec.name, err)
		}
		outputTensors[i] = t
		outputValues[i] = t
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"input.1"},
		outputNames,
		[]ort.Value{inputTensor},
		outputValues,
		nil,
	)
	if err != nil {
		inputTensor.Destroy()
		for _, t := range outputTensors {
			t.Destroy()
		}
		return nil, fmt.Errorf("create detector session: %w", err)
	}

	return &detector{
		session:       session,
		inputTensor:   inputTensor,
		outputTensors: outputTensors,
		threshold:     threshold,
		inputW:        inputW,
		inputH:        inputH,
	}, nil
}

// detect runs face detection on a preprocessed CHW image. origW/origH are
// the original image dimensions for scaling boxes back.
func (d *detector) detect(imgData []float32, origW, origH int) ([]Detection, error) {
	copy(d.inputTensor.GetData(), imgData)

	if err := d.session.Run(); err != nil {
		return nil, fmt.Errorf("run detection: %w", err)
	}

	detections := d.decode(origW, origH)
	return nms(detections, 0.4), nil
}

// decode converts the anchor-based heads into pixel-space detections.
func (d *detector) decode(origW, origH int) []Detection {
	var detections []Detection

	scaleW := float32(origW) / float32(d.inputW)
	scaleH := float32(origH) / float32(d.inputH)

	for si, stride := range detStrides {
		scores := d.outputTensors[si].GetData()   // [N, 1]
		bboxes := d.outputTensors[si+3].GetData() // [N, 4]

		fmW := d.inputW / stride
		fmH := d.inputH / stride
		st := float32(stride)

		idx := 0
		for cy := 0; cy < fmH; cy++ {
			for cx := 0; cx < fmW; cx++ {
				for a := 0; a < detAnchorsPerCell; a++ {
					if score := scores[idx]; score >= d.threshold {
						anchorX := float32(cx) * st
						anchorY := float32(cy) * st

						// Boxes are distances from the anchor center,
						// in stride units.
						x1 := (anchorX - bboxes[idx*4+0]*st) * scaleW
						y1 := (anchorY - bboxes[idx*4+1]*st) * scaleH
						x2 := (anchorX + bboxes[idx*4+2]*st) * scaleW
						y2 := (anchorY + bboxes[idx*4+3]*st) * scaleH

						detections = append(detections, Detection{
							BBox: [4]float32{
								clampF(x1, 0, float32(origW)),
								clampF(y1, 0, float32(origH)),
								clampF(x2, 0, float32(origW)),
								clampF(y2, 0, float32(origH)),
							},
							Confidence: score,
						})
					}
					idx++
				}
			}
		}
	}

	return detections
}

func (d *detector) close() {
	if d.session != nil {
		d.session.Destroy()
	}
	if d.inputTensor != nil {
		d.inputTensor.Destroy()
	}
	for _, t := range d.outputTensors {
		if t != nil {
			t.Destroy()
		}
	}
}

// nms performs Non-Maximum Suppression, keeping higher-confidence boxes.
// The result stays sorted by descending confidence, which is the detector
// order the "first" primary-face policy refers to.
func nms(detections []Detection, iouThreshold float32) []Detection {
	if len(detections) == 0 {
		return detections
	}

	sort.Slice(detections, func(i, j int) bool {
		return detections[i].Confidence > detections[j].Confidence
	})

	keep := make([]bool, len(detections))
	for i := range keep {
		keep[i] = true
	}

	for i := 0; i < len(detections); i++ {
		if !keep[i] {
			continue
		}
		for j := i + 1; j < len(detections); j++ {
			if keep[j] && iou(detections[i].BBox, detections[j].BBox) > iouThreshold {
				keep[j] = false
			}
		}
	}

	var result []Detection
	for i, det := range detections {
		if keep[i] {
			result = append(result, det)
		}
	}
	return result
}

func iou(a, b [4]float32) float32 {
	x1 := float32(math.Max(float64(a[0]), float64(b[0])))
	y1 := float32(math.Max(float64(a[1]), float64(b[1])))
	x2 := float32(math.Min(float64(a[2]), float64(b[2])))
	y2 := float32(math.Min(float64(a[3]), float64(b[3])))

	intersection := float32(math.Max(0, float64(x2-x1))) * float32(math.Max(0, float64(y2-y1)))

	areaA := (a[2] - a[0]) * (a[3] - a[1])
	areaB := (b[2] - b[0]) * (b[3] - b[1])
	union := areaA + areaB - intersection

	if union <= 0 {
		return 0
	}
	return intersection / union
}

func clampF(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
