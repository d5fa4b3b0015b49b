package recognizer

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/facegate/internal/match"
)

// embedder extracts face embeddings with the ArcFace w600k_r50 ONNX model:
// 112x112 aligned crop in, L2-normalized 512-d vector out.
type embedder struct {
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	inputW       int
	inputH       int
	embDim       int
}

func newEmbedder(modelPath string) (*embedder, error) {
	inputW, inputH := 112, 112
	embDim := 512

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, int64(inputH), int64(inputW)))
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(embDim)))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"input.1"},
		[]string{"683"},
		[]ort.Value{inputTensor},
		[]ort.Value{outputTensor},
		nil,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("create embedder session: %w", err)
	}

	return &embedder{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		inputW:       inputW,
		inputH:       inputH,
		embDim:       embDim,
	}, nil
}

// extract runs the model on a preprocessed CHW face crop and returns a
// unit-length embedding.
func (e *embedder) extract(faceData []float32) ([]float32, error) {
	copy(e.inputTensor.GetData(), faceData)

	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("run embedding: %w", err)
	}

	embedding := make([]float32, e.embDim)
	copy(embedding, e.outputTensor.GetData())

	match.Normalize(embedding)
	return embedding, nil
}

func (e *embedder) close() {
	if e.session != nil {
		e.session.Destroy()
	}
	if e.inputTensor != nil {
		e.inputTensor.Destroy()
	}
	if e.outputTensor != nil {
		e.outputTensor.Destroy()
	}
}
