package classify

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/inodb/vibe-indel/internal/features"
)

// ortEnv manages global ONNX Runtime initialization (process-wide singleton).
var ortEnv struct {
	once sync.Once
	err  error
}

func initORT(libPath string) error {
	ortEnv.once.Do(func() {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		ortEnv.err = ort.InitializeEnvironment()
	})
	return ortEnv.err
}

// ONNXScorer scores feature vectors with a model exported to ONNX from
// the training stack. The session is created once and shared; Score
// serializes session runs with a mutex.
type ONNXScorer struct {
	mu         sync.Mutex
	session    *ort.DynamicAdvancedSession
	inputName  string
	outputName string
	schema     string
}

// NewONNXScorer loads an ONNX model and validates its tensor shapes:
// one float32 input of shape [1, len(schema)] and one float32 output of
// shape [1, 3]. schema is the feature schema version the model was
// trained on, recorded in the model registry alongside the artifact.
func NewONNXScorer(modelPath, libPath, schema string) (*ONNXScorer, error) {
	if err := initORT(libPath); err != nil {
		return nil, fmt.Errorf("onnx: initialize runtime: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("onnx: read model info: %w", err)
	}
	if len(inputs) != 1 || len(outputs) != 1 {
		return nil, fmt.Errorf("onnx: expected 1 input and 1 output tensor, got %d/%d", len(inputs), len(outputs))
	}

	wantDim := int64(len(features.Names()))
	inDims := inputs[0].Dimensions
	if len(inDims) != 2 || (inDims[1] > 0 && inDims[1] != wantDim) {
		return nil, fmt.Errorf("onnx: input shape %v, want [1 %d]", inDims, wantDim)
	}
	outDims := outputs[0].Dimensions
	if len(outDims) != 2 || (outDims[1] > 0 && outDims[1] != 3) {
		return nil, fmt.Errorf("onnx: output shape %v, want [1 3]", outDims)
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("onnx: create session options: %w", err)
	}
	defer opts.Destroy()
	opts.SetIntraOpNumThreads(1)
	opts.SetInterOpNumThreads(1)

	session, err := ort.NewDynamicAdvancedSession(
		modelPath,
		[]string{inputs[0].Name},
		[]string{outputs[0].Name},
		opts,
	)
	if err != nil {
		return nil, fmt.Errorf("onnx: create session: %w", err)
	}

	return &ONNXScorer{
		session:    session,
		inputName:  inputs[0].Name,
		outputName: outputs[0].Name,
		schema:     schema,
	}, nil
}

// Schema returns the feature schema the model was trained on.
func (s *ONNXScorer) Schema() string {
	return s.schema
}

// Score runs one inference over the vector's values in schema order.
func (s *ONNXScorer) Score(v *features.Vector) (Probs, error) {
	vals := v.Values()
	data := make([]float32, len(vals))
	for i, x := range vals {
		data[i] = float32(x)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	in, err := ort.NewTensor(ort.NewShape(1, int64(len(data))), data)
	if err != nil {
		return Probs{}, fmt.Errorf("onnx: create input tensor: %w", err)
	}
	defer in.Destroy()

	out, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3))
	if err != nil {
		return Probs{}, fmt.Errorf("onnx: create output tensor: %w", err)
	}
	defer out.Destroy()

	if err := s.session.Run([]ort.Value{in}, []ort.Value{out}); err != nil {
		return Probs{}, fmt.Errorf("onnx: inference failed: %w", err)
	}

	probs := out.GetData()
	if len(probs) != 3 {
		return Probs{}, fmt.Errorf("onnx: got %d output probabilities, want 3", len(probs))
	}
	return Probs{
		Somatic:  float64(probs[0]),
		Germline: float64(probs[1]),
		Artifact: float64(probs[2]),
	}, nil
}

// Close releases the ONNX session.
func (s *ONNXScorer) Close() error {
	return s.session.Destroy()
}
