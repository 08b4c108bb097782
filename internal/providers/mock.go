package providers

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// MockProvider produces deterministic embeddings and canned generations so
// the pipeline runs end to end without keys or local model servers.
type MockProvider struct {
	dim int
}

func NewMockProvider(dim int) *MockProvider {
	if dim <= 0 {
		dim = 1024
	}
	return &MockProvider{dim: dim}
}

func (m *MockProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	_ = ctx
	dim := req.Dimension
	if dim <= 0 {
		dim = m.dim
	}
	vectors := make([][]float32, 0, len(req.Inputs))
	for _, input := range req.Inputs {
		vectors = append(vectors, deterministicVector(input, dim))
	}
	return vectors, ProviderInfo{Name: "mock", Model: fmt.Sprintf("mock-embed-%d", dim), Key: "mock"}, nil
}

func (m *MockProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	_ = ctx
	text := "Mock response."
	if strings.Contains(strings.ToLower(req.Operation), "rerank") {
		// rank the first few candidates in input order
		n := len(req.Context)
		if n > 5 {
			n = 5
		}
		nums := make([]string, 0, n)
		for i := 1; i <= n; i++ {
			nums = append(nums, fmt.Sprintf("%d", i))
		}
		text = fmt.Sprintf(`{"ranking": [%s]}`, strings.Join(nums, ", "))
	}
	return GenerateResponse{Text: text}, ProviderInfo{Name: "mock", Model: "mock-llm-v1", Key: "mock"}, nil
}

// MockClassifier labels every sentence with a fixed verdict.
type MockClassifier struct {
	Label bool
}

func NewMockClassifier(label bool) *MockClassifier {
	return &MockClassifier{Label: label}
}

func (m *MockClassifier) Classify(ctx context.Context, sentences []string) ([]Prediction, error) {
	_ = ctx
	out := make([]Prediction, 0, len(sentences))
	for range sentences {
		out = append(out, Prediction{Label: m.Label, Score: 0.5})
	}
	return out, nil
}

func deterministicVector(input string, dim int) []float32 {
	vec := make([]float32, dim)
	seed := []byte(input)
	if len(seed) == 0 {
		seed = []byte("empty")
	}
	for i := 0; i < dim; i++ {
		h := sha256.Sum256(append(seed, byte(i%251)))
		u := binary.BigEndian.Uint32(h[:4])
		v := float32(u%2000)/1000.0 - 1.0
		vec[i] = v
	}
	return normalize(vec)
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := float32(1.0 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
	return v
}
