package testutil

import (
	"context"
	"hash/fnv"
	"math/rand"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
)

// HashEmbedder is a deterministic ai.Embedder for tests: each text maps to
// a fixed pseudo-random vector seeded by its hash, so identical texts embed
// identically without any model dependency.
type HashEmbedder struct {
	// Dimensions of the produced vectors. Must match the schema's vector
	// column; defaults to 768 when zero.
	Dimensions int
}

func (e *HashEmbedder) Name() string { return "test-hash-embedder" }

func (e *HashEmbedder) Register(_ api.Registry) {}

func (e *HashEmbedder) Embed(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	dims := e.Dimensions
	if dims == 0 {
		dims = 768
	}

	resp := &ai.EmbedResponse{}
	for _, doc := range req.Input {
		text := ""
		if len(doc.Content) > 0 {
			text = doc.Content[0].Text
		}

		h := fnv.New64a()
		_, _ = h.Write([]byte(text))
		rng := rand.New(rand.NewSource(int64(h.Sum64()))) // #nosec G404 -- deterministic test vectors

		vec := make([]float32, dims)
		for i := range vec {
			vec[i] = rng.Float32()*2 - 1
		}
		resp.Embeddings = append(resp.Embeddings, &ai.Embedding{Embedding: vec})
	}
	return resp, nil
}
