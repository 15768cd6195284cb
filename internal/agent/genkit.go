package agent

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// GenkitModel adapts a Genkit instance to ModelClient. The model itself is
// selected by Genkit's default model configuration.
type GenkitModel struct {
	G *genkit.Genkit
}

func (m *GenkitModel) Generate(ctx context.Context, messages []*ai.Message, opts ...ai.GenerateOption) (*ai.ModelResponse, error) {
	return genkit.Generate(ctx, m.G, append(opts, ai.WithMessages(messages...))...)
}

// GenkitRunner executes tool requests against the Genkit tool registry.
type GenkitRunner struct {
	G *genkit.Genkit
}

func (r *GenkitRunner) Run(ctx context.Context, req *ai.ToolRequest) (any, error) {
	tool := genkit.LookupTool(r.G, req.Name)
	if tool == nil {
		return nil, fmt.Errorf("unknown tool %q", req.Name)
	}
	output, err := tool.RunRaw(ctx, req.Input)
	if err != nil {
		return nil, fmt.Errorf("running tool %q: %w", req.Name, err)
	}
	return output, nil
}
