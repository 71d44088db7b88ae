package market

import (
	"context"
	"errors"
	"fmt"

	"ditto-builder-backend/internal/llm"
)

const (
	// ToolName is the function name the model calls.
	ToolName = "getTokenInfo"

	// AddressArg is the single argument of ToolName.
	AddressArg = "tokenAddress"
)

var ErrUnknownTool = errors.New("unknown tool")

// Fetcher is the lookup the tool delegates to.
type Fetcher interface {
	FetchToken(ctx context.Context, address string) (map[string]any, error)
}

// Tool adapts a Fetcher to the model's function-calling protocol.
type Tool struct {
	fetcher Fetcher
}

// NewTool wraps f as the getTokenInfo tool.
func NewTool(f Fetcher) *Tool {
	return &Tool{fetcher: f}
}

// Declaration returns the schema advertised to the model.
func (t *Tool) Declaration() llm.ToolDeclaration {
	return llm.ToolDeclaration{
		Name:        ToolName,
		Description: "Get real-time token data (price, liquidity, mcap, volume) from DexScreener using a Solana or EVM contract address (CA). Use this when the user provides a contract address.",
		Parameters: []llm.ToolParameter{{
			Name:        AddressArg,
			Description: "The contract address (CA) of the token.",
			Required:    true,
		}},
	}
}

// Address returns the address argument of call, if present.
func Address(call llm.ToolCall) (string, bool) {
	return call.StringArg(AddressArg)
}

// Invoke services call and wraps the raw response the way the model expects it.
func (t *Tool) Invoke(ctx context.Context, call llm.ToolCall) (*llm.ToolResult, error) {
	if call.Name != ToolName {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, call.Name)
	}
	address, ok := Address(call)
	if !ok {
		return nil, ErrMissingAddress
	}

	data, err := t.fetcher.FetchToken(ctx, address)
	if err != nil {
		return nil, err
	}
	return &llm.ToolResult{
		CallID:  call.ID,
		Name:    call.Name,
		Payload: map[string]any{"result": data},
	}, nil
}

// StatusNote is the line appended to the reply while the lookup runs.
func (t *Tool) StatusNote(call llm.ToolCall) string {
	address, _ := Address(call)
	return fmt.Sprintf("\n\n*Scanning DexScreener for %s...*", address)
}
