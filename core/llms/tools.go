package llms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/invopop/jsonschema"
)

var ErrUnknownTool = errors.New("unknown tool")

// Tool is a function the model can ask to have executed.
type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`

	execute func(ctx context.Context, arguments string) (string, error)
}

type ToolFunction struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Parameters  *jsonschema.Schema `json:"parameters,omitempty"`
}

// NewTool describes a function taking arguments of type T. The parameter
// schema is reflected from T, so field tags drive what the model sees.
func NewTool[T any](name, description string, execute func(ctx context.Context, arguments T) (string, error)) Tool {
	reflector := jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}
	var zero T
	schema := reflector.Reflect(zero)
	schema.Version = ""

	return Tool{
		Type: "function",
		Function: ToolFunction{
			Name:        name,
			Description: description,
			Parameters:  schema,
		},
		execute: func(ctx context.Context, arguments string) (string, error) {
			var args T
			if arguments != "" {
				if err := json.Unmarshal([]byte(arguments), &args); err != nil {
					return "", fmt.Errorf("failed to parse %s arguments: %w", name, err)
				}
			}
			return execute(ctx, args)
		},
	}
}

func (t Tool) Name() string {
	return t.Function.Name
}

func (t Tool) Call(ctx context.Context, arguments string) (string, error) {
	if t.execute == nil {
		return "", fmt.Errorf("%w: %s has no implementation", ErrUnknownTool, t.Function.Name)
	}
	return t.execute(ctx, arguments)
}

// Validate checks that the tool is callable and its schema serializes.
func (t Tool) Validate() error {
	if t.Function.Name == "" {
		return fmt.Errorf("tool has no name")
	}
	if t.execute == nil {
		return fmt.Errorf("tool %s has no implementation", t.Function.Name)
	}
	if t.Function.Parameters != nil {
		if _, err := json.Marshal(t.Function.Parameters); err != nil {
			return fmt.Errorf("tool %s has invalid parameters schema: %w", t.Function.Name, err)
		}
	}
	return nil
}

// CallTool finds the tool named by call and runs it.
func CallTool(ctx context.Context, tools []Tool, call ToolCall) (string, error) {
	for _, tool := range tools {
		if tool.Function.Name == call.Name {
			return tool.Call(ctx, call.Arguments)
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownTool, call.Name)
}
