package message

// Usage accumulates token counts and dollar cost across the model calls and
// tool invocations of one or more runs. PerTool breaks ToolCosts down by tool
// name.
type Usage struct {
	InputTokens           int                `json:"input_tokens"`
	InputTokensCached     int                `json:"input_tokens_cached"`
	OutputTokens          int                `json:"output_tokens"`
	OutputTokensReasoning int                `json:"output_tokens_reasoning"`
	TotalCost             float64            `json:"total_cost"`
	ToolCosts             float64            `json:"tool_costs"`
	PerTool               map[string]float64 `json:"per_tool,omitempty"`
}

// Acc returns a new Usage with other added on top of u, field by field.
// Neither operand is mutated. TotalCost already carries tool costs (AccTool
// folds them in), so summing accumulated totals never double counts.
func (u Usage) Acc(other Usage) Usage {
	out := Usage{
		InputTokens:           u.InputTokens + other.InputTokens,
		InputTokensCached:     u.InputTokensCached + other.InputTokensCached,
		OutputTokens:          u.OutputTokens + other.OutputTokens,
		OutputTokensReasoning: u.OutputTokensReasoning + other.OutputTokensReasoning,
		TotalCost:             u.TotalCost + other.TotalCost,
		ToolCosts:             u.ToolCosts + other.ToolCosts,
	}
	if len(u.PerTool) > 0 || len(other.PerTool) > 0 {
		out.PerTool = make(map[string]float64, len(u.PerTool)+len(other.PerTool))
		for name, cost := range u.PerTool {
			out.PerTool[name] += cost
		}
		for name, cost := range other.PerTool {
			out.PerTool[name] += cost
		}
	}
	return out
}

// AccTool returns a new Usage with the cost of a single tool invocation added.
// The cost counts toward both ToolCosts and TotalCost.
func (u Usage) AccTool(name string, cost float64) Usage {
	if cost == 0 {
		return u
	}
	return u.Acc(Usage{TotalCost: cost, ToolCosts: cost, PerTool: map[string]float64{name: cost}})
}

// IsZero reports whether the usage carries no accounting information.
func (u Usage) IsZero() bool {
	return u.InputTokens == 0 && u.OutputTokens == 0 && u.TotalCost == 0 && u.ToolCosts == 0
}
