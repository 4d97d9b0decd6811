package model

import (
	"fmt"
	"sort"

	"github.com/harun/oba/pkg/message"
)

// rate holds the dollar cost per 1M input / cached-input / output tokens.
type rate struct {
	in       float64
	cachedIn float64
	out      float64
}

// TODO: add variable rates once inputs past 200k tokens price differently.
var modelRates = map[string]rate{
	"gpt-4.1":              {2.00, 0.50, 8.00},
	"gpt-5-nano":           {0.05, 0.005, 0.40},
	"gpt-5-mini":           {0.25, 0.025, 2.00},
	"gpt-5":                {1.25, 0.125, 10.00},
	"gpt-5.1":              {1.25, 0.125, 10.00},
	"claude-haiku-4-5":     {1.00, 0.100, 5.00},
	"claude-sonnet-4-5":    {3.00, 0.300, 15.00},
	"claude-opus-4-1":      {15.00, 1.500, 75.00},
	"gemini-2.5-flash":     {0.30, 0.030, 1.00},
	"gemini-2.5-pro":       {1.25, 0.125, 10.00},
	"gemini-3-pro-preview": {2.00, 0.020, 12.00},
}

// KnownModel reports whether a rate table entry exists for the model id.
func KnownModel(modelID string) bool {
	_, ok := modelRates[modelID]
	return ok
}

// KnownModels returns the model ids present in the rate table, sorted.
func KnownModels() []string {
	ids := make([]string, 0, len(modelRates))
	for id := range modelRates {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DollarCost computes the dollar cost of a call from its token usage using
// the static rate table.
func DollarCost(modelID string, u message.Usage) (float64, error) {
	r, ok := modelRates[modelID]
	if !ok {
		return 0, fmt.Errorf("unknown model id %q", modelID)
	}
	inCost := float64(u.InputTokens-u.InputTokensCached) * r.in
	cachedCost := float64(u.InputTokensCached) * r.cachedIn
	outCost := float64(u.OutputTokens) * r.out
	return (inCost + cachedCost + outCost) / 1e6, nil
}
