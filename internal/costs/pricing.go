package costs

// ModelPricing holds per-1K-token pricing for one model.
type ModelPricing struct {
	InputPer1K  float64
	OutputPer1K float64
}

// pricingTable is adapted from the teacher's ports.GetModelPricing, trimmed
// to the providers internal/llm actually speaks (Anthropic + OpenAI-
// compatible) and extended with a cheaper Haiku-class entry. Lookup is by
// exact model id, so the config defaults (claude-sonnet-4-5,
// claude-haiku-4-5) are not in the table and get defaultPricing.
var pricingTable = map[string]ModelPricing{
	"claude-opus-4":           {InputPer1K: 0.015, OutputPer1K: 0.075},
	"claude-sonnet-4":         {InputPer1K: 0.003, OutputPer1K: 0.015},
	"claude-haiku-4":          {InputPer1K: 0.0008, OutputPer1K: 0.004},
	"gpt-4o":                  {InputPer1K: 0.005, OutputPer1K: 0.015},
	"gpt-4o-mini":             {InputPer1K: 0.00015, OutputPer1K: 0.0006},
	"deepseek-chat":           {InputPer1K: 0.00014, OutputPer1K: 0.00028},
	"deepseek-reasoner":       {InputPer1K: 0.00055, OutputPer1K: 0.00219},
	"llama-3.1-70b-instruct": {InputPer1K: 0.0005, OutputPer1K: 0.0008},
}

// defaultPricing applies to any model absent from pricingTable, e.g. a
// locally-hosted vLLM/Ollama deployment with no published per-token price.
var defaultPricing = ModelPricing{InputPer1K: 0.001, OutputPer1K: 0.002}

// PricingFor returns the known price for model, or defaultPricing.
func PricingFor(model string) ModelPricing {
	if p, ok := pricingTable[model]; ok {
		return p
	}
	return defaultPricing
}

// Calculate returns input/output/total cost in USD for a token count.
func Calculate(inputTokens, outputTokens int, model string) (inputCost, outputCost, totalCost float64) {
	p := PricingFor(model)
	inputCost = float64(inputTokens) / 1000.0 * p.InputPer1K
	outputCost = float64(outputTokens) / 1000.0 * p.OutputPer1K
	totalCost = inputCost + outputCost
	return
}
