package domain

// ModelPricing is the per-1K-token price of a model
type ModelPricing struct {
	Model            string  `json:"model"`
	Provider         string  `json:"provider"`
	InputPricePer1K  float64 `json:"inputPricePer1K"`
	OutputPricePer1K float64 `json:"outputPricePer1K"`
}
