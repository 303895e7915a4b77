package model

// Finding is a named aesthetic concern with its raw and display severity.
type Finding struct {
	Name         string  `json:"name"`
	Score        float64 `json:"score"`
	DisplayScore float64 `json:"display_score"`
	Level        string  `json:"level,omitempty"`
	Area         string  `json:"area,omitempty"`
	Confidence   float64 `json:"confidence,omitempty"`
	Description  string  `json:"description,omitempty"`
}

// SeverityMapping translates a raw score for one finding into display space.
type SeverityMapping struct {
	ID            string  `json:"id"`
	Finding       string  `json:"finding"`
	ScalingFactor float64 `json:"scaling_factor"`
	ScalingType   string  `json:"scaling_type"`
	Notes         string  `json:"notes,omitempty"`
}
