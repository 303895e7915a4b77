package model

import "time"

// Photo is a before/after photo that illustrates a treatment.
type Photo struct {
	ID         string   `json:"id" yaml:"id"`
	URL        string   `json:"url" yaml:"url"`
	Treatment  string   `json:"treatment" yaml:"treatment"`
	Category   string   `json:"category,omitempty" yaml:"category"`
	Issues     []string `json:"issues,omitempty" yaml:"issues"`
	StoryTitle string   `json:"story_title,omitempty" yaml:"story_title"`
}

// Recommendation is a suggested treatment and the findings it addresses.
type Recommendation struct {
	Treatment string   `json:"treatment"`
	Serves    []string `json:"serves,omitempty"`
	Priority  int      `json:"priority,omitempty"`
	Reason    string   `json:"reason,omitempty"`
	Photo     *Photo   `json:"photo,omitempty"`
}

// AreaScore is the aggregate score for one facial area.
type AreaScore struct {
	Name   string   `json:"name"`
	Score  float64  `json:"score"`
	Issues []string `json:"issues,omitempty"`
}

// AnalysisResult is a scaled image analysis ready for display.
type AnalysisResult struct {
	PatientID       string           `json:"patient_id,omitempty"`
	PatientName     string           `json:"patient_name,omitempty"`
	ImageURL        string           `json:"image_url"`
	OverallScore    float64          `json:"overall_score"`
	Findings        []Finding        `json:"findings"`
	Recommendations []Recommendation `json:"recommendations"`
	Areas           []AreaScore      `json:"areas,omitempty"`
	Cached          bool             `json:"cached"`
	Saved           bool             `json:"saved"`
	AnalyzedAt      time.Time        `json:"analyzed_at"`
}
