// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// ValidationResult is the verdict of the second model pass over extracted
// information. CleanedInfo is the normalized copy, or the unchanged input
// when validation could not run.
type ValidationResult struct {
	IsValid     bool         `json:"isValid" yaml:"is_valid"`
	Errors      []string     `json:"errors" yaml:"errors"`
	CleanedInfo DinosaurInfo `json:"cleanedInfo" yaml:"cleaned_info"`
}

// PipelineData is the payload of a successful research run.
type PipelineData struct {
	BasicInfo DinosaurInfo `json:"basicInfo" yaml:"basic_info"`
	SavedData *Dinosaur    `json:"savedData" yaml:"saved_data"`
	Images    []Image      `json:"images" yaml:"images"`
	Fossils   []Fossil     `json:"fossils,omitempty" yaml:"fossils,omitempty"`
}

// PipelineResult is returned by every research run, successful or not.
// ProcessingTime is wall-clock milliseconds from entry to exit.
type PipelineResult struct {
	Success        bool          `json:"success" yaml:"success"`
	Data           *PipelineData `json:"data,omitempty" yaml:"data,omitempty"`
	Error          string        `json:"error,omitempty" yaml:"error,omitempty"`
	Errors         []string      `json:"errors,omitempty" yaml:"errors,omitempty"`
	ProcessingTime int64         `json:"processingTime" yaml:"processing_time"`
}

// ResearchResult is what the agent hands back for one subject.
type ResearchResult struct {
	Subject        string          `json:"subject" yaml:"subject"`
	Success        bool            `json:"success" yaml:"success"`
	Dinosaur       *PipelineResult `json:"dinosaur,omitempty" yaml:"dinosaur,omitempty"`
	Error          string          `json:"error,omitempty" yaml:"error,omitempty"`
	Errors         []string        `json:"errors,omitempty" yaml:"errors,omitempty"`
	ProcessingTime int64           `json:"processingTime" yaml:"processing_time"`
}

// AgentStats is the status summary reported by the agent.
type AgentStats struct {
	TotalDinosaurs int      `json:"totalDinosaurs" yaml:"total_dinosaurs"`
	RecentActivity []string `json:"recentActivity" yaml:"recent_activity"`
	SystemStatus   string   `json:"systemStatus" yaml:"system_status"`
}
