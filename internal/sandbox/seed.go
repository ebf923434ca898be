package sandbox

import (
	"encoding/json"

	"github.com/MEKXH/reviewdesk/internal/approval"
)

func confidence(v float64) *float64 {
	return &v
}

// DemoInputs returns a small review queue covering the keyword step and two
// content steps.
func DemoInputs() []CreateInput {
	return []CreateInput{
		{
			PipelineStep: approval.DefaultKeywordStep,
			InputData:    json.RawMessage(`{"topic":"testing Go services","audience":"backend engineers"}`),
			OutputData: json.RawMessage(`{
  "main_keyword": "go integration testing",
  "primary_keywords": ["go integration testing", "golang test containers", "go http testing"],
  "secondary_keywords": ["table driven tests", "httptest server", "test fixtures"],
  "lsi_keywords": ["mocking in go", "testing pyramid", "ci pipelines"],
  "long_tail_keywords": ["how to test a go http handler", "integration tests with docker in go"]
}`),
			ConfidenceScore: confidence(0.82),
			Suggestions:     []string{"Consider promoting a long-tail keyword if search volume is low."},
		},
		{
			PipelineStep: "outline",
			InputData:    json.RawMessage(`{"main_keyword":"go integration testing"}`),
			OutputData: json.RawMessage(`{
  "title": "Integration Testing Go Services Without the Pain",
  "sections": [
    {"heading": "Why unit tests are not enough", "points": ["contract drift", "wiring bugs"]},
    {"heading": "Spinning up dependencies", "points": ["httptest", "containers"]},
    {"heading": "Keeping tests fast", "points": ["parallelism", "fixtures"]}
  ]
}`),
			ConfidenceScore: confidence(0.74),
			Suggestions:     []string{"The third section could cover flaky test triage."},
		},
		{
			PipelineStep: "draft",
			InputData:    json.RawMessage(`{"outline_id":"outline-1"}`),
			OutputData: json.RawMessage(`{
  "title": "Integration Testing Go Services Without the Pain",
  "body": "## Why unit tests are not enough\n\nUnit tests prove that a function does what it says. They do not prove that the pieces fit.\n\n## Spinning up dependencies\n\nUse ` + "`httptest.NewServer`" + ` for HTTP collaborators and a throwaway database for storage.\n"
}`),
			ConfidenceScore: confidence(0.58),
			Suggestions:     []string{"Tone is slightly informal for the target audience.", "Add a code sample to the second section."},
		},
	}
}

// Seed inserts the demo review queue.
func (s *Service) Seed() ([]approval.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.store.Load()
	if err != nil {
		return nil, err
	}
	created := make([]approval.Request, 0, 3)
	for _, input := range DemoInputs() {
		created = append(created, s.createLocked(&data, input))
	}
	if err := s.store.Save(data); err != nil {
		return nil, err
	}
	return created, nil
}
