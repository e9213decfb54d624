package oracle

import "context"

// MockClassifier returns a canned response or error. Used by pipeline tests
// to exercise the validator and orchestrator without the external service.
type MockClassifier struct {
	Response *Response
	Err      error
	Requests []Request
}

// Classify records the request and returns the canned result.
func (m *MockClassifier) Classify(_ context.Context, req Request) (*Response, error) {
	m.Requests = append(m.Requests, req)
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Response == nil {
		return &Response{LineItems: []Candidate{}}, nil
	}
	return m.Response, nil
}
