package testutil

import (
	"context"
	"sync"

	"squash-venue-enrichment/internal/models"
)

// MockPlaces implements processor.PlacesGateway for tests. Unknown ids
// fail with a NOT_FOUND error, like the real API.
type MockPlaces struct {
	Mu         sync.Mutex
	Details    map[string]*models.PlacesSnapshot
	DetailsErr map[string]error
	Refresh    map[string]string
	RefreshErr error
	Found      map[int64]string
	FindErr    error

	DetailCalls []string
	FindCalls   int
}

func NewMockPlaces() *MockPlaces {
	return &MockPlaces{
		Details:    map[string]*models.PlacesSnapshot{},
		DetailsErr: map[string]error{},
		Refresh:    map[string]string{},
		Found:      map[int64]string{},
	}
}

// NotFound is the error the mock returns for unknown Place IDs.
type NotFound string

func (e NotFound) Error() string { return "maps: NOT_FOUND - " + string(e) }

func (m *MockPlaces) GetDetails(ctx context.Context, placeID string) (*models.PlacesSnapshot, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.DetailCalls = append(m.DetailCalls, placeID)
	if err, ok := m.DetailsErr[placeID]; ok {
		return nil, err
	}
	if s, ok := m.Details[placeID]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, NotFound(placeID)
}

func (m *MockPlaces) RefreshPlaceID(ctx context.Context, placeID string) (string, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.RefreshErr != nil {
		return "", m.RefreshErr
	}
	if id, ok := m.Refresh[placeID]; ok {
		return id, nil
	}
	return "", NotFound(placeID)
}

func (m *MockPlaces) FindPlaceID(ctx context.Context, venue models.Venue) (string, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.FindCalls++
	if m.FindErr != nil {
		return "", m.FindErr
	}
	return m.Found[venue.ID], nil
}

// MockAI implements processor.AICategorizer for tests.
type MockAI struct {
	Mu    sync.Mutex
	Resp  map[int64]models.AICategoryResult
	Calls int
	Hints []string
}

func NewMockAI() *MockAI {
	return &MockAI{Resp: map[int64]models.AICategoryResult{}}
}

func (m *MockAI) Categorize(ctx context.Context, venue models.Venue, snap models.PlacesSnapshot, hint string) models.AICategoryResult {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Calls++
	m.Hints = append(m.Hints, hint)
	if r, ok := m.Resp[venue.ID]; ok {
		return r
	}
	// default: the model could not decide either
	return models.AICategoryResult{Confidence: models.ConfidenceLow, Reasoning: "mock default"}
}

// MockCourts implements processor.CourtCounter for tests.
type MockCourts struct {
	Mu    sync.Mutex
	Resp  map[int64]models.CourtCountResult
	Err   map[int64]error
	Calls int
}

func NewMockCourts() *MockCourts {
	return &MockCourts{Resp: map[int64]models.CourtCountResult{}, Err: map[int64]error{}}
}

func (m *MockCourts) AnalyzeCourtCount(ctx context.Context, venue models.Venue, snap models.PlacesSnapshot) (models.CourtCountResult, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Calls++
	if err, ok := m.Err[venue.ID]; ok {
		return models.CourtCountResult{}, err
	}
	if r, ok := m.Resp[venue.ID]; ok {
		return r, nil
	}
	return models.CourtCountResult{Confidence: models.ConfidenceLow, Reasoning: "nothing found", EvidenceFound: true}, nil
}
