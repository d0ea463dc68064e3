package store

import (
	"sync"

	"recipe-server/internal/model"
)

type reviewStore struct {
	mu   sync.RWMutex
	data map[int64][]model.Review
}

func newReviewStore() *reviewStore {
	return &reviewStore{data: make(map[int64][]model.Review)}
}

func (m *reviewStore) append(recipeID int64, review model.Review) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[recipeID] = append(m.data[recipeID], review)
}

func (m *reviewStore) list(recipeID int64) []model.Review {
	m.mu.RLock()
	defer m.mu.RUnlock()

	reviews := m.data[recipeID]
	out := make([]model.Review, len(reviews))
	copy(out, reviews)
	return out
}

func (m *reviewStore) average(recipeID int64) (float64, int) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	reviews := m.data[recipeID]
	if len(reviews) == 0 {
		return 0, 0
	}
	sum := 0
	for _, r := range reviews {
		sum += r.Rating
	}
	return float64(sum) / float64(len(reviews)), len(reviews)
}
