package catalog

import (
	"fmt"
	"sync"

	"github.com/terra-clan/ciel-content/internal/models"
)

// Selection is the level currently shown on the formations screen
type Selection struct {
	mu    sync.Mutex
	level models.Level
}

// NewSelection starts on BAC_PRO
func NewSelection() *Selection {
	return &Selection{level: models.LevelBacPro}
}

// Level returns the selected level
func (s *Selection) Level() models.Level {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.level
}

// Select changes the level. Unknown levels leave the selection unchanged.
func (s *Selection) Select(level string) (models.Level, error) {
	l, ok := models.ParseLevel(level)
	if !ok {
		return s.Level(), fmt.Errorf("%w: %q", ErrUnknownLevel, level)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.level = l
	return l, nil
}
