package catalog

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/terra-clan/ciel-content/internal/models"
)

// formationFile is the YAML layout of one seed formation
type formationFile struct {
	ID                    string   `yaml:"id"`
	Level                 string   `yaml:"level"`
	Title                 string   `yaml:"title"`
	Description           string   `yaml:"description"`
	Duration              string   `yaml:"duration"`
	Objectives            []string `yaml:"objectives"`
	Skills                []string `yaml:"skills"`
	CareerPaths           []string `yaml:"career_paths"`
	AdmissionRequirements []string `yaml:"admission_requirements"`
	Highlights            []string `yaml:"program_highlights"`
}

// LoadSeedFormations reads every *.yaml and *.yml file of dir and its direct
// subdirectories as one formation. Invalid files are skipped. When two files
// describe the same level the later one in path order wins.
func LoadSeedFormations(dir string) ([]models.Formation, error) {
	slog.Info("loading seed formations from directory", "dir", dir)

	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("failed to read seed directory: %w", err)
	}

	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			continue
		}
		files = append(files, matches...)

		subMatches, err := filepath.Glob(filepath.Join(dir, "*", pattern))
		if err != nil {
			continue
		}
		files = append(files, subMatches...)
	}
	sort.Strings(files)

	byLevel := make(map[models.Level]models.Formation)
	for _, file := range files {
		f, err := loadFormationFile(file)
		if err != nil {
			slog.Warn("failed to load seed formation", "file", file, "error", err)
			continue
		}
		byLevel[f.Level] = f
	}

	formations := make([]models.Formation, 0, len(byLevel))
	for _, level := range models.Levels {
		if f, ok := byLevel[level]; ok {
			formations = append(formations, f)
		}
	}

	slog.Info("seed formations loaded", "count", len(formations), "total_files", len(files))
	return formations, nil
}

func loadFormationFile(path string) (models.Formation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Formation{}, fmt.Errorf("failed to read file: %w", err)
	}

	var raw formationFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return models.Formation{}, fmt.Errorf("failed to parse YAML: %w", err)
	}

	level, ok := models.ParseLevel(raw.Level)
	if !ok {
		return models.Formation{}, fmt.Errorf("%w: %q", ErrUnknownLevel, raw.Level)
	}
	if raw.Title == "" {
		return models.Formation{}, fmt.Errorf("formation title is required")
	}

	id := raw.ID
	if id == "" {
		id = "seed-" + string(level)
	}

	return models.Formation{
		ID:                    id,
		Level:                 level,
		Title:                 raw.Title,
		Description:           raw.Description,
		Duration:              raw.Duration,
		Objectives:            raw.Objectives,
		Skills:                raw.Skills,
		CareerPaths:           raw.CareerPaths,
		AdmissionRequirements: raw.AdmissionRequirements,
		Highlights:            raw.Highlights,
	}, nil
}
