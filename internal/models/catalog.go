package models

import "strings"

// Level is a rung of the CIEL training ladder. Levels are ordered:
// BAC_PRO < BTS < MASTER.
type Level string

const (
	LevelBacPro Level = "BAC_PRO"
	LevelBTS    Level = "BTS"
	LevelMaster Level = "MASTER"
)

// Levels lists every level in ladder order.
var Levels = []Level{LevelBacPro, LevelBTS, LevelMaster}

// ParseLevel accepts "BAC_PRO", "bac-pro", "bts", ... and reports whether the
// value names a known level.
func ParseLevel(s string) (Level, bool) {
	l := Level(strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(s)), "-", "_"))
	return l, l.Rank() > 0
}

// Rank is the level's position on the ladder, starting at 1. Unknown levels
// rank 0 and sort last.
func (l Level) Rank() int {
	switch l {
	case LevelBacPro:
		return 1
	case LevelBTS:
		return 2
	case LevelMaster:
		return 3
	default:
		return 0
	}
}

// Label is the display name of the level.
func (l Level) Label() string {
	switch l {
	case LevelBacPro:
		return "Bac Pro"
	case LevelBTS:
		return "BTS"
	case LevelMaster:
		return "Master"
	default:
		return string(l)
	}
}

// Formation is a training programme at one level. Read-only reference data.
type Formation struct {
	ID                    string   `json:"id"`
	Level                 Level    `json:"level"`
	Title                 string   `json:"title"`
	Description           string   `json:"description"`
	Duration              string   `json:"duration"`
	Objectives            []string `json:"objectives"`
	Skills                []string `json:"skills"`
	CareerPaths           []string `json:"career_paths"`
	AdmissionRequirements []string `json:"admission_requirements"`
	Highlights            []string `json:"program_highlights"`
}

// Specialization is one track described on the programme's landing page.
type Specialization struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// CielInfo is the static descriptive payload of the programme (display only).
type CielInfo struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	Description     string           `json:"description"`
	Mission         string           `json:"mission"`
	Specializations []Specialization `json:"specializations"`
	Stats           map[string]int   `json:"stats"`
}
