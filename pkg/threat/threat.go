// Frontline Perception System
// Copyright (C) 2020-2025 TurbineOne LLC
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package threat holds the ordered threat level of a detection.
package threat

import (
	"strings"
)

// Level is a detection threat level. Low < Medium < High.
type Level string

const (
	Low    Level = "Low"
	Medium Level = "Medium"
	High   Level = "High"
)

// Thresholds used by the detector when it labels a detection.
const (
	HighConfidence   = 0.8
	MediumConfidence = 0.65
)

// Parse accepts a level name in any letter case.
func Parse(s string) (Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return Low, true
	case "medium":
		return Medium, true
	case "high":
		return High, true
	}

	return "", false
}

// FromConfidence applies the detector's labelling rule.
func FromConfidence(confidence float64) Level {
	switch {
	case confidence > HighConfidence:
		return High
	case confidence > MediumConfidence:
		return Medium
	default:
		return Low
	}
}

// Find returns the first level name found as a substring of s, checking
// High, then Medium, then Low.
func Find(s string) (Level, bool) {
	for _, l := range []Level{High, Medium, Low} {
		if strings.Contains(s, string(l)) {
			return l, true
		}
	}

	return "", false
}

// Rank orders levels; unknown values rank below Low.
func (l Level) Rank() int {
	switch l {
	case Low:
		return 1
	case Medium:
		return 2 //nolint:mnd // Ordinal.
	case High:
		return 3 //nolint:mnd // Ordinal.
	}

	return 0
}
