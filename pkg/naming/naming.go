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

// Package naming extracts best-effort detection details from asset filenames.
//
// Filenames are free-form. Parse tries a list of rules in order and reports
// which one produced the result, so callers can tell a confident parse from
// a guess.
package naming

import (
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/TurbineOne/detection-archive/pkg/threat"
)

// Rule identifies the parsing rule that produced a Result.
type Rule int

const (
	// RuleDefault means nothing could be extracted.
	RuleDefault Rule = iota
	// RulePositional is the fixed <prefix>_<context>_<timestamp>_<subject> layout.
	RulePositional
	// RuleStructured found a run of timestamp-like segments.
	RuleStructured
)

func (r Rule) String() string {
	switch r {
	case RuleStructured:
		return "structured"
	case RulePositional:
		return "positional"
	case RuleDefault:
		return "default"
	}

	return "unknown"
}

// UnknownSubject is used when no subject classification can be found.
const UnknownSubject = "Unknown"

const (
	separator           = "_"
	minTimestampDigits  = 6
	positionalTimestamp = 2
	positionalSubject   = 3
)

// Result is always fully populated. Time is zero when Timestamp is empty or
// unparseable.
type Result struct {
	Rule          Rule
	Timestamp     string
	Time          time.Time
	Subject       string
	Threat        threat.Level
	Confidence    float64
	HasConfidence bool
}

// timestampLayouts are tried in order. Layouts without a zone are read in
// the caller's location.
var timestampLayouts = []string{ //nolint:gochecknoglobals // Static table.
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02_15-04-05",
	"20060102_150405",
	"2006-01-02_15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
	"20060102",
}

// ParseTimestamp reads a timestamp in any of the layouts seen in recordings
// and sidecars.
func ParseTimestamp(raw string, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}

	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}

// Parse is ParseIn using UTC for zoneless timestamps.
func Parse(filename string) Result {
	return ParseIn(filename, time.UTC)
}

// ParseIn extracts a timestamp, subject, threat level and confidence hint
// from filename. It never fails.
func ParseIn(filename string, loc *time.Location) Result {
	base := filepath.Base(filename)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	segs := strings.Split(stem, separator)

	res, ok := structured(segs, loc)
	if !ok {
		res, ok = positional(segs, loc)
	}

	if !ok {
		res = Result{Rule: RuleDefault, Subject: UnknownSubject}
	}

	res.Threat = threat.Low
	if l, found := threat.Find(base); found {
		res.Threat = l
	}

	if c, found := confidenceHint(segs); found {
		res.Confidence = c
		res.HasConfidence = true
	}

	return res
}

// structured looks for the first run of consecutive timestamp-like segments
// that together parse as a time. The subject is the first later segment that
// is neither a threat level nor a number.
func structured(segs []string, loc *time.Location) (Result, bool) {
	for i := 0; i < len(segs); i++ {
		if !isTimestampSegment(segs[i]) {
			continue
		}

		j := i + 1
		for j < len(segs) && isTimestampSegment(segs[j]) {
			j++
		}

		// Try the longest run first, so "20230515_123045" is not read as a
		// bare date.
		for k := j; k > i; k-- {
			raw := strings.Join(segs[i:k], separator)
			if t, ok := ParseTimestamp(raw, loc); ok {
				return Result{
					Rule:      RuleStructured,
					Timestamp: raw,
					Time:      t,
					Subject:   subjectAfter(segs[k:]),
				}, true
			}
		}

		i = j - 1
	}

	return Result{}, false
}

func positional(segs []string, loc *time.Location) (Result, bool) {
	if len(segs) <= positionalTimestamp || segs[positionalTimestamp] == "" {
		return Result{}, false
	}

	res := Result{
		Rule:      RulePositional,
		Timestamp: segs[positionalTimestamp],
		Subject:   UnknownSubject,
	}

	if t, ok := ParseTimestamp(res.Timestamp, loc); ok {
		res.Time = t
	}

	if len(segs) > positionalSubject && segs[positionalSubject] != "" {
		res.Subject = segs[positionalSubject]
	}

	return res, true
}

func subjectAfter(segs []string) string {
	for _, s := range segs {
		if s == "" {
			continue
		}

		if _, isLevel := threat.Parse(s); isLevel {
			continue
		}

		if _, err := strconv.ParseFloat(s, 64); err == nil {
			continue
		}

		return s
	}

	return UnknownSubject
}

// confidenceHint is a trailing decimal segment in [0, 1], like the "0.87"
// the detector appends to snapshot names.
func confidenceHint(segs []string) (float64, bool) {
	if len(segs) == 0 {
		return 0, false
	}

	last := segs[len(segs)-1]
	if !strings.Contains(last, ".") {
		return 0, false
	}

	c, err := strconv.ParseFloat(last, 64)
	if err != nil || c < 0 || c > 1 {
		return 0, false
	}

	return c, true
}

func isTimestampSegment(s string) bool {
	if s == "" || s[0] < '0' || s[0] > '9' {
		return false
	}

	digits := 0

	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '-' || r == ':' || r == 'T' || r == '.' || r == 'Z' || r == '+':
		default:
			return false
		}
	}

	return digits >= minTimestampDigits
}
