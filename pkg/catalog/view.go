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

package catalog

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/exp/slices"

	"github.com/TurbineOne/detection-archive/pkg/threat"
)

// View is the wire form of an Entry.
type View struct { //nolint:govet // Field order is the JSON order.
	ID           string    `json:"id"`
	Filename     string    `json:"filename"`
	Timestamp    string    `json:"timestamp"`
	URL          string    `json:"url"`
	ThumbnailURL string    `json:"thumbnailUrl,omitempty"`
	Kind         Kind      `json:"kind"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"contentType"`
	Metadata     *Metadata `json:"metadata"`
}

// URLs are the path prefixes under which assets and thumbnails are served.
type URLs struct {
	Assets     string
	Thumbnails string
}

// NewView renders e for clients. Ids are path-escaped, so names with spaces
// or '#' survive the round trip.
func NewView(e *Entry, u URLs) View {
	id := url.PathEscape(e.ID)

	v := View{
		ID:          e.ID,
		Filename:    e.Filename,
		Timestamp:   e.Timestamp.Format(time.RFC3339),
		URL:         strings.TrimSuffix(u.Assets, "/") + "/" + id,
		Kind:        e.Kind,
		Size:        e.Size,
		ContentType: e.ContentType,
		Metadata:    &e.Metadata,
	}

	switch {
	case e.Kind == KindVideo && u.Thumbnails != "":
		v.ThumbnailURL = strings.TrimSuffix(u.Thumbnails, "/") + "/" + id
	case e.Kind == KindImage:
		v.ThumbnailURL = v.URL
	}

	return v
}

// Filter narrows a listing. Zero values match everything.
type Filter struct {
	Kinds        []Kind
	ThreatLevels []threat.Level
	MinThreat    threat.Level
	Since        time.Time
	Limit        int
}

// Apply returns the entries matching f, keeping their order.
func (f *Filter) Apply(entries []Entry) []Entry {
	out := make([]Entry, 0, len(entries))

	for i := range entries {
		e := &entries[i]

		if len(f.Kinds) > 0 && !slices.Contains(f.Kinds, e.Kind) {
			continue
		}

		if len(f.ThreatLevels) > 0 && !slices.Contains(f.ThreatLevels, e.Metadata.ThreatLevel) {
			continue
		}

		if f.MinThreat != "" && e.Metadata.ThreatLevel.Rank() < f.MinThreat.Rank() {
			continue
		}

		if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
			continue
		}

		out = append(out, *e)

		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}

	return out
}

// InvalidFilterError reports a filter parameter that could not be parsed.
type InvalidFilterError struct {
	Param string
	Value string
}

func (e *InvalidFilterError) Error() string {
	return "invalid " + e.Param + " [" + e.Value + "]"
}

// splitParam flattens repeated and comma-separated query values.
func splitParam(q url.Values, key string) []string {
	var out []string

	for _, v := range q[key] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}

	return out
}

// ParseFilter reads a Filter from query parameters: kind, threatLevel,
// minThreat, since (RFC 3339) and limit. Absent parameters match everything.
func ParseFilter(q url.Values) (Filter, error) {
	var f Filter

	for _, v := range splitParam(q, "kind") {
		k := Kind(strings.ToLower(v))
		if k != KindVideo && k != KindImage {
			return f, &InvalidFilterError{Param: "kind", Value: v}
		}

		f.Kinds = append(f.Kinds, k)
	}

	for _, v := range splitParam(q, "threatLevel") {
		l, ok := threat.Parse(v)
		if !ok {
			return f, &InvalidFilterError{Param: "threatLevel", Value: v}
		}

		f.ThreatLevels = append(f.ThreatLevels, l)
	}

	if v := q.Get("minThreat"); v != "" {
		l, ok := threat.Parse(v)
		if !ok {
			return f, &InvalidFilterError{Param: "minThreat", Value: v}
		}

		f.MinThreat = l
	}

	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, &InvalidFilterError{Param: "since", Value: v}
		}

		f.Since = t
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, &InvalidFilterError{Param: "limit", Value: v}
		}

		f.Limit = n
	}

	return f, nil
}
