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
	"time"

	"github.com/goccy/go-json"

	"github.com/TurbineOne/detection-archive/pkg/naming"
	"github.com/TurbineOne/detection-archive/pkg/sidecar"
	"github.com/TurbineOne/detection-archive/pkg/threat"
)

// Source tells where the metadata of an entry came from.
type Source string

const (
	SourceSidecar  Source = "sidecar"
	SourceFilename Source = "filename"
)

// Metadata is always populated. Without a sidecar the fields hold what the
// filename suggests, or defaults.
type Metadata struct { //nolint:govet // Field order is the JSON order.
	Source           Source                 `json:"source"`
	Timestamp        string                 `json:"timestamp"`
	DroneType        string                 `json:"droneType"`
	Confidence       float64                `json:"confidence"`
	ThreatLevel      threat.Level           `json:"threatLevel"`
	Coordinates      [][]float64            `json:"coordinates"`
	DetectionCount   *int                   `json:"detectionCount,omitempty"`
	MaxDronesSpotted *int                   `json:"maxDronesSpotted,omitempty"`
	FrameInfo        map[string]interface{} `json:"frameInfo,omitempty"`
	Dimensions       *sidecar.Dimensions    `json:"dimensions,omitempty"`
	DeviceInfo       map[string]interface{} `json:"deviceInfo,omitempty"`
	DetectionSystem  string                 `json:"detectionSystem,omitempty"`
	ParseRule        string                 `json:"parseRule,omitempty"`
	Raw              json.RawMessage        `json:"raw,omitempty"`
}

func fromSidecar(md *sidecar.Metadata, parsed naming.Result) Metadata {
	m := Metadata{
		Source:           SourceSidecar,
		Timestamp:        md.Timestamp,
		DroneType:        md.DroneType,
		Confidence:       md.Confidence,
		ThreatLevel:      md.ThreatLevel,
		Coordinates:      md.Coordinates,
		DetectionCount:   md.DetectionCount,
		MaxDronesSpotted: md.MaxDronesSpotted,
		FrameInfo:        md.FrameInfo,
		Dimensions:       md.Dimensions,
		DeviceInfo:       md.DeviceInfo,
		DetectionSystem:  md.DetectionSystem,
		Raw:              md.Raw,
	}

	if m.Timestamp == "" {
		m.Timestamp = parsed.Timestamp
	}

	return m
}

func fromFilename(parsed naming.Result, modTime time.Time) Metadata {
	m := Metadata{
		Source:      SourceFilename,
		Timestamp:   parsed.Timestamp,
		DroneType:   parsed.Subject,
		ThreatLevel: parsed.Threat,
		Coordinates: [][]float64{},
		ParseRule:   parsed.Rule.String(),
	}

	if parsed.HasConfidence {
		m.Confidence = parsed.Confidence
	}

	if m.Timestamp == "" {
		m.Timestamp = modTime.Format(time.RFC3339)
	}

	return m
}
