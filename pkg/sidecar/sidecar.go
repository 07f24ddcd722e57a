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

// Package sidecar reads the optional JSON metadata stored next to an asset.
//
// Two layouts are accepted. Video recordings carry a flat object:
//
//	{"timestamp", "droneType", "confidence", "threatLevel", "detectionCount",
//	 "maxDronesSpotted", "coordinates"}
//
// Snapshots carry a nested one with "image", "detection" and "system"
// sections. Both decode into the same Metadata.
package sidecar

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"

	"github.com/TurbineOne/detection-archive/pkg/threat"
)

// Schema names the layout a sidecar was written in.
type Schema string

const (
	SchemaFlat   Schema = "flat"
	SchemaNested Schema = "nested"
)

// Dimensions of a snapshot image.
type Dimensions struct {
	Width    int `json:"width"`
	Height   int `json:"height"`
	Channels int `json:"channels,omitempty"`
}

// Metadata is the decoded detection context of one asset.
type Metadata struct { //nolint:govet // Field order follows the sidecar.
	Schema           Schema
	Timestamp        string
	DroneType        string
	Confidence       float64
	ThreatLevel      threat.Level
	Coordinates      [][]float64
	DetectionCount   *int
	MaxDronesSpotted *int
	FrameInfo        map[string]interface{}
	Dimensions       *Dimensions
	DeviceInfo       map[string]interface{}
	DetectionSystem  string
	// Raw is the sidecar document as found on disk, unknown fields included.
	Raw json.RawMessage
}

// CorruptError means a sidecar exists but cannot be used. It is never fatal:
// callers log it and carry on as if there were no sidecar.
type CorruptError struct {
	Path   string
	Reason string
	Err    error
}

func (e *CorruptError) Error() string {
	msg := "corrupt sidecar [" + e.Path + "]: " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e *CorruptError) Unwrap() error {
	return e.Err
}

// Config controls sidecar lookup.
type Config struct { //nolint:govet // Don't care about alignment.
	Extension string `yaml:"extension" json:"extension" env:"EXTENSION" validate:"startswith=." doc:"Extension of metadata files paired with assets"`
	MaxBytes  int64  `yaml:"max_bytes" json:"max_bytes" env:"MAX_BYTES" validate:"gt=0" doc:"Larger sidecars are treated as corrupt"`
}

// ConfigDefault returns the default values for a Config.
func ConfigDefault() Config {
	return Config{
		Extension: ".json",
		MaxBytes:  1 << 20, //nolint:mnd // 1 MiB.
	}
}

// Resolver finds and decodes sidecars. It holds no mutable state.
type Resolver struct {
	ext      string
	maxBytes int64
}

// NewResolver returns a Resolver for c.
func NewResolver(c *Config) *Resolver {
	return &Resolver{ext: strings.ToLower(c.Extension), maxBytes: c.MaxBytes}
}

// Path returns where the sidecar of assetPath would be.
func (r *Resolver) Path(assetPath string) string {
	return strings.TrimSuffix(assetPath, filepath.Ext(assetPath)) + r.ext
}

// IsSidecar reports whether name looks like a sidecar file.
func (r *Resolver) IsSidecar(name string) bool {
	return strings.EqualFold(filepath.Ext(name), r.ext)
}

// Resolve returns the metadata of assetPath. A missing sidecar yields
// (nil, nil). A sidecar that exists but cannot be used yields a *CorruptError.
func (r *Resolver) Resolve(assetPath string) (*Metadata, error) {
	path := r.Path(assetPath)

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil //nolint:nilnil // No sidecar is not an error.
	}

	if err != nil {
		return nil, &CorruptError{Path: path, Reason: "unreadable", Err: err}
	}

	defer f.Close() //nolint:errcheck // Read only.

	info, err := f.Stat()
	if err != nil {
		return nil, &CorruptError{Path: path, Reason: "unreadable", Err: err}
	}

	if !info.Mode().IsRegular() {
		return nil, &CorruptError{Path: path, Reason: "not a regular file"}
	}

	if info.Size() > r.maxBytes {
		return nil, &CorruptError{Path: path, Reason: fmt.Sprintf("larger than %d bytes", r.maxBytes)}
	}

	b, err := io.ReadAll(io.LimitReader(f, r.maxBytes+1))
	if err != nil {
		return nil, &CorruptError{Path: path, Reason: "unreadable", Err: err}
	}

	md, err := Decode(b)
	if err != nil {
		var cErr *CorruptError
		if errors.As(err, &cErr) {
			cErr.Path = path
		}

		return nil, err
	}

	return md, nil
}

// detectionFields is the part shared by the flat layout and the nested
// "detection" section.
type detectionFields struct {
	Timestamp        *string                `json:"timestamp"`
	DroneType        *string                `json:"droneType"`
	Confidence       *float64               `json:"confidence"`
	ThreatLevel      *string                `json:"threatLevel"`
	Coordinates      *[][]float64           `json:"coordinates"`
	DetectionCount   *int                   `json:"detectionCount"`
	MaxDronesSpotted *int                   `json:"maxDronesSpotted"`
	FrameInfo        map[string]interface{} `json:"frameInfo"`
}

type document struct {
	detectionFields

	Image *struct {
		Timestamp  *string     `json:"timestamp"`
		Dimensions *Dimensions `json:"dimensions"`
	} `json:"image"`
	Detection *detectionFields `json:"detection"`
	System    *struct {
		CaptureTime     *string                `json:"captureTime"`
		DeviceInfo      map[string]interface{} `json:"deviceInfo"`
		DetectionSystem string                 `json:"detectionSystem"`
	} `json:"system"`
}

// Decode parses a sidecar document. Every failure is a *CorruptError.
func Decode(b []byte) (*Metadata, error) {
	var (
		doc     document
		generic map[string]interface{}
	)

	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, &CorruptError{Reason: "malformed JSON", Err: err}
	}

	// A second, untyped pass tells an explicit null from an absent key.
	if err := json.Unmarshal(b, &generic); err != nil || generic == nil {
		return nil, &CorruptError{Reason: "not a JSON object", Err: err}
	}

	md := &Metadata{Schema: SchemaFlat, Raw: json.RawMessage(append([]byte(nil), b...))}

	fields, section := &doc.detectionFields, generic
	if doc.Detection != nil {
		md.Schema = SchemaNested
		fields = doc.Detection
		section, _ = generic["detection"].(map[string]interface{})
	}

	if err := fields.apply(md, section); err != nil {
		return nil, err
	}

	if doc.Image != nil {
		md.Dimensions = doc.Image.Dimensions

		if md.Timestamp == "" && doc.Image.Timestamp != nil {
			md.Timestamp = *doc.Image.Timestamp
		}
	}

	if doc.System != nil {
		md.DeviceInfo = doc.System.DeviceInfo
		md.DetectionSystem = doc.System.DetectionSystem

		if md.Timestamp == "" && doc.System.CaptureTime != nil {
			md.Timestamp = *doc.System.CaptureTime
		}
	}

	return md, nil
}

func (d *detectionFields) apply(md *Metadata, section map[string]interface{}) error {
	if d.DroneType == nil || strings.TrimSpace(*d.DroneType) == "" {
		return &CorruptError{Reason: "missing droneType"}
	}

	if d.Confidence == nil {
		return &CorruptError{Reason: "missing confidence"}
	}

	if *d.Confidence < 0 || *d.Confidence > 1 {
		return &CorruptError{Reason: fmt.Sprintf("confidence %v outside [0, 1]", *d.Confidence)}
	}

	md.DroneType = *d.DroneType
	md.Confidence = *d.Confidence
	md.DetectionCount = d.DetectionCount
	md.MaxDronesSpotted = d.MaxDronesSpotted
	md.FrameInfo = d.FrameInfo

	if d.Timestamp != nil {
		md.Timestamp = *d.Timestamp
	}

	md.ThreatLevel = threat.FromConfidence(md.Confidence)

	if d.ThreatLevel != nil {
		l, ok := threat.Parse(*d.ThreatLevel)
		if !ok {
			return &CorruptError{Reason: fmt.Sprintf("unknown threatLevel %q", *d.ThreatLevel)}
		}

		md.ThreatLevel = l
	}

	if v, present := section["coordinates"]; present && v == nil {
		return &CorruptError{Reason: "coordinates is null"}
	}

	md.Coordinates = [][]float64{}
	if d.Coordinates != nil {
		md.Coordinates = *d.Coordinates
	}

	return nil
}
