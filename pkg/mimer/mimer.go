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

// mimer is a helper package to determine the mime type of a media file.
//
// Magic bytes decide first. The extension is only consulted when the
// content is not recognized, and application/octet-stream is the last resort.
package mimer

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aofei/mimesniffer"
)

// Media types produced by this package.
const (
	MediaTypeMP4       = "video/mp4"
	MediaTypeQuickTime = "video/quicktime"
	MediaTypeWebM      = "video/webm"
	MediaTypeMatroska  = "video/x-matroska"
	MediaTypeAVI       = "video/x-msvideo"
	MediaTypeMPEGTS    = "video/mp2t"
	MediaTypeJPEG      = "image/jpeg"

	UnknownMediaType = "application/octet-stream"
)

// fingerprintSize is how much of a file we look at. Every signature below
// fits in the first 64 bytes except the transport stream check, which wants
// a few packets.
const fingerprintSize = 512

var extensionTypes = map[string]string{ //nolint:gochecknoglobals // Static table.
	".mp4":  MediaTypeMP4,
	".m4v":  MediaTypeMP4,
	".webm": MediaTypeWebM,
	".mov":  MediaTypeQuickTime,
	".avi":  MediaTypeAVI,
	".mkv":  MediaTypeMatroska,
	".ts":   MediaTypeMPEGTS,
	".jpg":  MediaTypeJPEG,
	".jpeg": MediaTypeJPEG,
}

// isISOBMFFSignature reports an ISO base media file: a box size followed by
// the "ftyp" box type at offset 4.
func isISOBMFFSignature(buffer []byte) bool {
	return len(buffer) >= 8 && string(buffer[4:8]) == "ftyp"
}

// isQuickTimeSignature is an ISO BMFF file whose major brand is "qt  ".
func isQuickTimeSignature(buffer []byte) bool {
	return isISOBMFFSignature(buffer) && len(buffer) >= 12 && string(buffer[8:12]) == "qt  "
}

var ebmlMagic = []byte{0x1A, 0x45, 0xDF, 0xA3} //nolint:gochecknoglobals // Constant.

func isEBMLSignature(buffer []byte) bool {
	return bytes.HasPrefix(buffer, ebmlMagic)
}

// isWebMSignature looks for the "webm" DocType inside the EBML header.
// Matroska files carry "matroska" there instead.
func isWebMSignature(buffer []byte) bool {
	const headerScan = 64

	if !isEBMLSignature(buffer) {
		return false
	}

	end := min(len(buffer), headerScan)

	return bytes.Contains(buffer[:end], []byte("webm"))
}

func isAVISignature(buffer []byte) bool {
	return len(buffer) >= 12 && string(buffer[0:4]) == "RIFF" && string(buffer[8:12]) == "AVI "
}

func isJPEGSignature(buffer []byte) bool {
	return len(buffer) >= 3 && buffer[0] == 0xFF && buffer[1] == 0xD8 && buffer[2] == 0xFF
}

// isVideoTsSignature returns true if the given buffer is a video.ts file.
// According to https://en.wikipedia.org/wiki/List_of_file_signatures,
// the hex value 0x47 should be the first byte of a video.ts file and
// repeated every 188 bytes.
func isVideoTsSignature(buffer []byte) bool {
	const (
		tsSignature         = 0x47
		tsSignatureInterval = 188
	)

	if len(buffer) < tsSignatureInterval {
		return false
	}

	for i := 0; i < len(buffer); i += tsSignatureInterval {
		if buffer[i] != tsSignature {
			return false
		}
	}

	return true
}

type signature struct {
	mime  string
	match func([]byte) bool
}

// Order matters: the more specific check of a family comes first.
var signatures = []signature{ //nolint:gochecknoglobals // Static table.
	{MediaTypeQuickTime, isQuickTimeSignature},
	{MediaTypeMP4, isISOBMFFSignature},
	{MediaTypeWebM, isWebMSignature},
	{MediaTypeMatroska, isEBMLSignature},
	{MediaTypeAVI, isAVISignature},
	{MediaTypeJPEG, isJPEGSignature},
	{MediaTypeMPEGTS, isVideoTsSignature},
}

// init initializes the mimer package.
func init() {
	// Registered so that mimesniffer agrees with us on our own formats.
	for _, s := range signatures {
		mimesniffer.Register(s.mime, s.match)
	}
}

// FromSignature returns the media type implied by the leading bytes of a file.
func FromSignature(buffer []byte) (string, bool) {
	for _, s := range signatures {
		if s.match(buffer) {
			return s.mime, true
		}
	}

	if len(buffer) == 0 {
		return "", false
	}

	// The general purpose sniffer knows more containers than we do, but it
	// also happily reports text or archives. Only media counts here.
	if m := mimesniffer.Sniff(buffer); IsMedia(m) {
		return m, true
	}

	return "", false
}

// FromExtension maps a filename extension to a media type.
func FromExtension(name string) (string, bool) {
	m, ok := extensionTypes[strings.ToLower(filepath.Ext(name))]

	return m, ok
}

// Detect combines FromSignature and FromExtension. It never fails.
func Detect(buffer []byte, name string) string {
	if m, ok := FromSignature(buffer); ok {
		return m
	}

	if m, ok := FromExtension(name); ok {
		return m
	}

	return UnknownMediaType
}

// GetContentTypeFromReader sniffs the first bytes of reader. Read errors are
// not fatal: whatever was read is used and the extension of name fills in.
func GetContentTypeFromReader(reader io.Reader, name string) string {
	// Only the first 512 bytes are used to sniff the content type.
	buffer := make([]byte, fingerprintSize)

	n, err := io.ReadFull(reader, buffer)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		n = 0
	}

	return Detect(buffer[:n], name)
}

// GetContentTypeFromReaderAt sniffs an already open file without moving its
// read offset.
func GetContentTypeFromReaderAt(reader io.ReaderAt, name string) string {
	return GetContentTypeFromReader(io.NewSectionReader(reader, 0, fingerprintSize), name)
}

// GetContentType returns the content type of the given resource at the given path.
func GetContentType(sourcePath string) string {
	f, err := os.Open(sourcePath)
	if err != nil {
		if m, ok := FromExtension(sourcePath); ok {
			return m
		}

		return UnknownMediaType
	}

	defer func() {
		_ = f.Close()
	}()

	return GetContentTypeFromReader(f, sourcePath)
}

// IsVideo reports whether m is a video media type.
func IsVideo(m string) bool {
	return strings.HasPrefix(m, "video/")
}

// IsImage reports whether m is an image media type.
func IsImage(m string) bool {
	return strings.HasPrefix(m, "image/")
}

// IsMedia reports whether m is a video or image media type.
func IsMedia(m string) bool {
	return IsVideo(m) || IsImage(m)
}
