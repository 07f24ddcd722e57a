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

package delivery

import (
	"strconv"
	"strings"
)

// Range is an inclusive byte range within a file.
type Range struct {
	Start int64
	End   int64
}

// Length is the number of bytes covered.
func (r Range) Length() int64 {
	return r.End - r.Start + 1
}

// ContentRange formats the Content-Range value for a file of size bytes.
func (r Range) ContentRange(size int64) string {
	return "bytes " + strconv.FormatInt(r.Start, 10) + "-" + strconv.FormatInt(r.End, 10) +
		"/" + strconv.FormatInt(size, 10)
}

// ParseRange interprets a Range header against a file of size bytes.
//
// It returns partial=false with the whole file when the header is absent or
// syntactically unusable; such headers are ignored rather than rejected.
// Only the first range of a multi-range request is honored. A range that
// starts at or past the end of the file is an *InvalidRangeError.
func ParseRange(header string, size int64) (r Range, partial bool, err error) {
	full := Range{Start: 0, End: size - 1}

	header = strings.TrimSpace(header)
	if header == "" {
		return full, false, nil
	}

	const unit = "bytes="
	if len(header) < len(unit) || !strings.EqualFold(header[:len(unit)], unit) {
		return full, false, nil
	}

	rangeSet := header[len(unit):]
	if i := strings.IndexByte(rangeSet, ','); i >= 0 {
		rangeSet = rangeSet[:i]
	}

	dash := strings.IndexByte(rangeSet, '-')
	if dash < 0 {
		return full, false, nil
	}

	startStr := strings.TrimSpace(rangeSet[:dash])
	endStr := strings.TrimSpace(rangeSet[dash+1:])

	if startStr == "" {
		return suffixRange(endStr, size, header)
	}

	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 {
		return full, false, nil
	}

	end := size - 1

	if endStr != "" && endStr != "*" {
		e, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || e < start {
			return full, false, nil
		}

		end = min(e, size-1)
	}

	if start >= size {
		return Range{}, false, &InvalidRangeError{Size: size, Header: header}
	}

	return Range{Start: start, End: end}, true, nil
}

// suffixRange handles "bytes=-N", the last N bytes.
func suffixRange(endStr string, size int64, header string) (Range, bool, error) {
	full := Range{Start: 0, End: size - 1}

	n, err := strconv.ParseInt(endStr, 10, 64)
	if err != nil || n < 0 {
		return full, false, nil
	}

	if n == 0 || size == 0 {
		return Range{}, false, &InvalidRangeError{Size: size, Header: header}
	}

	n = min(n, size)

	return Range{Start: size - n, End: size - 1}, true, nil
}
