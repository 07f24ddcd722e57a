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
)

// AssetNotFoundError covers every reason an id does not name a servable
// file. The reason is deliberately not exposed.
type AssetNotFoundError struct {
	ID string
}

func (e *AssetNotFoundError) Error() string {
	return "asset not found [" + e.ID + "]"
}

// InvalidRangeError is a range that starts at or past the end of the file.
type InvalidRangeError struct {
	Size   int64
	Header string
}

func (e *InvalidRangeError) Error() string {
	return "range [" + e.Header + "] not satisfiable for " + strconv.FormatInt(e.Size, 10) + " bytes"
}

// UnsatisfiedContentRange is the Content-Range value sent with a 416.
func (e *InvalidRangeError) UnsatisfiedContentRange() string {
	return "bytes */" + strconv.FormatInt(e.Size, 10)
}

// StreamInterruptedError is a read failure before any body byte was sent.
// Failures after that point abort the connection instead.
type StreamInterruptedError struct {
	ID  string
	Err error
}

func (e *StreamInterruptedError) Error() string {
	return "stream of [" + e.ID + "] interrupted: " + e.Err.Error()
}

func (e *StreamInterruptedError) Unwrap() error {
	return e.Err
}
