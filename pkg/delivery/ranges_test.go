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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRange(t *testing.T) {
	const size = 1000

	tests := []struct {
		header  string
		want    Range
		partial bool
		invalid bool
	}{
		{"", Range{0, 999}, false, false},
		{"bytes=0-", Range{0, 999}, true, false},
		{"bytes=0-999", Range{0, 999}, true, false},
		{"bytes=10-19", Range{10, 19}, true, false},
		{"bytes=10-*", Range{10, 999}, true, false},
		{"bytes=990-5000", Range{990, 999}, true, false},
		{"bytes=999-999", Range{999, 999}, true, false},
		{"BYTES=5-6", Range{5, 6}, true, false},
		{"bytes= 5 - 6 ", Range{5, 6}, true, false},
		{"bytes=-100", Range{900, 999}, true, false},
		{"bytes=-5000", Range{0, 999}, true, false},
		{"bytes=1-2,5-9", Range{1, 2}, true, false},
		{"bytes=1000-", Range{}, false, true},
		{"bytes=5000-6000", Range{}, false, true},
		{"bytes=-0", Range{}, false, true},
		{"items=0-5", Range{0, 999}, false, false},
		{"bytes=abc-", Range{0, 999}, false, false},
		{"bytes=5", Range{0, 999}, false, false},
		{"bytes=9-3", Range{0, 999}, false, false},
		{"bytes=-", Range{0, 999}, false, false},
		{"bytes=-x", Range{0, 999}, false, false},
		{"bytes=-1-2", Range{0, 999}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			got, partial, err := ParseRange(tt.header, size)

			if tt.invalid {
				var irErr *InvalidRangeError
				require.True(t, errors.As(err, &irErr), "got %v", err)
				assert.Equal(t, "bytes */1000", irErr.UnsatisfiedContentRange())

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.partial, partial)
		})
	}
}

func TestParseRangeEmptyFile(t *testing.T) {
	r, partial, err := ParseRange("", 0)
	require.NoError(t, err)
	assert.False(t, partial)
	assert.Equal(t, int64(0), r.Length())

	_, _, err = ParseRange("bytes=0-", 0)
	assert.Error(t, err)

	_, _, err = ParseRange("bytes=-10", 0)
	assert.Error(t, err)
}

func TestContentRange(t *testing.T) {
	assert.Equal(t, "bytes 1000000-1999999/10485760", Range{1000000, 1999999}.ContentRange(10485760))
	assert.Equal(t, int64(1000000), Range{1000000, 1999999}.Length())
}
