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

package thumbnail

import (
	"strings"
	"sync"

	"github.com/asticode/go-astiav"
	"github.com/rs/zerolog"
)

// ffmpegToZerologLevel maps ffmpeg's internal log levels to zerolog's.
var ffmpegToZerologLevel = map[astiav.LogLevel]zerolog.Level{
	astiav.LogLevelQuiet:   zerolog.Disabled,
	astiav.LogLevelPanic:   zerolog.PanicLevel,
	astiav.LogLevelFatal:   zerolog.FatalLevel,
	astiav.LogLevelError:   zerolog.ErrorLevel,
	astiav.LogLevelWarning: zerolog.WarnLevel,
	astiav.LogLevelInfo:    zerolog.InfoLevel,
	astiav.LogLevelVerbose: zerolog.DebugLevel, // FFmpeg's verbose is more like zerolog's debug...
	astiav.LogLevelDebug:   zerolog.TraceLevel, // because ffmpeg's debug is more like zerolog's trace.
}

// zerologToFfmpegLevel picks the ffmpeg level that lets through everything
// the configured zerolog level would print.
var zerologToFfmpegLevel = map[zerolog.Level]astiav.LogLevel{
	zerolog.TraceLevel: astiav.LogLevelDebug,
	zerolog.DebugLevel: astiav.LogLevelVerbose,
	zerolog.InfoLevel:  astiav.LogLevelInfo,
	zerolog.WarnLevel:  astiav.LogLevelWarning,
	zerolog.ErrorLevel: astiav.LogLevelError,
	zerolog.Disabled:   astiav.LogLevelQuiet,
}

// squelchedFfmpegLogPrefixes are messages ffmpeg repeats for every damaged
// packet of a file. Only every squelchedLogInterval-th one is logged.
var squelchedFfmpegLogPrefixes = []string{
	"Packet corrupt",
	"error while decoding MB",
	"deprecated pixel format used",
	"Invalid NAL unit size",
}

const (
	squelchedLogInterval = 256
	lSquelch             = "squelch count"
)

var (
	ffmpegLogLock            sync.Mutex
	ffmpegLog                = zerolog.Nop()
	squelchedFfmpegLogCounts = make([]int, len(squelchedFfmpegLogPrefixes))
)

func ffmpegLogCallback(l astiav.LogLevel, _, msg, _ string) {
	// FFmpeg sometimes logs a single "." to indicate progress.
	if msg == ".\n" {
		return
	}

	ffmpegLogLock.Lock()
	defer ffmpegLogLock.Unlock()

	squelchIndex := -1

	for i, prefix := range squelchedFfmpegLogPrefixes {
		if strings.HasPrefix(msg, prefix) {
			squelchedFfmpegLogCounts[i]++
			if squelchedFfmpegLogCounts[i]%squelchedLogInterval != 1 {
				return
			}

			squelchIndex = i

			break
		}
	}

	zl, ok := ffmpegToZerologLevel[l]
	if !ok {
		zl = zerolog.ErrorLevel
	}

	event := ffmpegLog.WithLevel(zl)
	if squelchIndex >= 0 {
		event = event.Int(lSquelch, squelchedFfmpegLogCounts[squelchIndex])
	}

	event.Msg(strings.TrimSuffix(msg, "\n"))
}

// RouteFFmpegLogs sends libav's own log output into logger at or above
// level, a zerolog level name. Call once at startup.
func RouteFFmpegLogs(level string, logger *zerolog.Logger) error {
	zLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		return err
	}

	ffmpegLevel, ok := zerologToFfmpegLevel[zLevel]
	if !ok {
		ffmpegLevel = astiav.LogLevelQuiet
	}

	ffmpegLogLock.Lock()
	ffmpegLog = logger.With().Str("pkg", "ffmpeg").Logger().Level(zLevel)
	ffmpegLogLock.Unlock()

	// FFmpeg logs get doubly filtered. First we set the ffmpeg-specific level:
	astiav.SetLogLevel(ffmpegLevel)
	// and then zerolog filters again.
	astiav.SetLogCallback(ffmpegLogCallback)

	return nil
}
