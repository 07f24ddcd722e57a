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

// Package delivery serves asset bytes over HTTP with byte-range support.
package delivery

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/spaolacci/murmur3"

	"github.com/TurbineOne/detection-archive/pkg/metrics"
	"github.com/TurbineOne/detection-archive/pkg/mimer"
)

const (
	lID     = "id"
	lRange  = "range"
	lSent   = "sent"
	lLength = "length"
)

// CacheControl is sent with every successful response. Assets are never
// rewritten under the same name.
const CacheControl = "public, max-age=31536000, immutable"

// Config controls streaming.
type Config struct { //nolint:govet // Don't care about alignment.
	ChunkSize         int           `yaml:"chunk_size" json:"chunk_size" env:"CHUNK_SIZE" validate:"min=512" doc:"Bytes read and written per step"`
	ChunkWriteTimeout time.Duration `yaml:"chunk_write_timeout" json:"chunk_write_timeout" env:"CHUNK_WRITE_TIMEOUT" validate:"gte=0" doc:"Deadline for writing one chunk to the client; 0 disables"`
}

// ConfigDefault returns the default values for a Config.
func ConfigDefault() Config {
	return Config{
		ChunkSize:         256 << 10, //nolint:mnd // 256 KiB.
		ChunkWriteTimeout: 30 * time.Second,
	}
}

// Asset is an opened, servable file. Close it when done.
type Asset struct {
	ID          string
	Path        string
	File        *os.File
	Info        fs.FileInfo
	ContentType string
}

// Close releases the file handle.
func (a *Asset) Close() error {
	return a.File.Close() //nolint:wrapcheck // Nothing to add.
}

// ETag is a weak fingerprint of the file's identity and version.
func (a *Asset) ETag() string {
	h := murmur3.New64()
	_, _ = h.Write([]byte(a.ID))
	_, _ = h.Write([]byte(strconv.FormatInt(a.Info.Size(), 10)))
	_, _ = h.Write([]byte(strconv.FormatInt(a.Info.ModTime().UnixNano(), 10)))

	return `"` + strconv.FormatUint(h.Sum64(), 16) + `"`
}

// Server resolves asset ids under one storage root and streams them.
type Server struct {
	root         string
	accept       func(name string) bool
	chunkSize    int
	writeTimeout time.Duration
	bufs         sync.Pool
	log          *zerolog.Logger
}

// Option customizes a Server.
type Option func(*Server)

// WithFilter limits which filenames may be served. By default every
// regular, non-hidden file in the root is servable.
func WithFilter(accept func(name string) bool) Option {
	return func(s *Server) {
		s.accept = accept
	}
}

// New returns a Server for files directly inside root.
func New(c *Config, root string, logger *zerolog.Logger, opts ...Option) (*Server, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err //nolint:wrapcheck // Only fails without a working directory.
	}

	l := logger.With().Str("pkg", "delivery").Logger()

	s := &Server{
		root:         abs,
		accept:       func(string) bool { return true },
		chunkSize:    c.ChunkSize,
		writeTimeout: c.ChunkWriteTimeout,
		log:          &l,
	}

	s.bufs.New = func() interface{} {
		b := make([]byte, s.chunkSize)

		return &b
	}

	for _, o := range opts {
		o(s)
	}

	return s, nil
}

// Resolve maps an id to a path inside the root. Anything that is not a plain
// filename, or that resolves outside the root through symlinks, is reported
// as not found.
func (s *Server) Resolve(id string) (string, error) {
	notFound := &AssetNotFoundError{ID: id}

	if id == "" || strings.HasPrefix(id, ".") || strings.ContainsAny(id, "/\\\x00") {
		return "", notFound
	}

	if !s.accept(id) {
		return "", notFound
	}

	root, err := filepath.EvalSymlinks(s.root)
	if err != nil {
		return "", notFound
	}

	resolved, err := filepath.EvalSymlinks(filepath.Join(root, id))
	if err != nil {
		return "", notFound
	}

	rel, err := filepath.Rel(root, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", notFound
	}

	return resolved, nil
}

// Open resolves and opens id. Size and type come from the open handle, never
// from an earlier listing.
func (s *Server) Open(id string) (*Asset, error) {
	path, err := s.Resolve(id)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &AssetNotFoundError{ID: id}
	}

	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		_ = f.Close()

		return nil, &AssetNotFoundError{ID: id}
	}

	return &Asset{
		ID:          id,
		Path:        path,
		File:        f,
		Info:        info,
		ContentType: mimer.GetContentTypeFromReaderAt(f, id),
	}, nil
}

// ServeAsset answers a GET or HEAD for id.
//
// Errors are returned only while nothing has been written, so the caller
// can still send a proper error response. A read failure after the headers
// went out aborts the connection with http.ErrAbortHandler, so the client
// sees a broken transfer rather than a short body. A client that goes away
// is not an error.
func (s *Server) ServeAsset(w http.ResponseWriter, r *http.Request, id string) error {
	a, err := s.Open(id)
	if err != nil {
		metrics.ObserveResponse(http.StatusNotFound)

		return err
	}

	defer a.Close() //nolint:errcheck // Read only.

	size := a.Info.Size()

	rng, partial, err := ParseRange(r.Header.Get("Range"), size)
	if err != nil {
		metrics.ObserveResponse(http.StatusRequestedRangeNotSatisfiable)

		return err
	}

	s.log.Debug().Str(lID, id).Str(lRange, r.Header.Get("Range")).Bool("partial", partial).Msg("serving asset")

	etag := a.ETag()

	h := w.Header()
	h.Set("Accept-Ranges", "bytes")
	h.Set("Content-Type", a.ContentType)
	h.Set("Cache-Control", CacheControl)
	h.Set("Last-Modified", a.Info.ModTime().UTC().Format(http.TimeFormat))
	h.Set("ETag", etag)

	if !partial && r.Header.Get("If-None-Match") == etag {
		metrics.ObserveResponse(http.StatusNotModified)
		w.WriteHeader(http.StatusNotModified)

		return nil
	}

	status := http.StatusOK
	length := size

	if partial {
		status = http.StatusPartialContent
		length = rng.Length()
		h.Set("Content-Range", rng.ContentRange(size))
	}

	h.Set("Content-Length", strconv.FormatInt(length, 10))

	if r.Method == http.MethodHead || length == 0 {
		metrics.ObserveResponse(status)
		w.WriteHeader(status)

		return nil
	}

	return s.stream(r.Context(), w, a.File, id, rng.Start, length, status)
}

// stream copies length bytes starting at offset. The first chunk is read
// before the status line is committed.
func (s *Server) stream(ctx context.Context, w http.ResponseWriter, ra io.ReaderAt, id string,
	offset, length int64, status int,
) error {
	bp, _ := s.bufs.Get().(*[]byte)
	defer s.bufs.Put(bp)

	buf := *bp
	src := io.NewSectionReader(ra, offset, length)

	n, err := io.ReadFull(src, buf[:min(int64(len(buf)), length)])
	if err != nil {
		metrics.ObserveResponse(http.StatusInternalServerError)

		return &StreamInterruptedError{ID: id, Err: err}
	}

	rc := http.NewResponseController(w)
	if s.writeTimeout > 0 {
		// The connection may be reused by a request that expects no deadline.
		defer func() { _ = rc.SetWriteDeadline(time.Time{}) }()
	}

	metrics.ObserveResponse(status)
	metrics.ActiveStreams.Inc()
	defer metrics.ActiveStreams.Dec()

	w.WriteHeader(status)

	var sent int64

	for {
		if ctx.Err() != nil {
			s.clientGone(id, sent, length, ctx.Err())

			return nil
		}

		if s.writeTimeout > 0 {
			_ = rc.SetWriteDeadline(time.Now().Add(s.writeTimeout))
		}

		if _, err := w.Write(buf[:n]); err != nil {
			s.clientGone(id, sent, length, err)

			return nil
		}

		sent += int64(n)
		metrics.AssetBytesSent.Add(float64(n))

		if sent == length {
			return nil
		}

		if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
			s.clientGone(id, sent, length, err)

			return nil
		}

		n, err = io.ReadFull(src, buf[:min(int64(len(buf)), length-sent)])
		if err != nil {
			metrics.StreamsAborted.WithLabelValues("read_error").Inc()
			s.log.Error().Err(err).Str(lID, id).Int64(lSent, sent).Int64(lLength, length).
				Msg("read failed mid-stream, aborting response")

			panic(http.ErrAbortHandler)
		}
	}
}

func (s *Server) clientGone(id string, sent, length int64, err error) {
	metrics.StreamsAborted.WithLabelValues("client_gone").Inc()
	s.log.Debug().Err(err).Str(lID, id).Int64(lSent, sent).Int64(lLength, length).
		Msg("client went away")
}
