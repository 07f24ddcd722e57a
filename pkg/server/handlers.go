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

package server

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/hlog"

	"github.com/TurbineOne/detection-archive/pkg/catalog"
	"github.com/TurbineOne/detection-archive/pkg/delivery"
	"github.com/TurbineOne/detection-archive/pkg/mimer"
)

const (
	maxBodyBytes          = 64 << 10
	thumbnailCacheControl = "public, max-age=3600"
)

var validate = validator.New(validator.WithRequiredStructEnabled()) //nolint:gochecknoglobals // Caches struct info.

type startRequest struct {
	CameraID string `json:"camId" validate:"required,max=128"`
	Source   string `json:"source" validate:"required"`
}

type stopRequest struct {
	CameraID string `json:"camId" validate:"required,max=128"`
}

type stopResponse struct {
	CameraID string `json:"camId"`
	Stopped  bool   `json:"stopped"`
}

// pathID returns the {id} segment unescaped. chi matches on the raw path
// when the request carried escapes, so the value may still be encoded.
func pathID(r *http.Request) string {
	id := chi.URLParam(r, "id")
	if r.URL.RawPath == "" {
		return id
	}

	if unescaped, err := url.PathUnescape(id); err == nil {
		return unescaped
	}

	return id
}

// decodeBody reads a small JSON body into v and validates it.
func decodeBody(r *http.Request, v interface{}) error {
	b, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return &badRequestError{"reading body failed"}
	}

	if err := json.Unmarshal(b, v); err != nil {
		return &badRequestError{"body is not valid JSON"}
	}

	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &badRequestError{"invalid field " + verrs[0].Field()}
		}

		return &badRequestError{err.Error()}
	}

	return nil
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listCatalog(w http.ResponseWriter, r *http.Request) {
	filter, err := catalog.ParseFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, err)

		return
	}

	entries, err := s.deps.Catalog.List(r.Context())
	if err != nil {
		writeError(w, r, err)

		return
	}

	entries = filter.Apply(entries)

	urls := URLs()
	if s.deps.Thumbnails == nil {
		urls.Thumbnails = ""
	}

	views := make([]catalog.View, 0, len(entries))
	for i := range entries {
		views = append(views, catalog.NewView(&entries[i], urls))
	}

	w.Header().Set("X-Total-Count", strconv.Itoa(len(views)))
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) refreshCatalog(w http.ResponseWriter, _ *http.Request) {
	s.deps.Catalog.Invalidate()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) serveAsset(w http.ResponseWriter, r *http.Request) {
	// ServeAsset only returns errors before anything was written. Failures
	// after that abort the connection from inside.
	if err := s.deps.Assets.ServeAsset(w, r, pathID(r)); err != nil {
		writeError(w, r, err)
	}
}

func (s *Server) serveThumbnail(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)

	path, err := s.deps.Assets.Resolve(id)
	if err != nil {
		writeError(w, r, err)

		return
	}

	// Snapshots are their own thumbnails.
	if ct, ok := mimer.FromExtension(path); ok && mimer.IsImage(ct) {
		s.serveAsset(w, r)

		return
	}

	info, err := os.Stat(path)
	if err != nil {
		writeError(w, r, &delivery.AssetNotFoundError{ID: id})

		return
	}

	b, err := s.deps.Thumbnails.Thumbnail(path, info.ModTime(), info.Size())
	if err != nil {
		writeError(w, r, &thumbnailError{err})

		return
	}

	h := w.Header()
	h.Set("Content-Type", mimer.MediaTypeJPEG)
	h.Set("Content-Length", strconv.Itoa(len(b)))
	h.Set("Cache-Control", thumbnailCacheControl)
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(b); err != nil {
		hlog.FromRequest(r).Debug().Err(err).Str(lID, id).Msg("thumbnail write failed")
	}
}

func (s *Server) listDetectors(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Detectors.List())
}

func (s *Server) startDetector(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)

		return
	}

	info, err := s.deps.Detectors.Start(req.CameraID, req.Source)
	if err != nil {
		writeError(w, r, err)

		return
	}

	writeJSON(w, http.StatusOK, info)
}

func (s *Server) stopDetector(w http.ResponseWriter, r *http.Request) {
	var req stopRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)

		return
	}

	if err := s.deps.Detectors.Stop(req.CameraID); err != nil {
		writeError(w, r, err)

		return
	}

	writeJSON(w, http.StatusOK, stopResponse{CameraID: req.CameraID, Stopped: true})
}
