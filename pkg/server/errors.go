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
	"net/http"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/hlog"

	"github.com/TurbineOne/detection-archive/pkg/catalog"
	"github.com/TurbineOne/detection-archive/pkg/delivery"
	"github.com/TurbineOne/detection-archive/pkg/detector"
)

// Error kinds reported to clients.
const (
	KindDirectoryNotFound    = "DirectoryNotFound"
	KindAssetNotFound        = "AssetNotFound"
	KindInvalidRange         = "InvalidRange"
	KindStreamInterrupted    = "StreamInterrupted"
	KindDetectorNotRunning   = "DetectorNotRunning"
	KindDetectorLimit        = "DetectorLimit"
	KindThumbnailUnavailable = "ThumbnailUnavailable"
	KindBadRequest           = "BadRequest"
	KindNotFound             = "NotFound"
	KindRateLimited          = "RateLimited"
	KindInternal             = "Internal"
)

type badRequestError struct {
	reason string
}

func (e *badRequestError) Error() string {
	return e.reason
}

type routeNotFoundError struct{}

func (e *routeNotFoundError) Error() string {
	return "no such route"
}

type rateLimitedError struct{}

func (e *rateLimitedError) Error() string {
	return "too many requests"
}

type thumbnailError struct {
	err error
}

func (e *thumbnailError) Error() string {
	return "thumbnail could not be rendered: " + e.err.Error()
}

func (e *thumbnailError) Unwrap() error {
	return e.err
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail names the kind and carries a message without paths.
type ErrorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// classify maps err to a status, kind and client-safe message.
func classify(err error) (int, string, string) {
	var (
		dirNotFound   *catalog.DirectoryNotFoundError
		badFilter     *catalog.InvalidFilterError
		assetNotFound *delivery.AssetNotFoundError
		badRange      *delivery.InvalidRangeError
		interrupted   *delivery.StreamInterruptedError
		notRunning    *detector.NotRunningError
		invalidReq    *detector.InvalidRequestError
		limit         *detector.LimitError
		badRequest    *badRequestError
		noRoute       *routeNotFoundError
		limited       *rateLimitedError
		thumb         *thumbnailError
	)

	switch {
	case errors.As(err, &dirNotFound):
		return http.StatusNotFound, KindDirectoryNotFound, "storage directory not found"
	case errors.As(err, &assetNotFound):
		return http.StatusNotFound, KindAssetNotFound, "asset not found"
	case errors.As(err, &badRange):
		return http.StatusRequestedRangeNotSatisfiable, KindInvalidRange, badRange.Error()
	case errors.As(err, &interrupted):
		return http.StatusInternalServerError, KindStreamInterrupted, "stream interrupted"
	case errors.As(err, &notRunning):
		return http.StatusNotFound, KindDetectorNotRunning, notRunning.Error()
	case errors.As(err, &limit):
		return http.StatusConflict, KindDetectorLimit, limit.Error()
	case errors.As(err, &thumb):
		return http.StatusUnprocessableEntity, KindThumbnailUnavailable, "thumbnail could not be rendered"
	case errors.As(err, &invalidReq), errors.As(err, &badFilter), errors.As(err, &badRequest):
		return http.StatusBadRequest, KindBadRequest, err.Error()
	case errors.As(err, &noRoute):
		return http.StatusNotFound, KindNotFound, noRoute.Error()
	case errors.As(err, &limited):
		return http.StatusTooManyRequests, KindRateLimited, limited.Error()
	}

	return http.StatusInternalServerError, KindInternal, "internal error"
}

// writeError sends the JSON error for err. Headers describing a body that
// was never sent are dropped first.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind, msg := classify(err)

	h := w.Header()
	for _, k := range []string{"Content-Range", "Content-Length", "ETag", "Last-Modified", "Cache-Control", "Accept-Ranges"} {
		h.Del(k)
	}

	var badRange *delivery.InvalidRangeError
	if errors.As(err, &badRange) {
		h.Set("Content-Range", badRange.UnsatisfiedContentRange())
	}

	event := hlog.FromRequest(r).Debug()
	if status >= http.StatusInternalServerError {
		event = hlog.FromRequest(r).Error()
	}

	event.Err(err).Int("status", status).Str("kind", kind).Msg("request failed")

	writeJSON(w, status, ErrorBody{Error: ErrorDetail{Kind: kind, Message: msg}})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		b = []byte(`{"error":{"kind":"Internal","message":"internal error"}}`)
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(append(b, '\n'))
}
