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

package events

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TurbineOne/detection-archive/pkg/logger"
)

func dial(t *testing.T, url, origin string) (*websocket.Conn, *http.Response, error) {
	t.Helper()

	h := http.Header{}
	if origin != "" {
		h.Set("Origin", origin)
	}

	return websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(url, "http"), h)
}

func TestHubBroadcasts(t *testing.T) {
	hub := NewHub([]string{"http://dashboard"}, logger.Nop())
	ts := httptest.NewServer(hub)
	defer ts.Close()

	conn, _, err := dial(t, ts.URL, "http://dashboard")
	require.NoError(t, err)

	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Publish(TypeCatalogChanged, map[string]string{"reason": "test"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	_, b, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev struct {
		Type string            `json:"type"`
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(b, &ev))
	assert.Equal(t, TypeCatalogChanged, ev.Type)
	assert.Equal(t, "test", ev.Data["reason"])
}

func TestHubRejectsUnknownOrigin(t *testing.T) {
	hub := NewHub([]string{"http://dashboard"}, logger.Nop())
	ts := httptest.NewServer(hub)
	defer ts.Close()

	_, resp, err := dial(t, ts.URL, "http://evil")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	_, _, err = dial(t, ts.URL, "")
	assert.Error(t, err)
}

func TestHubWildcardAndDisconnect(t *testing.T) {
	hub := NewHub([]string{"*"}, logger.Nop())
	ts := httptest.NewServer(hub)
	defer ts.Close()

	conn, _, err := dial(t, ts.URL, "")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHubServeClosesClients(t *testing.T) {
	hub := NewHub([]string{"*"}, logger.Nop())
	ts := httptest.NewServer(hub)
	defer ts.Close()

	conn, _, err := dial(t, ts.URL, "x")
	require.NoError(t, err)

	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- hub.Serve(ctx) }()

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Zero(t, hub.Clients())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	_, _, err = conn.ReadMessage()
	assert.Error(t, err, "the hub closed the connection")
}

func TestPublishWithoutClients(t *testing.T) {
	hub := NewHub(nil, logger.Nop())

	assert.NotPanics(t, func() { hub.Publish(TypeDetectorStarted, nil) })
	Discard{}.Publish("x", nil)
}
