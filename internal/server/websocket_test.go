package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckOrigin(t *testing.T) {
	tests := []struct {
		name   string
		origin string
		host   string
		want   bool
	}{
		{"no origin", "", "meter.local:8090", true},
		{"localhost", "http://localhost:3000", "meter.local:8090", true},
		{"loopback v4", "http://127.0.0.1:8090", "meter.local:8090", true},
		{"loopback v6", "http://[::1]:8090", "meter.local:8090", true},
		{"same host", "http://meter.local:8090", "meter.local:8090", true},
		{"private network", "http://192.168.1.20", "meter.local:8090", true},
		{"public host", "https://evil.example.com", "meter.local:8090", false},
		{"public ip", "http://8.8.8.8", "meter.local:8090", false},
		{"invalid url", "http://%zz", "meter.local:8090", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/ws", nil)
			r.Host = tt.host
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, checkOrigin(r))
		})
	}
}

func TestUpgradeConnectionLimitsCommandSize(t *testing.T) {
	readErr := make(chan error, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := UpgradeConnection(w, r)
		if err != nil {
			readErr <- err
			return
		}
		defer conn.Close()

		var cmd WSCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			readErr <- err
			return
		}
		readErr <- conn.ReadJSON(&cmd)
	}))
	defer ts.Close()

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.WriteJSON(WSCommand{Type: "device/list"}))
	require.NoError(t, client.WriteJSON(WSCommand{Type: "device/rename", Data: json.RawMessage(`"` + strings.Repeat("x", maxCommandSize) + `"`)}))

	select {
	case err := <-readErr:
		assert.ErrorIs(t, err, websocket.ErrReadLimit)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not reject the oversized command")
	}
}
