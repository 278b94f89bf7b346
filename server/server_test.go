package server_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/congestion"
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/entity"
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/entity/lane"
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/metrics"
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/server"
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/task"
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/utils/config"
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/utils/input"
	testclock "k8s.io/utils/clock/testing"
)

type advisorFunc func(ctx context.Context, s entity.Snapshot, question string) string

func (f advisorFunc) Chat(ctx context.Context, s entity.Snapshot, question string) string {
	return f(ctx, s, question)
}

var now = time.Date(2025, 6, 2, 8, 30, 0, 0, time.UTC)

var registry = prometheus.NewRegistry()

func init() {
	metrics.Register(registry)
}

func newServer(t *testing.T, feed input.Feed) (*server.Server, *task.Context, *httptest.Server) {
	t.Helper()
	ctx := task.NewContext(config.Config{}, nil, feed, testclock.NewFakeClock(now), false)
	t.Cleanup(ctx.Close)

	rc := config.NewRuntimeConfig(config.Config{})
	adv := advisorFunc(func(_ context.Context, s entity.Snapshot, question string) string {
		return "active " + s.ActiveLane.String() + ": " + question
	})
	s := server.New(rc.S, ctx, adv, registry)
	ctx.AddObserver(s.Hub())
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		srv.Close()
		_ = s.Shutdown(context.Background())
	})
	return s, ctx, srv
}

func getStatus(t *testing.T, srv *httptest.Server) server.StatusView {
	t.Helper()
	resp, err := srv.Client().Get(srv.URL + "/api/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	var v server.StatusView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func post(t *testing.T, srv *httptest.Server, path, body string) (*http.Response, []byte) {
	t.Helper()
	resp, err := srv.Client().Post(srv.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestStatus(t *testing.T) {
	_, _, srv := newServer(t, input.NewSequenceFeed())
	want := server.StatusView{
		ActiveLane:    lane.NORTH,
		RemainingTime: 22,
		Lanes: map[lane.ID]server.LaneView{
			lane.NORTH: {Light: "GREEN", Density: 4, Count: 7},
			lane.SOUTH: {Light: "RED", Density: 1, Count: 3},
			lane.EAST:  {Light: "RED", Density: 0, Count: 1},
			lane.WEST:  {Light: "RED", Density: 2, Count: 5},
		},
		EmergencyActive: false,
		AICounts:        map[lane.ID]int{lane.NORTH: 7, lane.SOUTH: 3, lane.EAST: 1, lane.WEST: 5},
		Congestion:      congestion.Fallback,
		Timestamp:       float64(now.Unix()),
	}
	if diff := cmp.Diff(want, getStatus(t, srv)); diff != "" {
		t.Errorf("status mismatch (-want +got):\n%s", diff)
	}
}

func TestStatusJSONKeys(t *testing.T) {
	_, _, srv := newServer(t, input.NewSequenceFeed())
	resp, err := srv.Client().Get(srv.URL + "/api/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	var raw map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))

	for _, key := range []string{"active_lane", "remaining_time", "lanes", "emergency_active", "ai_counts", "congestion", "timestamp"} {
		assert.Contains(t, raw, key)
	}
	assert.Equal(t, "NORTH", raw["active_lane"])
	assert.Equal(t, map[string]any{"level": "MEDIUM", "confidence": 0.75}, raw["congestion"])
	assert.Equal(t, map[string]any{"light": "GREEN", "density": 4.0, "count": 7.0}, raw["lanes"].(map[string]any)["NORTH"])
}

func TestStatusMethodNotAllowed(t *testing.T) {
	_, _, srv := newServer(t, input.NewSequenceFeed())
	resp, _ := post(t, srv, "/api/status", "{}")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, err := srv.Client().Get(srv.URL + "/api/emergency")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestEmergency(t *testing.T) {
	_, _, srv := newServer(t, input.NewSequenceFeed())

	resp, data := post(t, srv, "/api/emergency", `{"lane": "east"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	var ack server.AckView
	require.NoError(t, json.Unmarshal(data, &ack))
	assert.Equal(t, "EMERGENCY ACTIVATED", ack.Status)
	assert.Equal(t, lane.EAST, ack.Lane)

	v := getStatus(t, srv)
	assert.Equal(t, lane.EAST, v.ActiveLane)
	assert.True(t, v.EmergencyActive)
	assert.Equal(t, int32(20), v.RemainingTime)
	assert.Equal(t, "GREEN", v.Lanes[lane.EAST].Light)
	assert.Equal(t, "RED", v.Lanes[lane.NORTH].Light)
}

func TestEmergencyDefaultsToNorth(t *testing.T) {
	_, _, srv := newServer(t, input.NewSequenceFeed())
	for _, body := range []string{`{}`, ``} {
		resp, data := post(t, srv, "/api/emergency", body)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
		var ack server.AckView
		require.NoError(t, json.Unmarshal(data, &ack))
		assert.Equal(t, lane.NORTH, ack.Lane)
	}
}

func TestEmergencyRejected(t *testing.T) {
	_, ctx, srv := newServer(t, input.NewSequenceFeed())
	ctx.Step(context.Background())
	before := ctx.Junction().State()

	for _, body := range []string{`{"lane": "NORTHWEST"}`, `{"lane": 3}`, `{`} {
		resp, data := post(t, srv, "/api/emergency", body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
		assert.Contains(t, string(data), `"error"`)
	}
	if diff := cmp.Diff(before, ctx.Junction().State()); diff != "" {
		t.Errorf("state changed by rejected request (-before +after):\n%s", diff)
	}
}

func TestChat(t *testing.T) {
	_, _, srv := newServer(t, input.NewSequenceFeed())
	resp, data := post(t, srv, "/api/ai-chat", `{"message": "status?"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "active NORTH: status?", out["response"])
	assert.Contains(t, out, "timestamp")
}

func TestCORS(t *testing.T) {
	_, _, srv := newServer(t, input.NewSequenceFeed())
	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/emergency", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://dashboard.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestMetrics(t *testing.T) {
	_, ctx, srv := newServer(t, input.NewSequenceFeed())
	ctx.Step(context.Background())

	resp, err := srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(data), "signal_ticks_total")
	assert.Contains(t, string(data), "signal_remaining_seconds")
}

func TestWebsocket(t *testing.T) {
	s, ctx, srv := newServer(t, input.NewSequenceFeed())
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return s.Hub().Clients() == 1 }, time.Second, 5*time.Millisecond)

	_, err = ctx.ActivateEmergency(lane.WEST)
	require.NoError(t, err)

	// 连接建立时与激活紧急模式后各推送一次，读取到最新状态为止
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var v server.StatusView
		require.NoError(t, json.Unmarshal(data, &v))
		if v.EmergencyActive {
			assert.Equal(t, lane.WEST, v.ActiveLane)
			break
		}
	}
}
