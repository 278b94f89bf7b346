package server

import (
	"github.com/google/uuid"
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/congestion"
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/entity"
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/entity/lane"
)

// LaneView 单条车道的对外表示
type LaneView struct {
	Light   string `json:"light"`
	Density int    `json:"density"`
	Count   int    `json:"count"`
}

// StatusView /api/status 的响应体
// 说明：lanes与ai_counts以车道名为键；timestamp为unix秒（浮点）
type StatusView struct {
	ActiveLane      lane.ID              `json:"active_lane"`
	RemainingTime   int32                `json:"remaining_time"`
	Lanes           map[lane.ID]LaneView `json:"lanes"`
	EmergencyActive bool                 `json:"emergency_active"`
	AICounts        map[lane.ID]int      `json:"ai_counts"`
	Congestion      congestion.Estimate  `json:"congestion"`
	Timestamp       float64              `json:"timestamp"`
}

// NewStatusView 将快照转换为对外表示
func NewStatusView(s entity.Snapshot) StatusView {
	lanes := make(map[lane.ID]LaneView, len(s.Lanes))
	for _, l := range s.Lanes {
		lanes[l.ID] = LaneView{
			Light:   lane.LightName(l.Light),
			Density: l.Density,
			Count:   l.VehicleCount,
		}
	}
	return StatusView{
		ActiveLane:      s.ActiveLane,
		RemainingTime:   s.RemainingTime,
		Lanes:           lanes,
		EmergencyActive: s.EmergencyActive,
		AICounts:        s.LastCounts,
		Congestion:      s.Congestion,
		Timestamp:       float64(s.Timestamp.UnixNano()) / 1e9,
	}
}

// AckView /api/emergency 的响应体
type AckView struct {
	Status string    `json:"status"`
	Lane   lane.ID   `json:"lane"`
	ID     uuid.UUID `json:"id"`
}

type emergencyRequest struct {
	Lane *string `json:"lane"`
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Response  string  `json:"response"`
	Timestamp float64 `json:"timestamp"`
}

type errorResponse struct {
	Error string `json:"error"`
}
