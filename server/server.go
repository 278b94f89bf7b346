// HTTP JSON接口：状态查询、紧急模式、智能问答、状态推送与指标
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/entity"
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/entity/lane"
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/utils/config"
)

var log = logrus.WithField("module", "server")

// 请求体大小上限
const maxBodyBytes = 64 << 10

// Controller 路口控制接口
type Controller interface {
	Snapshot(ctx context.Context) entity.Snapshot
	ActivateEmergency(id lane.ID) (entity.Ack, error)
}

// Advisor 智能问答接口
type Advisor interface {
	Chat(ctx context.Context, s entity.Snapshot, question string) string
}

// Server HTTP接口服务
type Server struct {
	controller Controller
	advisor    Advisor
	hub        *Hub
	now        func() time.Time

	handler http.Handler
	srv     *http.Server
}

// New 创建HTTP接口服务
// 参数：c-接口配置，controller-路口控制，advisor-智能问答，gatherer-指标来源（nil表示prometheus默认注册器）
func New(c config.Server, controller Controller, advisor Advisor, gatherer prometheus.Gatherer) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		controller: controller,
		advisor:    advisor,
		hub:        NewHub(controller),
		now:        time.Now,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("POST /api/emergency", s.handleEmergency)
	mux.HandleFunc("POST /api/ai-chat", s.handleChat)
	mux.HandleFunc("GET /ws", s.hub.handleWs)
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	s.handler = cors.New(cors.Options{
		AllowedOrigins: c.CorsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(mux)
	s.srv = &http.Server{
		Addr:              c.HTTP,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler 全部接口的http.Handler（含CORS）
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Hub 状态推送中心，需注册为控制循环观察者
func (s *Server) Hub() *Hub {
	return s.hub
}

// ListenAndServe 启动HTTP服务，阻塞直到服务关闭
func (s *Server) ListenAndServe() error {
	log.Infof("http api listening on %s", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown 关闭HTTP服务与状态推送
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, NewStatusView(s.controller.Snapshot(r.Context())))
}

// handleEmergency 激活紧急模式
// 说明：请求体为空或未指定lane时默认为NORTH；非法车道返回400且不修改状态
func (s *Server) handleEmergency(w http.ResponseWriter, r *http.Request) {
	var req emergencyRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	name := lane.NORTH.String()
	if req.Lane != nil {
		name = *req.Lane
	}
	id, err := lane.Parse(name)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	ack, err := s.controller.ActivateEmergency(id)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, AckView{Status: ack.Status, Lane: ack.Lane, ID: ack.ID})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	text := s.advisor.Chat(r.Context(), s.controller.Snapshot(r.Context()), req.Message)
	writeJSON(w, http.StatusOK, chatResponse{
		Response:  text,
		Timestamp: float64(s.now().UnixNano()) / 1e9,
	})
}

// decodeBody 解析JSON请求体，空请求体视为空对象
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warnf("err writing response: %v", err)
	}
}
