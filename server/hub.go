package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"git.fiblab.net/general/common/v2/parallel"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/entity"
)

const writeWait = time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub 状态推送中心
// 功能：每个tick或紧急模式激活后向全部websocket客户端推送最新状态
// 说明：OnTick/OnEmergency只做非阻塞通知，快照计算与推送在独立协程中完成
type Hub struct {
	controller Controller

	clients      map[*websocket.Conn]bool
	clientsMutex sync.Mutex

	notify    chan struct{}
	done      chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
}

// NewHub 创建状态推送中心并启动推送协程
func NewHub(controller Controller) *Hub {
	h := &Hub{
		controller: controller,
		clients:    make(map[*websocket.Conn]bool),
		notify:     make(chan struct{}, 1),
		done:       make(chan struct{}),
		closed:     make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *Hub) OnTick(tick int64, state entity.State) {
	h.trigger()
}

func (h *Hub) OnEmergency(ack entity.Ack, state entity.State) {
	h.trigger()
}

func (h *Hub) trigger() {
	select {
	case h.notify <- struct{}{}:
	default:
	}
}

// Clients 当前连接的客户端数
func (h *Hub) Clients() int {
	h.clientsMutex.Lock()
	defer h.clientsMutex.Unlock()
	return len(h.clients)
}

func (h *Hub) handleWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("err upgrading connection: %v", err)
		return
	}

	h.clientsMutex.Lock()
	h.clients[conn] = true
	n := len(h.clients)
	h.clientsMutex.Unlock()
	log.Debugf("new websocket client connected, total clients: %d", n)

	// 连接建立后立即推送一次当前状态
	h.trigger()
	go h.readLoop(conn)
}

// readLoop 丢弃客户端消息，连接断开时移除客户端
func (h *Hub) readLoop(conn *websocket.Conn) {
	defer h.remove(conn)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debugf("websocket error: %v", err)
			}
			return
		}
	}
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.clientsMutex.Lock()
	defer h.clientsMutex.Unlock()
	if h.clients[conn] {
		delete(h.clients, conn)
		conn.Close()
		log.Debugf("websocket client disconnected, remaining clients: %d", len(h.clients))
	}
}

func (h *Hub) run() {
	defer close(h.closed)
	for {
		select {
		case <-h.done:
			return
		case <-h.notify:
			h.broadcast()
		}
	}
}

func (h *Hub) broadcast() {
	h.clientsMutex.Lock()
	conns := lo.Keys(h.clients)
	h.clientsMutex.Unlock()
	if len(conns) == 0 {
		return
	}

	data, err := json.Marshal(NewStatusView(h.controller.Snapshot(context.Background())))
	if err != nil {
		log.Errorf("err marshaling status: %v", err)
		return
	}
	var failedMtx sync.Mutex
	failed := make([]*websocket.Conn, 0)
	parallel.GoFor(conns, func(conn *websocket.Conn) {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Debugf("websocket write error: %v", err)
			failedMtx.Lock()
			failed = append(failed, conn)
			failedMtx.Unlock()
		}
	})
	for _, conn := range failed {
		h.remove(conn)
	}
}

// Close 停止推送并断开全部客户端
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
	<-h.closed
	h.clientsMutex.Lock()
	defer h.clientsMutex.Unlock()
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
}
