package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"neonbrush/fileserver/internal/domain"
	"neonbrush/fileserver/internal/service"
)

// FileSource 文件列表数据源
type FileSource interface {
	ListAll() ([]domain.FileMetadata, error)
	Origins() ([]service.OriginSummary, error)
}

// ClientGauge 接收在线客户端数变化
type ClientGauge interface {
	UpdateWebSocketClients(count int)
}

// upgraderFactory 创建带有 Origin 验证的 WebSocket 升级器
func upgraderFactory(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			for _, origin := range allowedOrigins {
				if origin == "*" {
					return true
				}
			}

			requestOrigin := r.Header.Get("Origin")
			if requestOrigin == "" {
				// 没有 Origin 按同源请求处理
				return true
			}

			for _, origin := range allowedOrigins {
				if requestOrigin == origin {
					return true
				}
			}
			return false
		},
	}
}

// MessageType 定义WebSocket消息类型
type MessageType string

const (
	MessageTypeFilesUpdated MessageType = "files_updated"
	MessageTypeGetFiles     MessageType = "get_files"
	MessageTypePing         MessageType = "ping"
	MessageTypePong         MessageType = "pong"
	MessageTypeError        MessageType = "error"
)

// Message 定义WebSocket消息结构
type Message struct {
	Type      MessageType     `json:"type"`
	Origin    string          `json:"origin,omitempty"` // get_files 的可选来源别名过滤
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// FilesUpdateData 文件列表推送数据
type FilesUpdateData struct {
	Files            []domain.FileMetadata   `json:"files"`
	TotalFiles       int                     `json:"totalFiles"`
	AvailableOrigins []service.OriginSummary `json:"availableOrigins"`
}

// Client 代表一个WebSocket客户端连接
type Client struct {
	ID   string
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
	log  *zap.Logger
}

// Hub 管理所有WebSocket连接
//
// 与邮箱订阅模型不同，文件列表是全局共享状态：
// 每个已连接客户端都收到同一份 files_updated 推送。
type Hub struct {
	clients        map[string]*Client
	register       chan *Client
	unregister     chan *Client
	broadcast      chan []byte
	mu             sync.RWMutex
	log            *zap.Logger
	allowedOrigins []string
	files          FileSource
	gauge          ClientGauge
}

// NewHub 创建WebSocket Hub
func NewHub(allowedOrigins []string, files FileSource, logger *zap.Logger) *Hub {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Hub{
		clients:        make(map[string]*Client),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		broadcast:      make(chan []byte, 256),
		log:            logger,
		allowedOrigins: allowedOrigins,
		files:          files,
	}
}

// SetClientGauge 设置在线客户端数的接收方，nil 表示不上报
func (h *Hub) SetClientGauge(gauge ClientGauge) {
	h.gauge = gauge
}

// reportClientCount 上报当前在线客户端数，调用方需持有锁
func (h *Hub) reportClientCount() {
	if h.gauge != nil {
		h.gauge.UpdateWebSocketClients(len(h.clients))
	}
}

// Run 启动Hub
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Info("websocket hub stopped")
			h.closeAllClients()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.reportClientCount()
			h.mu.Unlock()
			h.log.Info("client registered", zap.String("id", client.ID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				close(client.send)
				h.reportClientCount()
				h.log.Info("client unregistered", zap.String("id", client.ID))
			}
			h.mu.Unlock()

		case data := <-h.broadcast:
			h.broadcastToAll(data)

		case <-ticker.C:
			h.pingAllClients()
		}
	}
}

// NotifyFilesUpdated 向所有客户端推送最新文件列表
//
// 上传和删除之后调用。数据源读取失败只记日志，不中断调用方。
func (h *Hub) NotifyFilesUpdated() {
	payload, err := h.buildFilesPayload("")
	if err != nil {
		h.log.Error("failed to build files update", zap.Error(err))
		return
	}

	msg := &Message{
		Type:      MessageTypeFilesUpdated,
		Data:      payload,
		Timestamp: time.Now(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("failed to marshal files update", zap.Error(err))
		return
	}

	select {
	case h.broadcast <- data:
	default:
		h.log.Warn("broadcast channel full, dropping files update")
	}
}

// buildFilesPayload 构建文件列表数据，origin 非空时按来源别名过滤
func (h *Hub) buildFilesPayload(origin string) (json.RawMessage, error) {
	files, err := h.files.ListAll()
	if err != nil {
		return nil, err
	}
	origins, err := h.files.Origins()
	if err != nil {
		return nil, err
	}

	if origin != "" {
		filtered := make([]domain.FileMetadata, 0, len(files))
		for _, f := range files {
			if f.OriginAlias == origin {
				filtered = append(filtered, f)
			}
		}
		files = filtered
	}

	return json.Marshal(FilesUpdateData{
		Files:            files,
		TotalFiles:       len(files),
		AvailableOrigins: origins,
	})
}

// broadcastToAll 向全部客户端广播
func (h *Hub) broadcastToAll(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		select {
		case client.send <- data:
		default:
			// 客户端阻塞，跳过
			h.log.Warn("client channel blocked, skipping", zap.String("clientID", client.ID))
		}
	}
}

// pingAllClients 向所有客户端发送ping
func (h *Hub) pingAllClients() {
	msg := &Message{
		Type:      MessageTypePing,
		Timestamp: time.Now(),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		select {
		case client.send <- data:
		default:
		}
	}
}

// closeAllClients 关闭所有客户端连接
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		close(client.send)
	}
	h.clients = make(map[string]*Client)
	h.reportClientCount()
}

// HandleWebSocket 处理WebSocket连接
func HandleWebSocket(hub *Hub) gin.HandlerFunc {
	upgrader := upgraderFactory(hub.allowedOrigins)

	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			hub.log.Error("failed to upgrade connection",
				zap.Error(err),
				zap.String("origin", c.Request.Header.Get("Origin")),
				zap.String("remote_addr", c.ClientIP()))
			return
		}

		client := &Client{
			ID:   uuid.NewString(),
			conn: conn,
			send: make(chan []byte, 256),
			hub:  hub,
			log:  hub.log,
		}

		hub.register <- client

		go client.writePump()
		go client.readPump()

		// 新连接立即收到当前文件列表
		client.sendFiles("")
	}
}

// readPump 处理客户端消息
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		var msg Message
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Error("websocket error", zap.Error(err))
			}
			break
		}

		c.handleMessage(&msg)
	}
}

// writePump 发送消息给客户端
func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			c.conn.WriteMessage(websocket.TextMessage, message)

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage 处理接收到的消息
func (c *Client) handleMessage(msg *Message) {
	switch msg.Type {
	case MessageTypeGetFiles:
		c.sendFiles(msg.Origin)
	case MessageTypePong:
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	default:
		c.log.Warn("unknown message type", zap.String("type", string(msg.Type)))
	}
}

// sendFiles 向单个客户端发送文件列表
func (c *Client) sendFiles(origin string) {
	payload, err := c.hub.buildFilesPayload(origin)
	if err != nil {
		c.log.Error("failed to build files payload", zap.Error(err))
		c.sendError("failed to load file list")
		return
	}

	c.sendMessage(&Message{
		Type:      MessageTypeFilesUpdated,
		Origin:    origin,
		Data:      payload,
		Timestamp: time.Now(),
	})
}

// sendError 发送错误消息给客户端
func (c *Client) sendError(errMsg string) {
	c.sendMessage(&Message{
		Type:      MessageTypeError,
		Error:     errMsg,
		Timestamp: time.Now(),
	})
}

// sendMessage 发送消息给客户端
func (c *Client) sendMessage(msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.log.Error("failed to marshal message", zap.Error(err))
		return
	}

	select {
	case c.send <- data:
	default:
		c.log.Warn("client channel blocked", zap.String("clientID", c.ID))
	}
}
