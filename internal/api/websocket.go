// internal/api/websocket.go
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/badapple-ai/badapple-studio/internal/media"
	"github.com/badapple-ai/badapple-studio/internal/models"
	"github.com/badapple-ai/badapple-studio/internal/services"
	"github.com/badapple-ai/badapple-studio/internal/trim"
	"github.com/badapple-ai/badapple-studio/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// WebSocket 升级器配置
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 在生产环境中应该进行更严格的检查
		return true
	},
}

const (
	wsWriteTimeout = 10 * time.Second
	wsPongTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
)

// WebSocketHandler 推送项目状态、任务进度，并承载裁剪预览会话
type WebSocketHandler struct {
	projects *services.ProjectService
	progress *services.ProgressService
	logger   *utils.Logger
}

// NewWebSocketHandler 创建 WebSocket 处理器
func NewWebSocketHandler(projects *services.ProjectService, progress *services.ProgressService) *WebSocketHandler {
	return &WebSocketHandler{
		projects: projects,
		progress: progress,
		logger:   utils.GetLogger(),
	}
}

// writeJSON 带写超时的 JSON 发送
func writeJSON(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(v)
}

// drainReads 只负责响应 pong 和发现连接断开
func drainReads(conn *websocket.Conn, done chan<- struct{}) {
	conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			close(done)
			return
		}
	}
}

// ProjectWebSocket 把项目缓存的每次更新推给客户端。
// 编辑器页面用它代替自己再开一轮轮询。
func (h *WebSocketHandler) ProjectWebSocket(c *gin.Context) {
	projectID := c.Param("id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warnf("websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	updates := h.projects.Subscribe(projectID)
	defer h.projects.Unsubscribe(projectID, updates)

	done := make(chan struct{})
	go drainReads(conn, done)

	pinger := time.NewTicker(wsPingInterval)
	defer pinger.Stop()

	// 每个连接一份播放源缓存：签名轮换不算换片，
	// 只有底层对象变了才提示客户端重新加载
	sources := media.NewSourceCache()

	for {
		select {
		case <-done:
			return
		case project, ok := <-updates:
			if !ok {
				return
			}
			msg := gin.H{
				"type":          "project_update",
				"project":       project,
				"reload_scenes": scenesNeedingReload(sources, project),
				"timestamp":     time.Now().Format(time.RFC3339),
			}
			if err := writeJSON(conn, msg); err != nil {
				return
			}
		case <-pinger.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ProgressWebSocket 订阅一个任务的进度更新直到任务结束
func (h *WebSocketHandler) ProgressWebSocket(c *gin.Context) {
	tracker, ok := h.progress.GetTracker(c.Param("taskID"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "任务不存在"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warnf("websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	updates := tracker.Subscribe()
	defer tracker.Unsubscribe(updates)

	done := make(chan struct{})
	go drainReads(conn, done)

	for {
		select {
		case <-done:
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			msg := gin.H{
				"type":      "progress",
				"task_id":   tracker.TaskID,
				"progress":  update.Progress,
				"message":   update.Message,
				"status":    update.Status,
				"timestamp": time.Now().Format(time.RFC3339),
			}
			if err := writeJSON(conn, msg); err != nil {
				return
			}
			if update.Status != "running" {
				return
			}
		}
	}
}

// trimEvent 裁剪预览会话中客户端发来的事件
type trimEvent struct {
	Type     string  `json:"type"`
	Duration float64 `json:"duration,omitempty"`
	Position float64 `json:"position,omitempty"`
	In       float64 `json:"in,omitempty"`
	Out      float64 `json:"out,omitempty"`
}

// TrimPreviewWebSocket runs one trim preview session per connection. The
// client streams player events (metadata, handle drags, position ticks,
// seeks); the server owns the trim state machine and streams back player
// commands plus range updates.
func (h *WebSocketHandler) TrimPreviewWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warnf("websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	// 回调在同步器内部锁下触发，只投递到缓冲通道，由下面的
	// 写协程真正发送
	outbound := make(chan interface{}, 64)

	sync := trim.NewSynchronizer(
		func(in, out float64) {
			select {
			case outbound <- gin.H{"type": "range", "in": in, "out": out}:
			default:
			}
		},
		func(cmd trim.Command) {
			msg := gin.H{"type": "command", "command": commandName(cmd.Type)}
			if cmd.Type == trim.CmdSeek {
				msg["target"] = cmd.Target
			}
			select {
			case outbound <- msg:
			default:
			}
		},
	)

	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		for msg := range outbound {
			if err := writeJSON(conn, msg); err != nil {
				return
			}
		}
	}()
	defer close(outbound)

	conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(wsPongTimeout))

		var event trimEvent
		if err := json.Unmarshal(data, &event); err != nil {
			h.sendTrimError(outbound, "事件格式错误")
			continue
		}

		if err := h.applyTrimEvent(sync, event, outbound); err != nil {
			h.sendTrimError(outbound, err.Error())
		}

		select {
		case <-writeDone:
			return
		default:
		}
	}
}

func (h *WebSocketHandler) applyTrimEvent(sync *trim.Synchronizer, event trimEvent, outbound chan<- interface{}) error {
	switch event.Type {
	case "load_metadata":
		if err := sync.LoadMetadata(event.Duration); err != nil {
			return err
		}
	case "set_range":
		if err := sync.SetRange(event.In, event.Out); err != nil {
			return err
		}
	case "drag_in":
		if _, err := sync.DragIn(event.Position); err != nil {
			return err
		}
	case "drag_out":
		if _, err := sync.DragOut(event.Position); err != nil {
			return err
		}
	case "position":
		if err := sync.PositionChanged(event.Position); err != nil {
			return err
		}
	case "seek":
		if _, err := sync.SeekRequested(event.Position); err != nil {
			return err
		}
	case "seek_completed":
		sync.SeekCompleted()
	case "play":
		if err := sync.Play(); err != nil {
			return err
		}
	case "pause":
		sync.Pause()
	case "state":
		in, out := sync.Range()
		select {
		case outbound <- gin.H{
			"type":     "state",
			"state":    sync.State().String(),
			"position": sync.Position(),
			"playing":  sync.Playing(),
			"in":       in,
			"out":      out,
		}:
		default:
		}
	default:
		h.sendTrimError(outbound, "未知事件类型: "+event.Type)
	}
	return nil
}

func (h *WebSocketHandler) sendTrimError(outbound chan<- interface{}, msg string) {
	select {
	case outbound <- gin.H{"type": "error", "error": msg}:
	default:
	}
}

// scenesNeedingReload returns the sequences whose playable media object
// actually changed since the last push over this connection.
func scenesNeedingReload(sources *media.SourceCache, project *models.Project) []int {
	reload := make([]int, 0)
	for i := range project.Scenes {
		sc := &project.Scenes[i]
		slot := fmt.Sprintf("scene-%d", sc.Sequence)
		if sources.NeedsReload(slot, sc.EffectivePlayableURL()) {
			reload = append(reload, sc.Sequence)
		}
	}
	return reload
}

func commandName(t trim.CommandType) string {
	switch t {
	case trim.CmdSeek:
		return "seek"
	case trim.CmdPlay:
		return "play"
	case trim.CmdPause:
		return "pause"
	}
	return "unknown"
}
