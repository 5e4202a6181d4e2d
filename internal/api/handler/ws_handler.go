package handler

import (
	"Courier/internal/api/dto"
	"Courier/internal/pkg/consts"
	"Courier/internal/pkg/im"
	"Courier/internal/pkg/mongo"
	"Courier/internal/pkg/response"
	"Courier/internal/service"
	"context"
	log "log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WsHandler websocket 接入层，只负责升级、心跳和按 code 分发，
// 业务语义都在 IMService 里
type WsHandler struct {
	imService service.IMService
	registry  *im.Registry
	logRepo   mongo.MessageLogRepo
}

func NewWsHandler(imService service.IMService, registry *im.Registry, logRepo mongo.MessageLogRepo) *WsHandler {
	return &WsHandler{imService: imService, registry: registry, logRepo: logRepo}
}

// Connect 升级 websocket 并进入读循环。
// 鉴权不在升级阶段做，连接建立后第一帧 ready 携带 token
func (s *WsHandler) Connect(c *gin.Context) {
	if !websocket.IsWebSocketUpgrade(c.Request) {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WS 协议升级失败", "err", err)
		return
	}

	conn := im.NewConn(ws)
	defer func() {
		s.registry.Unbind(conn)
		_ = conn.Close()
		log.Info("WS 连接已断开", "userId", conn.UserID())
	}()

	ctx := context.Background()
	for {
		msgType, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		text := string(data)
		// 心跳是裸字符串，先于 JSON 解析处理
		if text == consts.Ping {
			if err := conn.SendText([]byte(consts.Pong)); err != nil {
				return
			}
			continue
		}

		s.logRepo.Log(text, conn.UserID())

		var info dto.SendInfo
		if err := json.Unmarshal(data, &info); err != nil {
			log.WarnContext(ctx, "WS 帧解析失败", "err", err)
			continue
		}

		switch info.Code {
		case consts.SendCodeReady:
			if conn.Bound() {
				continue
			}
			var auth dto.ReadyAuth
			if err := json.Unmarshal(info.Message, &auth); err != nil {
				log.WarnContext(ctx, "ready 帧解析失败", "err", err)
				return
			}
			if err := s.imService.BindConnection(ctx, conn, &auth); err != nil {
				log.WarnContext(ctx, "连接绑定失败", "err", err)
				return
			}
			// 重放必须在读取下一帧之前完成：同一连接紧跟着上报的
			// 已读会清空离线集合，不能跑在回捞之前
			s.imService.PushOffline(ctx, conn)

		case consts.SendCodeMessage:
			if !conn.Bound() {
				log.WarnContext(ctx, "未绑定连接发送消息，已忽略", "code", info.Code)
				continue
			}
			if err := s.imService.HandleMessage(ctx, conn, &info); err != nil {
				log.WarnContext(ctx, "消息处理失败", "userId", conn.UserID(), "err", err)
			}

		case consts.SendCodeRead:
			if !conn.Bound() {
				log.WarnContext(ctx, "未绑定连接上报已读，已忽略", "code", info.Code)
				continue
			}
			if err := s.imService.HandleRead(ctx, &info); err != nil {
				log.WarnContext(ctx, "已读回执处理失败", "userId", conn.UserID(), "err", err)
			}

		default:
			if !conn.Bound() {
				log.WarnContext(ctx, "未绑定连接发送信令，已忽略", "code", info.Code)
				continue
			}
			s.imService.HandleOther(ctx, &info, data)
		}
	}
}
