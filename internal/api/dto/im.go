package dto

import "github.com/goccy/go-json"

// SendInfo websocket 通讯的 json 封装，message 按 code 分别解析
type SendInfo struct {
	Code    string          `json:"code"`
	Message json.RawMessage `json:"message"`
}

// ReadyAuth 连接就绪帧携带的登录信息
type ReadyAuth struct {
	Token  string `json:"token" validate:"required"` // 外部签发的会话 token
	Client string `json:"client" validate:"required"` // 客户端类型标签，web | mobile ...
	UUID   string `json:"uuid" validate:"required"`   // 本次登录的关联ID，回显在 other-login 通知里
}

// Message 聊天消息的线上形态，与存储形态字段一致
type Message struct {
	ID          string                 `json:"id"`
	ChatID      string                 `json:"chatId" validate:"required"`
	ChatType    string                 `json:"chatType" validate:"required"`
	MessageType string                 `json:"messageType"`
	Content     string                 `json:"content"`
	FromID      string                 `json:"fromId" validate:"required"`
	Timestamp   int64                  `json:"timestamp"`
	Extend      map[string]interface{} `json:"extend,omitempty"`
	ChatKey     string                 `json:"chatKey,omitempty"`
}

// ReadReceipt 消息已读回执
type ReadReceipt struct {
	ChatID    string `json:"chatId" validate:"required"` // 聊天室id
	FromID    string `json:"fromId" validate:"required"` // 消息读取人
	Timestamp int64  `json:"timestamp"`                  // 最后一条消息读取时间，服务端覆盖
	Type      string `json:"type" validate:"required"`   // 聊天类型
}

// OtherLogin 其他端登录通知
type OtherLogin struct {
	UUID string `json:"uuid"`
}

// Response 统一响应体
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}
