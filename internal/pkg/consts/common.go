package consts

// 心跳使用裸字符串，不走 JSON 封装
const (
	Ping = "ping"
	Pong = "pong"
)

// 聊天类型
const (
	ChatTypeFriend = "friend"
	ChatTypeGroup  = "group"
)

// SendInfo 的 code 取值
const (
	SendCodeReady         = "ready"
	SendCodeMessage       = "message"
	SendCodeRead          = "read"
	SendCodeOtherLogin    = "other-login"
	SendCodeFriendRequest = "friend-request"
	SendCodeGroupRequest  = "group-request"
)

// 消息类型
const (
	MessageTypeText    = "text"
	MessageTypeImage   = "image"
	MessageTypeFile    = "file"
	MessageTypeVoice   = "voice"
	MessageTypeVideo   = "video"
	MessageTypeForward = "forward"
	MessageTypeEvent   = "event"
)

// 字典开关
const (
	DictYes = "1"
	DictNo  = "0"
)
