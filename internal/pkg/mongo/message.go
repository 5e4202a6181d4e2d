package mongo

// Message 消息明细，存入按会话分片的集合
type Message struct {
	ID          string                 `bson:"_id,omitempty" json:"id"`             // 雪花ID，入站缺失时由服务端补齐
	ChatID      string                 `bson:"chat_id" json:"chatId"`               // 私聊为对端用户ID，群聊为群ID
	ChatType    string                 `bson:"chat_type" json:"chatType"`           // friend | group
	MessageType string                 `bson:"message_type" json:"messageType"`     // text | image | file | event ...
	Content     string                 `bson:"content" json:"content"`              // 文本内容或引用
	FromID      string                 `bson:"from_id" json:"fromId"`               // 发送者ID
	Timestamp   int64                  `bson:"timestamp" json:"timestamp"`          // 服务端毫秒时间戳
	Extend      map[string]interface{} `bson:"extend,omitempty" json:"extend,omitempty"` // 扩展字段（如@列表）
	ChatKey     string                 `bson:"chat_key" json:"chatKey,omitempty"`   // 会话的对称标识，入库时计算
}
