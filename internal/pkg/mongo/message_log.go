package mongo

// MessageLog 入站帧的原始日志，按天分集合存放
type MessageLog struct {
	Content  string `bson:"content" json:"content"`    // 原始消息内容
	SenderID string `bson:"sender_id" json:"senderId"` // 发送者ID
	SendTime int64  `bson:"send_time" json:"sendTime"` // 发送时间毫秒
}
