package consts

const (
	// ConnFreshKey 标记用户是否是新连接，READ 回执清理离线消息时消费
	ConnFreshKey = "im:conn:isNew:"
)
