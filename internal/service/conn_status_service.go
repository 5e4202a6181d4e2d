package service

import (
	"Courier/internal/pkg/consts"
	"Courier/internal/pkg/redis"
	"context"
)

// ConnStatusService 用户是否是新连接，以便于清理未读的消息。
// 读取和清除必须是一个原子操作，同一用户多端并发上报已读时
// 只能有一端消费到这个标记。
type ConnStatusService interface {
	SetFresh(ctx context.Context, userID string) error
	ConsumeFresh(ctx context.Context, userID string) (bool, error)
}

type connStatusServiceImpl struct{}

func NewConnStatusService() ConnStatusService {
	return &connStatusServiceImpl{}
}

// SetFresh 重新认证时标记为新连接
func (s *connStatusServiceImpl) SetFresh(ctx context.Context, userID string) error {
	return redis.SetValue(ctx, consts.ConnFreshKey+userID, "1")
}

// ConsumeFresh 原子地读取并清除标记，GETDEL 保证只被消费一次
func (s *connStatusServiceImpl) ConsumeFresh(ctx context.Context, userID string) (bool, error) {
	value, err := redis.GetDel(ctx, consts.ConnFreshKey+userID)
	if err != nil {
		return false, err
	}
	return value == "1", nil
}
