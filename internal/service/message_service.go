package service

import (
	"Courier/internal/api/dto"
	"Courier/internal/pkg/consts"
	"Courier/internal/pkg/im"
	"Courier/internal/pkg/mongo"
	"Courier/internal/pkg/redis"
	"Courier/internal/pkg/util"
	"context"
	log "log/slog"
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

// MessageService 消息落库与回执服务。
// 集合名永远由 util 里的寻址函数算出，调用方不允许自己拼接。
type MessageService interface {
	// SaveOnline 消息写入正式分片集合
	SaveOnline(ctx context.Context, msg *mongo.Message) error
	// SaveOffline 先写正式集合，再写接收人的离线集合
	SaveOffline(ctx context.Context, msg *mongo.Message) error
	// Get 按消息 id 精确查询
	Get(ctx context.Context, id, chatKey string) (*mongo.Message, error)
	// List 拉取一段历史，最近 limit 条（升序）加上未读的离线消息
	List(ctx context.Context, userID, chatID, chatType string, limit int64) ([]*mongo.Message, error)
	// UnreadList 私聊离线消息，fromID 非空时只取该发送者的
	UnreadList(ctx context.Context, userID, fromID string) ([]*mongo.Message, error)
	// UnreadGroupList 群聊未读消息，窗口从最后已读时间到当前
	UnreadGroupList(ctx context.Context, userID, groupID string) ([]*mongo.Message, error)
	// Receipt 记录已读回执并通知对端
	Receipt(ctx context.Context, receipt *dto.ReadReceipt) error
	// ClearChatMessage 删除一段会话的全部历史
	ClearChatMessage(ctx context.Context, userID, chatID, chatType string) error
}

type messageServiceImpl struct {
	messageRepo mongo.MessageRepo
	connStatus  ConnStatusService
	registry    *im.Registry
}

func NewMessageService(messageRepo mongo.MessageRepo, connStatus ConnStatusService, registry *im.Registry) MessageService {
	return &messageServiceImpl{
		messageRepo: messageRepo,
		connStatus:  connStatus,
		registry:    registry,
	}
}

// SaveOnline 在线消息直接写入正式集合，chatKey 在这里统一补齐
func (s *messageServiceImpl) SaveOnline(ctx context.Context, msg *mongo.Message) error {
	msg.ChatKey = util.ChatKey(msg.FromID, msg.ChatID, msg.ChatType)
	collection := util.CollectionName(msg.FromID, msg.ChatID, msg.ChatType)
	return s.messageRepo.Save(ctx, collection, msg)
}

// SaveOffline 正式集合写入失败时不再写离线集合，
// 离线集合只允许出现正式集合的子集，重放时才能安全覆盖写
func (s *messageServiceImpl) SaveOffline(ctx context.Context, msg *mongo.Message) error {
	if err := s.SaveOnline(ctx, msg); err != nil {
		return err
	}
	return s.messageRepo.Save(ctx, util.OfflineCollectionName(msg.ChatID), msg)
}

func (s *messageServiceImpl) Get(ctx context.Context, id, chatKey string) (*mongo.Message, error) {
	return s.messageRepo.Get(ctx, util.CollectionNameByChatKey(chatKey), id)
}

// List 历史消息升序返回，末尾追加还没确认的离线消息
func (s *messageServiceImpl) List(ctx context.Context, userID, chatID, chatType string, limit int64) ([]*mongo.Message, error) {
	chatKey := util.ChatKey(userID, chatID, chatType)
	collection := util.CollectionName(userID, chatID, chatType)

	recent, err := s.messageRepo.Recent(ctx, collection, chatKey, limit)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(recent)-1; i < j; i, j = i+1, j-1 {
		recent[i], recent[j] = recent[j], recent[i]
	}

	if chatType != consts.ChatTypeFriend {
		return recent, nil
	}
	unread, err := s.UnreadList(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}
	return append(recent, unread...), nil
}

func (s *messageServiceImpl) UnreadList(ctx context.Context, userID, fromID string) ([]*mongo.Message, error) {
	return s.messageRepo.Offline(ctx, util.OfflineCollectionName(userID), fromID)
}

// UnreadGroupList 没有已读记录时窗口下界取 -1，第一次上线能拿到建群以来的全部消息
func (s *messageServiceImpl) UnreadGroupList(ctx context.Context, userID, groupID string) ([]*mongo.Message, error) {
	boundary := int64(-1)
	value, err := redis.GetValue(ctx, util.ReadKey(userID, groupID))
	if err != nil {
		return nil, err
	}
	if value != "" {
		boundary, err = strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, err
		}
	}

	collection := util.CollectionName(userID, groupID, consts.ChatTypeGroup)
	return s.messageRepo.TimeRange(ctx, collection, boundary, time.Now().UnixMilli())
}

// Receipt 已读时间无条件覆盖写入；私聊场景下若读取方是新连接，
// 额外把整个离线队列清掉并复位标记，标记只能被消费一次
func (s *messageServiceImpl) Receipt(ctx context.Context, receipt *dto.ReadReceipt) error {
	if err := redis.SetValue(ctx, util.ReadKey(receipt.FromID, receipt.ChatID), receipt.Timestamp); err != nil {
		return err
	}

	if receipt.Type == consts.ChatTypeFriend {
		fresh, err := s.connStatus.ConsumeFresh(ctx, receipt.FromID)
		if err != nil {
			return err
		}
		if fresh {
			deleted, err := s.messageRepo.DeleteOffline(ctx, util.OfflineCollectionName(receipt.FromID), receipt.FromID)
			if err != nil {
				return err
			}
			if deleted > 0 {
				log.InfoContext(ctx, "清理离线消息", "userId", receipt.FromID, "count", deleted)
			}
		}
	}

	payload, err := json.Marshal(receipt)
	if err != nil {
		return err
	}
	envelope, err := json.Marshal(&dto.SendInfo{Code: consts.SendCodeRead, Message: payload})
	if err != nil {
		return err
	}
	s.registry.SendToUser(receipt.ChatID, envelope)
	return nil
}

// ClearChatMessage 清理正式集合里这段会话的历史，
// 私聊时连同自己离线队列里对方发来的消息一起删掉
func (s *messageServiceImpl) ClearChatMessage(ctx context.Context, userID, chatID, chatType string) error {
	chatKey := util.ChatKey(userID, chatID, chatType)
	collection := util.CollectionName(userID, chatID, chatType)
	if err := s.messageRepo.DeleteByChatKey(ctx, collection, chatKey); err != nil {
		return err
	}

	if chatType == consts.ChatTypeFriend {
		if _, err := s.messageRepo.DeleteOfflineBySender(ctx, util.OfflineCollectionName(userID), chatID); err != nil {
			return err
		}
	}
	return nil
}
