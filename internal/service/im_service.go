package service

import (
	"Courier/internal/api/config"
	"Courier/internal/api/dto"
	"Courier/internal/pkg/consts"
	"Courier/internal/pkg/im"
	"Courier/internal/pkg/mongo"
	"context"
	"fmt"
	log "log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/jinzhu/copier"
)

const (
	retryQueueSize = 2048
	retryWorkers   = 5
	retryAttempts  = 3
)

// IMService 即时通讯核心服务：连接绑定、消息分发、离线重放。
// 一个进程只允许创建一个实例，雪花节点和重试队列都挂在上面。
type IMService interface {
	// BindConnection 认证并绑定连接，失败时由调用方负责断开
	BindConnection(ctx context.Context, conn *im.Conn, auth *dto.ReadyAuth) error
	// HandleMessage 聊天消息分发，在线直推，离线落库
	HandleMessage(ctx context.Context, conn *im.Conn, info *dto.SendInfo) error
	// HandleRead 已读回执
	HandleRead(ctx context.Context, info *dto.SendInfo) error
	// HandleOther 其他类型的帧原样转发，不落库
	HandleOther(ctx context.Context, info *dto.SendInfo, raw []byte)
	// PushOffline 绑定完成后重放离线与群未读消息
	PushOffline(ctx context.Context, conn *im.Conn)
	// Close 停止重试队列并等待收尾
	Close()
}

type imServiceImpl struct {
	registry       *im.Registry
	messageService MessageService
	groupService   GroupService
	authService    AuthService
	connStatus     ConnStatusService
	node           *snowflake.Node
	validate       *validator.Validate

	retryChan chan *mongo.Message
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

func NewIMService(
	registry *im.Registry,
	messageService MessageService,
	groupService GroupService,
	authService AuthService,
	connStatus ConnStatusService,
) (IMService, error) {
	node, err := snowflake.NewNode(config.Cfg.IM.NodeID)
	if err != nil {
		return nil, fmt.Errorf("创建雪花节点失败: %w", err)
	}

	s := &imServiceImpl{
		registry:       registry,
		messageService: messageService,
		groupService:   groupService,
		authService:    authService,
		connStatus:     connStatus,
		node:           node,
		validate:       validator.New(),
		retryChan:      make(chan *mongo.Message, retryQueueSize),
		stopChan:       make(chan struct{}),
	}

	for i := 0; i < retryWorkers; i++ {
		s.wg.Add(1)
		go s.retryWorker()
	}
	return s, nil
}

// BindConnection 认证通过后才占用索引。先给同设备的旧连接发挤占通知，
// 再绑定新连接，避免通知误发给自己
func (s *imServiceImpl) BindConnection(ctx context.Context, conn *im.Conn, auth *dto.ReadyAuth) error {
	if err := s.validate.Struct(auth); err != nil {
		return fmt.Errorf("%w: %v", ErrParamInvalid, err)
	}

	userID, err := s.authService.Resolve(auth.Token)
	if err != nil {
		return err
	}

	if err := s.connStatus.SetFresh(ctx, userID); err != nil {
		log.WarnContext(ctx, "标记新连接失败", "userId", userID, "error", err)
	}

	deviceKey := userID + ":" + auth.Client
	s.notifyOtherLogin(ctx, deviceKey, auth.UUID)
	s.registry.BindUser(conn, userID, deviceKey)

	groups, err := s.groupService.GetGroups(ctx, userID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBindFailed, err)
	}
	for _, group := range groups {
		// 开启禁言的群不绑定，新消息不会推给这个连接
		if group.Prohibition == consts.DictNo {
			s.registry.BindGroup(conn, group.ID)
		}
	}

	log.InfoContext(ctx, "连接绑定成功", "userId", userID, "client", auth.Client, "groups", len(groups))
	return nil
}

func (s *imServiceImpl) notifyOtherLogin(ctx context.Context, deviceKey, uuid string) {
	body, err := json.Marshal(&dto.OtherLogin{UUID: uuid})
	if err != nil {
		return
	}
	envelope, err := json.Marshal(&dto.SendInfo{Code: consts.SendCodeOtherLogin, Message: body})
	if err != nil {
		return
	}
	if conns := s.registry.ConnsOfDevice(deviceKey); len(conns) > 0 {
		log.InfoContext(ctx, "同设备重复登录，通知旧连接", "deviceKey", deviceKey, "count", len(conns))
	}
	s.registry.SendToDevice(deviceKey, envelope)
}

// HandleMessage 私聊与群聊走不同的投递路径
func (s *imServiceImpl) HandleMessage(ctx context.Context, conn *im.Conn, info *dto.SendInfo) error {
	msg, payload, err := s.parseMessage(info)
	if err != nil {
		return err
	}

	switch msg.ChatType {
	case consts.ChatTypeFriend:
		return s.handleFriendMessage(ctx, msg, payload)
	case consts.ChatTypeGroup:
		return s.handleGroupMessage(ctx, msg, payload)
	default:
		return fmt.Errorf("%w: 未知聊天类型 %s", ErrParamInvalid, msg.ChatType)
	}
}

// parseMessage 服务端统一盖时间戳和消息 id，
// 返回落库用的实体和推送用的完整封包
func (s *imServiceImpl) parseMessage(info *dto.SendInfo) (*mongo.Message, []byte, error) {
	var wire dto.Message
	if err := json.Unmarshal(info.Message, &wire); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrParamInvalid, err)
	}
	if err := s.validate.Struct(&wire); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrParamInvalid, err)
	}

	wire.Timestamp = time.Now().UnixMilli()
	if wire.ID == "" {
		wire.ID = s.node.Generate().String()
	}

	var msg mongo.Message
	if err := copier.Copy(&msg, &wire); err != nil {
		return nil, nil, err
	}

	body, err := json.Marshal(&wire)
	if err != nil {
		return nil, nil, err
	}
	payload, err := json.Marshal(&dto.SendInfo{Code: consts.SendCodeMessage, Message: body})
	if err != nil {
		return nil, nil, err
	}
	return &msg, payload, nil
}

// handleFriendMessage 接收方在线时先推后存，推送延迟优先于持久化；
// 不在线时写离线集合。无论哪条路径都回显给发送方的全部在线端
func (s *imServiceImpl) handleFriendMessage(ctx context.Context, msg *mongo.Message, payload []byte) error {
	conns := s.registry.ConnsOfUser(msg.ChatID)
	if len(conns) == 0 {
		if err := s.messageService.SaveOffline(ctx, msg); err != nil {
			log.ErrorContext(ctx, "离线消息落库失败", "messageId", msg.ID, "error", err)
			s.enqueueRetry(msg)
		}
	} else {
		s.registry.SendToUser(msg.ChatID, payload)
		if err := s.messageService.SaveOnline(ctx, msg); err != nil {
			log.ErrorContext(ctx, "消息落库失败，进入重试队列", "messageId", msg.ID, "error", err)
			s.enqueueRetry(msg)
		}
	}

	s.registry.SendToUser(msg.FromID, payload)
	return nil
}

// handleGroupMessage 非群成员的消息静默丢弃，只记一条审计日志
func (s *imServiceImpl) handleGroupMessage(ctx context.Context, msg *mongo.Message, payload []byte) error {
	member, err := s.groupService.IsMember(ctx, msg.ChatID, msg.FromID)
	if err != nil {
		return err
	}
	if !member {
		log.WarnContext(ctx, "非群成员发送群消息，已丢弃", "groupId", msg.ChatID, "userId", msg.FromID)
		return nil
	}

	if err := s.messageService.SaveOnline(ctx, msg); err != nil {
		log.ErrorContext(ctx, "群消息落库失败，进入重试队列", "messageId", msg.ID, "error", err)
		s.enqueueRetry(msg)
	}
	s.registry.SendToGroup(msg.ChatID, payload)
	return nil
}

// HandleRead 已读时间由服务端盖章，客户端传什么都不认
func (s *imServiceImpl) HandleRead(ctx context.Context, info *dto.SendInfo) error {
	var receipt dto.ReadReceipt
	if err := json.Unmarshal(info.Message, &receipt); err != nil {
		return fmt.Errorf("%w: %v", ErrParamInvalid, err)
	}
	if err := s.validate.Struct(&receipt); err != nil {
		return fmt.Errorf("%w: %v", ErrParamInvalid, err)
	}
	receipt.Timestamp = time.Now().UnixMilli()
	return s.messageService.Receipt(ctx, &receipt)
}

// HandleOther 好友申请、入群申请这类信令帧原样转发，收不到就丢
func (s *imServiceImpl) HandleOther(ctx context.Context, info *dto.SendInfo, raw []byte) {
	var target struct {
		ChatID   string `json:"chatId"`
		ChatType string `json:"chatType"`
	}
	if err := json.Unmarshal(info.Message, &target); err != nil {
		log.WarnContext(ctx, "透传帧解析失败", "code", info.Code, "error", err)
		return
	}
	if target.ChatID == "" {
		log.WarnContext(ctx, "透传帧缺少目标", "code", info.Code)
		return
	}

	// friend 发给用户连接，其余类型一律按群处理
	if target.ChatType == consts.ChatTypeFriend {
		s.registry.SendToUser(target.ChatID, raw)
		return
	}
	s.registry.SendToGroup(target.ChatID, raw)
}

// PushOffline 先私聊离线，再按用户的全部群逐个拉取未读窗口。
// 禁言只挡住实时扇出，不影响未读重放，所以这里查成员关系而不是
// 连接上已绑定的群。单个群失败只跳过该群，不中断整体重放
func (s *imServiceImpl) PushOffline(ctx context.Context, conn *im.Conn) {
	userID := conn.UserID()

	unread, err := s.messageService.UnreadList(ctx, userID, "")
	if err != nil {
		log.ErrorContext(ctx, "拉取私聊离线消息失败", "userId", userID, "error", err)
	} else {
		s.sendBacklog(ctx, userID, unread)
	}

	groups, err := s.groupService.GetGroups(ctx, userID)
	if err != nil {
		log.ErrorContext(ctx, "拉取群列表失败，跳过群未读重放", "userId", userID, "error", err)
		return
	}
	for _, group := range groups {
		msgs, err := s.messageService.UnreadGroupList(ctx, userID, group.ID)
		if err != nil {
			log.ErrorContext(ctx, "拉取群未读消息失败", "userId", userID, "groupId", group.ID, "error", err)
			continue
		}
		s.sendBacklog(ctx, userID, msgs)
	}
}

// sendBacklog 重放一批积压消息。每个会话的首条先覆盖写一遍再推，
// 并停顿一个节拍，客户端来得及按会话渲染；后续消息直接推
func (s *imServiceImpl) sendBacklog(ctx context.Context, userID string, msgs []*mongo.Message) {
	pace := time.Duration(config.Cfg.IM.ReplayPaceMS) * time.Millisecond
	seen := make(map[string]struct{})

	for _, msg := range msgs {
		body, err := json.Marshal(msg)
		if err != nil {
			log.ErrorContext(ctx, "重放消息序列化失败", "messageId", msg.ID, "error", err)
			continue
		}
		payload, err := json.Marshal(&dto.SendInfo{Code: consts.SendCodeMessage, Message: body})
		if err != nil {
			log.ErrorContext(ctx, "重放消息封包失败", "messageId", msg.ID, "error", err)
			continue
		}

		key := conversationKey(msg)
		if _, ok := seen[key]; !ok {
			seen[key] = struct{}{}
			if err := s.messageService.SaveOnline(ctx, msg); err != nil {
				log.ErrorContext(ctx, "重放首条覆盖写失败", "messageId", msg.ID, "error", err)
				continue
			}
			s.registry.SendToUser(userID, payload)
			if pace > 0 {
				time.Sleep(pace)
			}
			continue
		}
		s.registry.SendToUser(userID, payload)
	}
}

func conversationKey(msg *mongo.Message) string {
	if msg.ChatKey != "" {
		return msg.ChatKey
	}
	return msg.ChatType + ":" + msg.ChatID
}

func (s *imServiceImpl) enqueueRetry(msg *mongo.Message) {
	select {
	case s.retryChan <- msg:
	default:
		log.Error("重试队列已满，消息丢弃", "messageId", msg.ID)
	}
}

// retryWorker 落库失败的消息指数退避重试，最多三轮
func (s *imServiceImpl) retryWorker() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stopChan:
			// 停机前把队列里剩余的消息写完
			for {
				select {
				case msg := <-s.retryChan:
					s.retrySave(msg)
				default:
					return
				}
			}
		case msg := <-s.retryChan:
			s.retrySave(msg)
		}
	}
}

func (s *imServiceImpl) retrySave(msg *mongo.Message) {
	ctx := context.Background()
	for i := 0; i < retryAttempts; i++ {
		if err := s.messageService.SaveOnline(ctx, msg); err == nil {
			return
		} else if i == retryAttempts-1 {
			log.Error("消息重试落库最终失败", "messageId", msg.ID, "error", err)
			return
		}
		time.Sleep(time.Duration(i+1) * 500 * time.Millisecond)
	}
}

// Close 幂等性由调用方保证，只允许在停机路径调用一次
func (s *imServiceImpl) Close() {
	close(s.stopChan)
	s.wg.Wait()
}
