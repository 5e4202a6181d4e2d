package mongo

import (
	"context"
	"fmt"
	log "log/slog"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const logCollectionPrefix = "message-log-"

// MessageLogRepo 异步记录入站帧日志，队列满时丢弃而不是阻塞读循环
type MessageLogRepo interface {
	Log(text, senderID string)
	LogCollections(ctx context.Context) ([]string, error)
	Drop(ctx context.Context, collection string) error
	Close()
}

type messageLogRepoImpl struct {
	db       *mongo.Database
	logChan  chan *MessageLog
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewMessageLogRepo 构造函数：启动固定数量的写日志工作协程
func NewMessageLogRepo(db *mongo.Database) MessageLogRepo {
	s := &messageLogRepoImpl{
		db:       db,
		logChan:  make(chan *MessageLog, 1024),
		stopChan: make(chan struct{}),
	}

	workerCount := 2
	s.wg.Add(workerCount)
	for i := 0; i < workerCount; i++ {
		go s.logWorker()
	}

	return s
}

// Log 入队一条日志，队列满时丢弃
func (s *messageLogRepoImpl) Log(text, senderID string) {
	entry := &MessageLog{
		Content:  text,
		SenderID: senderID,
		SendTime: time.Now().UnixMilli(),
	}
	select {
	case s.logChan <- entry:
	default:
		log.Warn("消息日志队列已满，丢弃一条", "senderID", senderID)
	}
}

// LogCollections 列出全部消息日志集合
func (s *messageLogRepoImpl) LogCollections(ctx context.Context) ([]string, error) {
	names, err := s.db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	var res []string
	for _, name := range names {
		if strings.HasPrefix(name, logCollectionPrefix) {
			res = append(res, name)
		}
	}
	return res, nil
}

// Drop 删除一个日志集合
func (s *messageLogRepoImpl) Drop(ctx context.Context, collection string) error {
	return s.db.Collection(collection).Drop(ctx)
}

// Close 等待队列里剩余的日志写完
func (s *messageLogRepoImpl) Close() {
	close(s.stopChan)
	s.wg.Wait()
}

func (s *messageLogRepoImpl) logWorker() {
	defer s.wg.Done()
	for {
		select {
		case entry := <-s.logChan:
			s.write(entry)
		case <-s.stopChan:
			// 排空队列后退出
			for {
				select {
				case entry := <-s.logChan:
					s.write(entry)
				default:
					return
				}
			}
		}
	}
}

func (s *messageLogRepoImpl) write(entry *MessageLog) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	collection := LogCollectionName(time.UnixMilli(entry.SendTime))
	if _, err := s.db.Collection(collection).InsertOne(ctx, entry); err != nil {
		log.Error("写入消息日志失败", "err", err)
	}
}

// LogCollectionName 日志集合按天命名
func LogCollectionName(t time.Time) string {
	return fmt.Sprintf("%s%s", logCollectionPrefix, t.Format("20060102"))
}

// LogCollectionDate 从集合名解析出日期，解析失败返回 false
func LogCollectionDate(collection string) (time.Time, bool) {
	suffix := strings.TrimPrefix(collection, logCollectionPrefix)
	t, err := time.Parse("20060102", suffix)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
