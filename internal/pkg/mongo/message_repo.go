package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MessageRepo 消息明细的持久层，集合名由调用方按分片算法给出，
// 所有读写删必须使用同一套寻址函数，否则静默查不到数据
type MessageRepo interface {
	Save(ctx context.Context, collection string, msg *Message) error
	Recent(ctx context.Context, collection, chatKey string, limit int64) ([]*Message, error)
	Offline(ctx context.Context, collection, fromID string) ([]*Message, error)
	TimeRange(ctx context.Context, collection string, from, to int64) ([]*Message, error)
	DeleteOffline(ctx context.Context, collection, ownerID string) (int64, error)
	DeleteOfflineBySender(ctx context.Context, collection, senderID string) (int64, error)
	DeleteByChatKey(ctx context.Context, collection, chatKey string) error
	Get(ctx context.Context, collection, id string) (*Message, error)
}

type messageRepoImpl struct {
	db *mongo.Database
}

func NewMessageRepo(db *mongo.Database) MessageRepo {
	return &messageRepoImpl{db: db}
}

// Save 按 _id 覆盖写入，离线重放时对同一条消息不会产生第二份记录
func (s *messageRepoImpl) Save(ctx context.Context, collection string, msg *Message) error {
	col := s.db.Collection(collection)
	if msg.ID == "" {
		_, err := col.InsertOne(ctx, msg)
		return err
	}
	opts := options.Replace().SetUpsert(true)
	_, err := col.ReplaceOne(ctx, bson.M{"_id": msg.ID}, msg, opts)
	return err
}

// Recent 按时间倒序取最近 limit 条，chat_key 对会话双方对称
func (s *messageRepoImpl) Recent(ctx context.Context, collection, chatKey string, limit int64) ([]*Message, error) {
	filter := bson.M{"chat_key": chatKey}
	findOptions := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(limit)

	return s.find(ctx, collection, filter, findOptions)
}

// Offline 读取离线集合，按时间升序，fromID 非空时只取该发送者的
func (s *messageRepoImpl) Offline(ctx context.Context, collection, fromID string) ([]*Message, error) {
	filter := bson.M{}
	if fromID != "" {
		filter["from_id"] = fromID
	}
	findOptions := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})

	return s.find(ctx, collection, filter, findOptions)
}

// TimeRange 时间窗口查询，闭区间，升序
func (s *messageRepoImpl) TimeRange(ctx context.Context, collection string, from, to int64) ([]*Message, error) {
	filter := bson.M{"timestamp": bson.M{"$gte": from, "$lte": to}}
	findOptions := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})

	return s.find(ctx, collection, filter, findOptions)
}

// DeleteOffline 清空接收人的离线队列，返回删除条数
func (s *messageRepoImpl) DeleteOffline(ctx context.Context, collection, ownerID string) (int64, error) {
	res, err := s.db.Collection(collection).DeleteMany(ctx, bson.M{"chat_id": ownerID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// DeleteOfflineBySender 删除离线队列里指定发送者的消息
func (s *messageRepoImpl) DeleteOfflineBySender(ctx context.Context, collection, senderID string) (int64, error) {
	res, err := s.db.Collection(collection).DeleteMany(ctx, bson.M{"from_id": senderID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// DeleteByChatKey 按会话标识删除全部历史
func (s *messageRepoImpl) DeleteByChatKey(ctx context.Context, collection, chatKey string) error {
	_, err := s.db.Collection(collection).DeleteMany(ctx, bson.M{"chat_key": chatKey})
	return err
}

// Get 精确查询
func (s *messageRepoImpl) Get(ctx context.Context, collection, id string) (*Message, error) {
	var msg Message
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&msg)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (s *messageRepoImpl) find(ctx context.Context, collection string, filter bson.M, opts *options.FindOptions) ([]*Message, error) {
	cursor, err := s.db.Collection(collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	var messages []*Message
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, err
	}

	return messages, nil
}
