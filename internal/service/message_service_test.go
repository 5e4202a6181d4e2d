package service

import (
	"Courier/internal/pkg/consts"
	"Courier/internal/pkg/im"
	"Courier/internal/pkg/mongo"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMessageRepo struct {
	saves          map[string][]*mongo.Message
	saveErrFor     map[string]error
	recent         []*mongo.Message
	offline        []*mongo.Message
	clearedKeys    map[string]string
	clearedSenders map[string]string
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{
		saves:          make(map[string][]*mongo.Message),
		saveErrFor:     make(map[string]error),
		clearedKeys:    make(map[string]string),
		clearedSenders: make(map[string]string),
	}
}

func (s *fakeMessageRepo) Save(ctx context.Context, collection string, msg *mongo.Message) error {
	if err := s.saveErrFor[collection]; err != nil {
		return err
	}
	s.saves[collection] = append(s.saves[collection], msg)
	return nil
}

func (s *fakeMessageRepo) Recent(ctx context.Context, collection, chatKey string, limit int64) ([]*mongo.Message, error) {
	return s.recent, nil
}

func (s *fakeMessageRepo) Offline(ctx context.Context, collection, fromID string) ([]*mongo.Message, error) {
	return s.offline, nil
}

func (s *fakeMessageRepo) TimeRange(ctx context.Context, collection string, from, to int64) ([]*mongo.Message, error) {
	return nil, nil
}

func (s *fakeMessageRepo) DeleteOffline(ctx context.Context, collection, ownerID string) (int64, error) {
	return 0, nil
}

func (s *fakeMessageRepo) DeleteOfflineBySender(ctx context.Context, collection, senderID string) (int64, error) {
	s.clearedSenders[collection] = senderID
	return 0, nil
}

func (s *fakeMessageRepo) DeleteByChatKey(ctx context.Context, collection, chatKey string) error {
	s.clearedKeys[collection] = chatKey
	return nil
}

func (s *fakeMessageRepo) Get(ctx context.Context, collection, id string) (*mongo.Message, error) {
	return nil, nil
}

func newMessageServiceWithRepo(repo mongo.MessageRepo) MessageService {
	return NewMessageService(repo, &fakeConnStatusService{}, im.NewRegistry())
}

func TestSaveOnlineAddressing(t *testing.T) {
	repo := newFakeMessageRepo()
	svc := newMessageServiceWithRepo(repo)

	msg := &mongo.Message{ChatID: "12", ChatType: consts.ChatTypeFriend, FromID: "7", Content: "hi"}
	require.NoError(t, svc.SaveOnline(context.Background(), msg))

	// 分片集合按 id 差值取模，chatKey 统一补齐
	require.Len(t, repo.saves["message-s-5"], 1)
	assert.Equal(t, "message-s-7-12", msg.ChatKey)
}

func TestSaveOfflineWritesBacklog(t *testing.T) {
	repo := newFakeMessageRepo()
	svc := newMessageServiceWithRepo(repo)

	msg := &mongo.Message{ChatID: "12", ChatType: consts.ChatTypeFriend, FromID: "7", Content: "hi"}
	require.NoError(t, svc.SaveOffline(context.Background(), msg))

	assert.Len(t, repo.saves["message-s-5"], 1)
	assert.Len(t, repo.saves["offline-message-12"], 1)
}

func TestSaveOfflineCanonicalFailureSkipsBacklog(t *testing.T) {
	repo := newFakeMessageRepo()
	repo.saveErrFor["message-s-5"] = errors.New("mongo down")
	svc := newMessageServiceWithRepo(repo)

	msg := &mongo.Message{ChatID: "12", ChatType: consts.ChatTypeFriend, FromID: "7", Content: "hi"}
	err := svc.SaveOffline(context.Background(), msg)

	// 正式集合写不进去时离线集合也不写，离线集合只能是正式集合的子集
	assert.Error(t, err)
	assert.Empty(t, repo.saves["offline-message-12"])
}

func TestListMergesRecentAndUnread(t *testing.T) {
	repo := newFakeMessageRepo()
	repo.recent = []*mongo.Message{
		{ID: "3", Timestamp: 3},
		{ID: "2", Timestamp: 2},
		{ID: "1", Timestamp: 1},
	}
	repo.offline = []*mongo.Message{{ID: "4", Timestamp: 4}}
	svc := newMessageServiceWithRepo(repo)

	res, err := svc.List(context.Background(), "7", "12", consts.ChatTypeFriend, 20)
	require.NoError(t, err)

	// 历史升序，未读追加在末尾
	require.Len(t, res, 4)
	assert.Equal(t, []string{"1", "2", "3", "4"}, []string{res[0].ID, res[1].ID, res[2].ID, res[3].ID})
}

func TestClearChatMessage(t *testing.T) {
	repo := newFakeMessageRepo()
	svc := newMessageServiceWithRepo(repo)

	require.NoError(t, svc.ClearChatMessage(context.Background(), "7", "12", consts.ChatTypeFriend))

	assert.Equal(t, "message-s-7-12", repo.clearedKeys["message-s-5"])
	// 自己离线队列里对方发来的也一起清掉
	assert.Equal(t, "12", repo.clearedSenders["offline-message-7"])
}
