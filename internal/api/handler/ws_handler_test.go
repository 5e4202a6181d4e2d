package handler

import (
	"Courier/internal/api/dto"
	"Courier/internal/pkg/consts"
	"Courier/internal/pkg/im"
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIMService struct {
	registry  *im.Registry
	bindErr   error
	pushDelay time.Duration

	mu    sync.Mutex
	order []string

	messages chan *dto.SendInfo
	reads    chan *dto.SendInfo
	others   chan *dto.SendInfo
	pushed   chan struct{}
}

func newFakeIMService(registry *im.Registry) *fakeIMService {
	return &fakeIMService{
		registry: registry,
		messages: make(chan *dto.SendInfo, 8),
		reads:    make(chan *dto.SendInfo, 8),
		others:   make(chan *dto.SendInfo, 8),
		pushed:   make(chan struct{}, 8),
	}
}

func (s *fakeIMService) BindConnection(ctx context.Context, conn *im.Conn, auth *dto.ReadyAuth) error {
	if s.bindErr != nil {
		return s.bindErr
	}
	s.registry.BindUser(conn, "7", "7:"+auth.Client)
	return nil
}

func (s *fakeIMService) HandleMessage(ctx context.Context, conn *im.Conn, info *dto.SendInfo) error {
	s.messages <- info
	return nil
}

func (s *fakeIMService) HandleRead(ctx context.Context, info *dto.SendInfo) error {
	s.record("read")
	s.reads <- info
	return nil
}

func (s *fakeIMService) HandleOther(ctx context.Context, info *dto.SendInfo, raw []byte) {
	s.others <- info
}

func (s *fakeIMService) PushOffline(ctx context.Context, conn *im.Conn) {
	if s.pushDelay > 0 {
		time.Sleep(s.pushDelay)
	}
	s.record("replay")
	s.pushed <- struct{}{}
}

func (s *fakeIMService) Close() {}

func (s *fakeIMService) record(event string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = append(s.order, event)
}

func (s *fakeIMService) events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

type fakeLogRepo struct {
	mu      sync.Mutex
	entries []string
}

func (s *fakeLogRepo) Log(text, senderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, text)
}

func (s *fakeLogRepo) LogCollections(ctx context.Context) ([]string, error) { return nil, nil }
func (s *fakeLogRepo) Drop(ctx context.Context, collection string) error    { return nil }
func (s *fakeLogRepo) Close()                                               {}

func (s *fakeLogRepo) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

type wsTestEnv struct {
	srv      *httptest.Server
	imSvc    *fakeIMService
	logRepo  *fakeLogRepo
	registry *im.Registry
}

func newWsTestEnv(t *testing.T) *wsTestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry := im.NewRegistry()
	imSvc := newFakeIMService(registry)
	logRepo := &fakeLogRepo{}

	r := gin.New()
	r.GET("/api/im", NewWsHandler(imSvc, registry, logRepo).Connect)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &wsTestEnv{srv: srv, imSvc: imSvc, logRepo: logRepo, registry: registry}
}

func (e *wsTestEnv) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/api/im"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func readyFrame(t *testing.T) []byte {
	t.Helper()
	body, err := json.Marshal(&dto.ReadyAuth{Token: "tok", Client: "web", UUID: "u-1"})
	require.NoError(t, err)
	raw, err := json.Marshal(&dto.SendInfo{Code: consts.SendCodeReady, Message: body})
	require.NoError(t, err)
	return raw
}

func TestConnectPingPong(t *testing.T) {
	env := newWsTestEnv(t)
	ws := env.dial(t)

	// 心跳不需要认证
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(consts.Ping)))
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, consts.Pong, string(data))

	// 心跳不进入消息日志
	assert.Equal(t, 0, env.logRepo.count())
}

func TestConnectIgnoresUnboundFrames(t *testing.T) {
	env := newWsTestEnv(t)
	ws := env.dial(t)

	frame := `{"code":"message","message":{"chatId":"12","chatType":"friend","fromId":"7"}}`
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(frame)))

	// 连接保持存活，但帧没有被分发
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(consts.Ping)))
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, consts.Pong, string(data))
	assert.Empty(t, env.imSvc.messages)
}

func TestConnectReadyThenDispatch(t *testing.T) {
	env := newWsTestEnv(t)
	ws := env.dial(t)

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, readyFrame(t)))

	// 绑定完成后触发离线重放
	select {
	case <-env.imSvc.pushed:
	case <-time.After(2 * time.Second):
		t.Fatal("replay was not triggered after ready")
	}

	frame := `{"code":"message","message":{"chatId":"12","chatType":"friend","fromId":"7","content":"hi"}}`
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(frame)))

	select {
	case info := <-env.imSvc.messages:
		assert.Equal(t, consts.SendCodeMessage, info.Code)
	case <-time.After(2 * time.Second):
		t.Fatal("message frame was not dispatched")
	}

	readFrame := `{"code":"read","message":{"chatId":"12","fromId":"7","type":"friend"}}`
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(readFrame)))

	select {
	case info := <-env.imSvc.reads:
		assert.Equal(t, consts.SendCodeRead, info.Code)
	case <-time.After(2 * time.Second):
		t.Fatal("read frame was not dispatched")
	}

	otherFrame := `{"code":"friend-request","message":{"chatId":"12","chatType":"friend"}}`
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(otherFrame)))

	select {
	case info := <-env.imSvc.others:
		assert.Equal(t, consts.SendCodeFriendRequest, info.Code)
	case <-time.After(2 * time.Second):
		t.Fatal("signal frame was not dispatched")
	}
}

func TestConnectReplayBeforeSubsequentFrames(t *testing.T) {
	env := newWsTestEnv(t)
	env.imSvc.pushDelay = 150 * time.Millisecond
	ws := env.dial(t)

	// ready 后立即上报已读：重放在同一连接上先于后续帧处理，
	// 否则已读清理会把还没回捞的离线集合清掉
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, readyFrame(t)))
	readFrame := `{"code":"read","message":{"chatId":"12","fromId":"7","type":"friend"}}`
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(readFrame)))

	select {
	case <-env.imSvc.reads:
	case <-time.After(2 * time.Second):
		t.Fatal("read frame was not dispatched")
	}

	assert.Equal(t, []string{"replay", "read"}, env.imSvc.events())
}

func TestConnectBindFailureCloses(t *testing.T) {
	env := newWsTestEnv(t)
	env.imSvc.bindErr = assert.AnError
	ws := env.dial(t)

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, readyFrame(t)))

	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := ws.ReadMessage()
	assert.Error(t, err)
}

func TestConnectLogsInboundFrames(t *testing.T) {
	env := newWsTestEnv(t)
	ws := env.dial(t)

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, readyFrame(t)))
	select {
	case <-env.imSvc.pushed:
	case <-time.After(2 * time.Second):
		t.Fatal("replay was not triggered after ready")
	}

	assert.Eventually(t, func() bool {
		return env.logRepo.count() == 1
	}, 2*time.Second, 20*time.Millisecond)
}
