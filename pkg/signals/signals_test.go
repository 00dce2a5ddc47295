package signals

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"p2pmessage/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

func TestHubFanOut(t *testing.T) {
	hub := NewHub(4)
	all := hub.Subscribe()
	onlyTyping := hub.Subscribe(models.SignalTyping)
	defer all.Close()
	defer onlyTyping.Close()

	var who models.AgentKey
	who[0] = 9
	require.NoError(t, hub.Emit(context.Background(), models.ReceiptsArrived(nil)))
	require.NoError(t, hub.Emit(context.Background(), models.Typing(who, true)))

	first := <-all.C()
	assert.Equal(t, "RECEIVE_P2P_RECEIPT", first.Name)
	second := <-all.C()
	assert.Equal(t, "P2P_TYPING_SIGNAL", second.Name)

	got := <-onlyTyping.C()
	assert.Equal(t, models.SignalTyping, got.Payload.Kind)
	require.NotNil(t, got.Payload.IsTyping)
	assert.True(t, *got.Payload.IsTyping)
	assert.Equal(t, uint64(2), hub.Emitted())
}

func TestHubDropsWhenSubscriberFull(t *testing.T) {
	hub := NewHub(1)
	sub := hub.Subscribe()
	for i := 0; i < 3; i++ {
		require.NoError(t, hub.Emit(context.Background(), models.ReceiptsArrived(nil)))
	}
	assert.Equal(t, uint64(2), hub.Dropped())
	sub.Close()
	sub.Close()
	assert.Equal(t, 0, hub.Subscribers())
}

func TestHubCloseEndsSubscriptions(t *testing.T) {
	hub := NewHub(1)
	sub := hub.Subscribe()
	hub.Close()
	_, ok := <-sub.C()
	assert.False(t, ok)

	late := hub.Subscribe()
	_, ok = <-late.C()
	assert.False(t, ok)
}

func TestWebsocketStream(t *testing.T) {
	hub := NewHub(8)
	srv := httptest.NewServer(Handler(hub, HandlerOptions{APIKeys: []string{"secret"}}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?kinds=receipt"

	_, resp, err := websocket.Dial(ctx, url, nil)
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	c, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{"Bearer secret"}},
	})
	require.NoError(t, err)
	defer c.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	var who models.AgentKey
	require.NoError(t, hub.Emit(ctx, models.Typing(who, false)))
	var id models.ContentHash
	id[0] = 1
	require.NoError(t, hub.Emit(ctx, models.ReceiptsArrived(models.ReconciliationResult{id: {ID: id, Status: models.Sent()}})))

	var env Envelope
	require.NoError(t, wsjson.Read(ctx, c, &env))
	assert.Equal(t, "RECEIVE_P2P_RECEIPT", env.Name)
	assert.Contains(t, env.Payload.Receipts, id)
}

func TestParseKinds(t *testing.T) {
	kinds, err := parseKinds("message, typing")
	require.NoError(t, err)
	assert.Equal(t, []models.SignalKind{models.SignalMessage, models.SignalTyping}, kinds)
	_, err = parseKinds("bogus")
	require.Error(t, err)
}
