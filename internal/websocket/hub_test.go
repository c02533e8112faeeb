package websocket_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chapter-server/internal/model"
	"chapter-server/internal/websocket"
	"chapter-server/internal/workflow"

	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHub_DeliversPlanEventsToSubscribers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := websocket.NewHub(nil, zap.NewNop())
	go hub.Run(ctx)

	router := gin.New()
	router.GET("/ws/plans/:planID", hub.ServePlan)
	srv := httptest.NewServer(router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/plans/plan-1"
	conn, _, err := gorilla.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Publish(ctx, workflow.StateEvent{PlanID: "other-plan", ChapterID: "chapter-1", State: model.ChapterDone}))
	require.NoError(t, hub.Publish(ctx, workflow.StateEvent{PlanID: "plan-1", ChapterIndex: 0, ChapterID: "chapter-1", State: model.ChapterGenerating}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		Type    string              `json:"type"`
		Topic   string              `json:"topic"`
		Payload workflow.StateEvent `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, websocket.MessageTypeChapterState, msg.Type)
	assert.Equal(t, "plan-1", msg.Topic)
	assert.Equal(t, "chapter-1", msg.Payload.ChapterID)
	assert.Equal(t, model.ChapterGenerating, msg.Payload.State)
}

func TestHub_RejectsForeignOrigin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := websocket.NewHub([]string{"http://localhost:5173"}, zap.NewNop())

	router := gin.New()
	router.GET("/ws/plans/:planID", hub.ServePlan)
	srv := httptest.NewServer(router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/plans/plan-1"
	header := map[string][]string{"Origin": {"http://evil.example"}}
	_, resp, err := gorilla.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 403, resp.StatusCode)
}
