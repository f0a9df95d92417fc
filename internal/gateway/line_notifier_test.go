package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/k-negishi/todo-calendar-sync/internal/domain"
	"github.com/k-negishi/todo-calendar-sync/internal/usecase"
)

var _ usecase.AgendaNotifier = (*LINENotifier)(nil)

var kst = time.FixedZone("KST", 9*60*60)

// newTestLINENotifier テスト用の LINENotifier を構築するヘルパー
func newTestLINENotifier(token, userID string, httpClient *http.Client, endpoint string, clock func() time.Time) *LINENotifier {
	return &LINENotifier{
		channelAccessToken: token,
		userID:             userID,
		httpClient:         httpClient,
		endpoint:           endpoint,
		clock:              clock,
		location:           kst,
	}
}

// --- getWeekdayJapanese テスト ---

func TestGetWeekdayJapanese(t *testing.T) {
	tests := []struct {
		weekday  time.Weekday
		expected string
	}{
		{time.Sunday, "日"},
		{time.Monday, "月"},
		{time.Tuesday, "火"},
		{time.Wednesday, "水"},
		{time.Thursday, "木"},
		{time.Friday, "金"},
		{time.Saturday, "土"},
	}

	for _, tt := range tests {
		t.Run(tt.weekday.String(), func(t *testing.T) {
			assert.Equal(t, tt.expected, getWeekdayJapanese(tt.weekday))
		})
	}
}

// --- buildAgendaMessage テスト ---

func TestBuildAgendaMessage_WithTasks(t *testing.T) {
	fixedTime := time.Date(2024, 1, 15, 9, 0, 0, 0, kst)

	n := newTestLINENotifier("token", "user", http.DefaultClient, "", func() time.Time {
		return fixedTime
	})

	todayTasks := []domain.Task{
		{Title: "朝会", Date: "2024-01-15T09:00", End: "2024-01-15T09:30", Tag: "Work"},
	}
	tomorrowTasks := []domain.Task{
		{Title: "歯医者", Date: "2024-01-16T15:00", End: "2024-01-16T16:00"},
		{Title: "夕食", Date: "2024-01-16T19:00", End: "2024-01-16T21:00"},
	}

	message := n.buildAgendaMessage(todayTasks, tomorrowTasks)

	assert.Contains(t, message, "Todo Calendar")
	assert.Contains(t, message, "本日 1/15(月) (1件)")
	assert.Contains(t, message, "09:00〜09:30 朝会 [Work]")
	assert.Contains(t, message, "翌日 1/16(火) (2件)")
	assert.Contains(t, message, "15:00〜16:00 歯医者\n")
}

func TestBuildAgendaMessage_NoTasks(t *testing.T) {
	// UTCでは日曜だが表示はKST基準
	fixedTime := time.Date(2024, 1, 14, 20, 0, 0, 0, time.UTC)

	n := newTestLINENotifier("token", "user", http.DefaultClient, "", func() time.Time {
		return fixedTime
	})

	message := n.buildAgendaMessage(nil, nil)

	assert.Contains(t, message, "本日 1/15(月): 予定なし")
	assert.Contains(t, message, "翌日 1/16(火): 予定なし")
}

// --- appendTaskToMessage テスト ---

func TestAppendTaskToMessage_TimedTask(t *testing.T) {
	var builder strings.Builder

	task := domain.Task{
		Title:    "定例ミーティング",
		Date:     "2024-01-15T01:00:00Z",
		End:      "2024-01-15T02:00:00Z",
		Category: &domain.CategoryRef{ID: "3", Name: "Work"},
	}

	appendTaskToMessage(&builder, task, kst)

	result := builder.String()
	assert.Contains(t, result, "10:00〜11:00")
	assert.Contains(t, result, "定例ミーティング [Work]")
	assert.NotContains(t, result, "📍")
}

func TestAppendTaskToMessage_WithLocation(t *testing.T) {
	var builder strings.Builder

	task := domain.Task{
		Title:        "外部ミーティング",
		Date:         "2024-01-15T14:00",
		End:          "2024-01-15T15:00",
		LocationName: "서울역",
	}

	appendTaskToMessage(&builder, task, kst)

	result := builder.String()
	assert.Contains(t, result, "外部ミーティング")
	assert.Contains(t, result, "📍 서울역")
}

func TestAppendTaskToMessage_MissingEnd(t *testing.T) {
	var builder strings.Builder

	appendTaskToMessage(&builder, domain.Task{Title: "締切", Date: "2024-01-15T18:00"}, kst)

	assert.Equal(t, "🔸 18:00〜 締切\n", builder.String())
}

// --- sendPushMessage テスト（httptest 使用） ---

func TestSendPushMessage_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// ヘッダーを検証
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		// リクエストボディを検証
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var pushReq linePushRequest
		err = json.Unmarshal(body, &pushReq)
		require.NoError(t, err)
		assert.Equal(t, "test-user", pushReq.To)
		assert.Len(t, pushReq.Messages, 1)
		assert.Equal(t, "text", pushReq.Messages[0].Type)

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := newTestLINENotifier("test-token", "test-user", server.Client(), server.URL, time.Now)

	err := n.sendPushMessage(context.Background(), "テストメッセージ")
	assert.NoError(t, err)
}

func TestSendPushMessage_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		err := json.NewEncoder(w).Encode(lineErrorResponse{
			Message: "Invalid request",
		})
		require.NoError(t, err)
	}))
	defer server.Close()

	n := newTestLINENotifier("test-token", "test-user", server.Client(), server.URL, time.Now)

	err := n.sendPushMessage(context.Background(), "テストメッセージ")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "LINE API呼び出しが失敗しました")
}

func TestSendAgendaNotification(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var pushReq linePushRequest
		err = json.Unmarshal(body, &pushReq)
		require.NoError(t, err)

		// メッセージが構築されていることを確認
		assert.Contains(t, pushReq.Messages[0].Text, "Todo Calendar")
		assert.Contains(t, pushReq.Messages[0].Text, "10:00〜11:00 テストイベント")

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	fixedTime := time.Date(2024, 1, 15, 9, 0, 0, 0, kst)

	n := newTestLINENotifier("test-token", "test-user", server.Client(), server.URL, func() time.Time {
		return fixedTime
	})

	todayTasks := []domain.Task{
		{Title: "テストイベント", Date: "2024-01-15T10:00", End: "2024-01-15T11:00"},
	}

	err := n.SendAgendaNotification(context.Background(), todayTasks, nil)
	assert.NoError(t, err)
}
