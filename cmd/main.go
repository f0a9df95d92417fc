package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/k-negishi/todo-calendar-sync/internal/config"
	"github.com/k-negishi/todo-calendar-sync/internal/domain"
	"github.com/k-negishi/todo-calendar-sync/internal/gateway"
	"github.com/k-negishi/todo-calendar-sync/internal/usecase"
)

const (
	actionNotify  = "notify"
	actionPublish = "publish"
	actionICS     = "ics"
	actionLogin   = "login-url"
)

// LambdaEvent Lambda実行時のイベント構造体。EventBridge Schedulerからの実行ではActionは空
type LambdaEvent struct {
	Action    string `json:"action"`
	FilterTag string `json:"filterTag"`
	State     string `json:"state"`
}

// LambdaResponse Lambda実行結果のレスポンス
type LambdaResponse struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Body       string `json:"body,omitempty"`
}

// eventPublisher カレンダーイベントの反映先
type eventPublisher interface {
	Publish(ctx context.Context, events []domain.CalendarEvent) (int, error)
}

// loginURLProvider ログイン画面のURLを発行する
type loginURLProvider interface {
	Ready() bool
	AuthCodeURL(state string) string
}

// app 1回の実行で使う依存関係
type app struct {
	workspace *usecase.Workspace
	login     loginURLProvider
	agenda    *usecase.NotifyAgendaUseCase
	publisher eventPublisher
	exporter  *gateway.ICSExporter
	location  *time.Location
	clock     func() time.Time
}

// handler Lambda関数のメインハンドラー
func handler(ctx context.Context, event LambdaEvent) (LambdaResponse, error) {
	// 設定を読み込み
	cfg, err := config.Load()
	if err != nil {
		return LambdaResponse{
			StatusCode: 500,
			Message:    "設定読み込みエラー",
		}, err
	}

	if cfg.LogLevel == "DEBUG" {
		log.Printf("イベント受信: action=%q filterTag=%q", event.Action, event.FilterTag)
	}

	a, cleanup, err := newApp(ctx, cfg)
	if err != nil {
		log.Printf("初期化に失敗しました: %v", err)
		return LambdaResponse{
			StatusCode: 500,
			Message:    "初期化エラー",
		}, err
	}
	defer cleanup()

	return a.run(ctx, event)
}

// newApp 設定から依存関係を組み立てる
func newApp(ctx context.Context, cfg *config.Config) (*app, func(), error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, err
	}

	todoClient, err := gateway.NewTodoAPIClient(ctx, cfg.TodoAPIBaseURL, cfg.TodoAPIToken)
	if err != nil {
		return nil, nil, fmt.Errorf("todo APIクライアントの初期化に失敗しました: %v", err)
	}

	cleanup := func() {}
	var cache usecase.SnapshotCache
	if cfg.SnapshotDBPath != "" {
		sqliteCache, err := gateway.NewSQLiteSnapshotCache(cfg.SnapshotDBPath)
		if err != nil {
			// キャッシュがなくても動作は継続する
			log.Printf("Warning: キャッシュDBを開けません: %v", err)
		} else {
			cache = sqliteCache
			cleanup = func() {
				if err := sqliteCache.Close(); err != nil {
					log.Printf("Warning: キャッシュDBのクローズに失敗しました: %v", err)
				}
			}
		}
	}

	var places usecase.PlaceSearchProvider
	var login loginURLProvider
	if cfg.KakaoRESTAPIKey != "" {
		places = gateway.NewKakaoPlaceSearch(cfg.KakaoRESTAPIKey)
		login = gateway.NewKakaoAuth(cfg.KakaoRESTAPIKey, cfg.KakaoRedirectURL)
	}

	// サービストークンで動くため、ログインのゲートは使わない
	workspace := usecase.NewWorkspace(todoClient, todoClient, places, nil, cache, cfg.RequireLocation)

	a := &app{
		workspace: workspace,
		login:     login,
		exporter:  gateway.NewICSExporter(loc),
		location:  loc,
		clock:     time.Now,
	}

	if cfg.HasLINE() {
		notifier := gateway.NewLINENotifier(cfg.LineChannelAccessToken, cfg.LineUserID, loc)
		a.agenda = usecase.NewNotifyAgendaUseCase(workspace.Tasks, notifier, loc)
	}

	if cfg.HasGoogleCalendar() {
		if _, err := cfg.GetGoogleCredentialsJSON(); err != nil {
			cleanup()
			return nil, nil, err
		}
		publisher, err := gateway.NewGoogleCalendarPublisher(ctx, []byte(cfg.GoogleCredentials), cfg.CalendarID, loc)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		a.publisher = publisher
	}

	return a, cleanup, nil
}

// run アクションごとに処理を振り分ける
func (a *app) run(ctx context.Context, event LambdaEvent) (LambdaResponse, error) {
	action := strings.ToLower(strings.TrimSpace(event.Action))
	if action == "" {
		action = actionNotify
	}

	switch action {
	case actionNotify:
		return a.notify(ctx)
	case actionPublish:
		return a.publish(ctx, event.FilterTag)
	case actionICS:
		return a.exportICS(ctx, event.FilterTag)
	case actionLogin:
		return a.loginURL(event.State)
	default:
		return LambdaResponse{
			StatusCode: 400,
			Message:    "不明なアクションです: " + event.Action,
		}, nil
	}
}

// notify 今日と明日のタスクをLINEで通知
func (a *app) notify(ctx context.Context) (LambdaResponse, error) {
	if a.agenda == nil {
		return LambdaResponse{
			StatusCode: 400,
			Message:    "LINE通知が設定されていません",
		}, nil
	}

	// 設定したタイムゾーン基準で今日と明日の日付を計算
	now := a.clock().In(a.location)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, a.location)
	tomorrow := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, a.location)

	skipped, err := a.agenda.Execute(ctx, today, tomorrow)
	if err != nil {
		log.Printf("予定通知に失敗しました: %v", err)
		return LambdaResponse{
			StatusCode: 500,
			Message:    "予定通知エラー",
		}, err
	}

	if skipped {
		return LambdaResponse{
			StatusCode: 200,
			Message:    "予定なしのため通知スキップ",
		}, nil
	}
	return LambdaResponse{
		StatusCode: 200,
		Message:    "通知送信完了",
	}, nil
}

// publish 射影したイベントをGoogle Calendarに反映
func (a *app) publish(ctx context.Context, filterTag string) (LambdaResponse, error) {
	if a.publisher == nil {
		return LambdaResponse{
			StatusCode: 400,
			Message:    "Google Calendarが設定されていません",
		}, nil
	}

	events, resp, err := a.loadEvents(ctx, filterTag)
	if err != nil {
		return resp, err
	}

	count, err := a.publisher.Publish(ctx, events)
	if err != nil {
		log.Printf("Google Calendarへの反映に失敗しました: %v", err)
		return LambdaResponse{
			StatusCode: 500,
			Message:    fmt.Sprintf("Google Calendar反映エラー (%d件反映済み)", count),
		}, err
	}

	return LambdaResponse{
		StatusCode: 200,
		Message:    fmt.Sprintf("%d件反映しました", count),
	}, nil
}

// exportICS 射影したイベントをiCalendar形式で返す
func (a *app) exportICS(ctx context.Context, filterTag string) (LambdaResponse, error) {
	events, resp, err := a.loadEvents(ctx, filterTag)
	if err != nil {
		return resp, err
	}

	return LambdaResponse{
		StatusCode: 200,
		Message:    fmt.Sprintf("%d件出力しました", len(events)),
		Body:       a.exporter.Export(events),
	}, nil
}

// loginURL Kakaoログイン画面のURLを返す
func (a *app) loginURL(state string) (LambdaResponse, error) {
	if a.login == nil || !a.login.Ready() {
		return LambdaResponse{
			StatusCode: 400,
			Message:    "Kakaoログインが設定されていません",
		}, nil
	}
	if strings.TrimSpace(state) == "" {
		return LambdaResponse{
			StatusCode: 400,
			Message:    "stateを指定してください",
		}, nil
	}

	return LambdaResponse{
		StatusCode: 200,
		Message:    "ログインURLを発行しました",
		Body:       a.login.AuthCodeURL(state),
	}, nil
}

// loadEvents キャッシュで温めてからリモートを取得し、フィルターを適用したイベントを返す
func (a *app) loadEvents(ctx context.Context, filterTag string) ([]domain.CalendarEvent, LambdaResponse, error) {
	a.workspace.Warm(ctx)

	if err := a.workspace.Init(ctx); err != nil {
		if len(a.workspace.Tasks.List()) == 0 {
			log.Printf("タスクの取得に失敗しました: %v", err)
			return nil, LambdaResponse{
				StatusCode: 502,
				Message:    "タスク取得エラー",
			}, err
		}
		// キャッシュのスナップショットで続行する
		log.Printf("Warning: リモートの取得に失敗したためキャッシュを使用します: %v", err)
	}

	if filterTag = strings.TrimSpace(filterTag); filterTag != "" {
		if err := a.workspace.SetFilter(filterTag); err != nil {
			return nil, LambdaResponse{
				StatusCode: 400,
				Message:    "不明なカテゴリです: " + filterTag,
			}, nil
		}
	}

	return a.workspace.Events(), LambdaResponse{}, nil
}

func main() {
	lambda.Start(handler)
}
