package usecase

import (
	"context"

	"github.com/k-negishi/todo-calendar-sync/internal/domain"
)

// TaskRepository リモートのタスクストアへのポート
type TaskRepository interface {
	ListTasks(ctx context.Context) ([]domain.Task, error)
	CreateTask(ctx context.Context, task domain.Task) (domain.Task, error)
	UpdateTask(ctx context.Context, task domain.Task) (domain.Task, error)
	DeleteTask(ctx context.Context, id domain.ID) error
}

// CategoryRepository リモートのカテゴリストアへのポート
type CategoryRepository interface {
	ListCategories(ctx context.Context) ([]domain.Category, error)
	CreateCategory(ctx context.Context, name, color string) (domain.Category, error)
	DeleteCategory(ctx context.Context, id domain.ID) error
}

// SnapshotCache 最後に取得できたスナップショットの保存先
type SnapshotCache interface {
	SaveTasks(ctx context.Context, tasks []domain.Task) error
	LoadTasks(ctx context.Context) ([]domain.Task, bool, error)
	SaveCategories(ctx context.Context, categories []domain.Category) error
	LoadCategories(ctx context.Context) ([]domain.Category, bool, error)
}

// AuthProvider 外部IDプロバイダーによるログインのポート
type AuthProvider interface {
	// Ready SDK（クライアント設定）が使える状態ならtrue
	Ready() bool
	Login(ctx context.Context, authCode string) (domain.User, error)
	Logout(ctx context.Context) error
	CurrentUser() (domain.User, bool)
}

// PlaceSearchProvider 地図の場所検索のポート
type PlaceSearchProvider interface {
	Search(ctx context.Context, keyword string) ([]domain.Place, error)
	// ReverseFocus 地図の中心を指定座標に移す
	ReverseFocus(loc domain.Location)
}

// AgendaNotifier 予定通知を送信するポート
type AgendaNotifier interface {
	SendAgendaNotification(ctx context.Context, todayTasks, tomorrowTasks []domain.Task) error
}
