package usecase

import (
	"context"
	"log"
	"strings"
	"sync"

	"github.com/k-negishi/todo-calendar-sync/internal/apperr"
	"github.com/k-negishi/todo-calendar-sync/internal/calendar"
	"github.com/k-negishi/todo-calendar-sync/internal/domain"
)

// TaskRetagger カテゴリ削除時にタスクを付け替えるためのポート
type TaskRetagger interface {
	Retag(ctx context.Context, from, to string, toID domain.ID) (int, error)
	Refresh(ctx context.Context) error
}

// CategoryStore カテゴリ一覧と表示中のフィルターを保持する
type CategoryStore struct {
	repo  CategoryRepository
	tasks TaskRetagger
	cache SnapshotCache

	mu         sync.RWMutex
	categories []domain.Category
	filter     string
}

// NewCategoryStore カテゴリストアを作成。cacheはnilでもよい
func NewCategoryStore(repo CategoryRepository, tasks TaskRetagger, cache SnapshotCache) *CategoryStore {
	return &CategoryStore{
		repo:       repo,
		tasks:      tasks,
		cache:      cache,
		categories: []domain.Category{},
		filter:     domain.AllCategoryName,
	}
}

// List 合成カテゴリを先頭に付けた一覧を返す
func (s *CategoryStore) List() []domain.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Category, 0, len(s.categories)+1)
	out = append(out, domain.AllCategory())
	return append(out, s.categories...)
}

// Persisted 合成カテゴリを除いた一覧を返す
func (s *CategoryStore) Persisted() []domain.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Category(nil), s.categories...)
}

// ActiveFilter 表示中のフィルタータグ
func (s *CategoryStore) ActiveFilter() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter
}

// SetFilter フィルターを切り替える。合成カテゴリか既存のカテゴリ名のみ
func (s *CategoryStore) SetFilter(tag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tag != domain.AllCategoryName {
		if _, ok := domain.FindCategory(s.categories, tag); !ok {
			return apperr.NewNotFoundError("category", tag)
		}
	}
	s.filter = tag
	return nil
}

// Refresh リモートから取得して置き換える。サーバー側に合成カテゴリ名があっても取り込まない
func (s *CategoryStore) Refresh(ctx context.Context) error {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		log.Printf("カテゴリ一覧の取得に失敗しました: %v", err)
		return apperr.NewRemoteFetchError("カテゴリ一覧", err)
	}

	persisted := make([]domain.Category, 0, len(categories))
	for _, c := range categories {
		if c.IsSynthetic() {
			continue
		}
		persisted = append(persisted, c)
	}

	s.mu.Lock()
	s.categories = persisted
	s.mu.Unlock()

	if s.cache != nil {
		if err := s.cache.SaveCategories(ctx, persisted); err != nil {
			log.Printf("カテゴリのキャッシュ保存に失敗しました: %v", err)
		}
	}
	return nil
}

// Warm 一覧が空の場合のみキャッシュから読み込む
func (s *CategoryStore) Warm(ctx context.Context) bool {
	if s.cache == nil {
		return false
	}
	categories, ok, err := s.cache.LoadCategories(ctx)
	if err != nil {
		log.Printf("カテゴリのキャッシュ読み込みに失敗しました: %v", err)
		return false
	}
	if !ok {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.categories) > 0 {
		return false
	}
	s.categories = append([]domain.Category(nil), categories...)
	return true
}

// Add カテゴリを追加する。空名・重複名は通信せずに拒否する
func (s *CategoryStore) Add(ctx context.Context, name, color string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return apperr.NewValidationError("name", "カテゴリ名を入力してください")
	}
	if name == domain.AllCategoryName {
		return apperr.NewValidationError("name", "予約済みのカテゴリ名です: "+name)
	}
	if _, ok := domain.FindCategory(s.Persisted(), name); ok {
		return apperr.NewValidationError("name", "同じ名前のカテゴリがあります: "+name)
	}

	if strings.TrimSpace(color) == "" {
		color = domain.DefaultCategoryColor
	}
	if _, _, _, ok := calendar.ParseHexColor(color); !ok {
		return apperr.NewValidationError("color", "色は6桁の16進数で指定してください: "+color)
	}

	if _, err := s.repo.CreateCategory(ctx, name, color); err != nil {
		log.Printf("カテゴリの追加に失敗しました: %v", err)
		return apperr.NewPersistenceError("カテゴリの追加", err)
	}

	if err := s.Refresh(ctx); err != nil {
		log.Printf("カテゴリ追加後の再取得に失敗しました: %v", err)
	}
	return nil
}

// Remove カテゴリを削除し、そのタグのタスクを既定カテゴリへ付け替える
func (s *CategoryStore) Remove(ctx context.Context, name string) error {
	if name == domain.AllCategoryName {
		return apperr.NewValidationError("name", "「"+name+"」は削除できません")
	}

	target, ok := domain.FindCategory(s.Persisted(), name)
	if !ok {
		if err := s.Refresh(ctx); err != nil {
			log.Printf("不一致検出後の再取得に失敗しました: %v", err)
		}
		return apperr.NewNotFoundError("category", name)
	}

	if err := s.repo.DeleteCategory(ctx, target.ID); err != nil {
		log.Printf("カテゴリの削除に失敗しました: %v", err)
		return apperr.NewPersistenceError("カテゴリの削除", err)
	}

	// タスクの付け替えより先にカテゴリを確定させる
	if err := s.Refresh(ctx); err != nil {
		log.Printf("カテゴリ削除後の再取得に失敗しました: %v", err)
		s.dropLocal(target.ID)
	}

	s.mu.Lock()
	if s.filter == name {
		s.filter = domain.AllCategoryName
	}
	s.mu.Unlock()

	if s.tasks == nil {
		return nil
	}

	defaultName, defaultID := "", domain.ID("")
	if def, ok := domain.FindCategory(s.Persisted(), domain.DefaultCategoryName); ok {
		defaultName, defaultID = def.Name, def.ID
	}

	_, retagErr := s.tasks.Retag(ctx, name, defaultName, defaultID)
	if err := s.tasks.Refresh(ctx); err != nil {
		log.Printf("タグ変更後のタスク再取得に失敗しました: %v", err)
	}
	return retagErr
}

// Reorder List()上の位置fromの要素をtoへ移す。サーバーには送らない
func (s *CategoryStore) Reorder(fromIndex, toIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// List()の先頭は合成カテゴリで固定
	n := len(s.categories)
	if fromIndex < 1 || fromIndex > n || toIndex < 1 || toIndex > n {
		return apperr.NewValidationError("index", "並べ替えの位置が範囲外です")
	}

	from, to := fromIndex-1, toIndex-1
	reordered := append([]domain.Category(nil), s.categories...)
	moved := reordered[from]
	reordered = append(reordered[:from], reordered[from+1:]...)
	reordered = append(reordered[:to], append([]domain.Category{moved}, reordered[to:]...)...)
	s.categories = reordered
	return nil
}

// dropLocal 削除が確定したカテゴリをスナップショットから外す
func (s *CategoryStore) dropLocal(id domain.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := make([]domain.Category, 0, len(s.categories))
	for _, c := range s.categories {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	s.categories = kept
}
