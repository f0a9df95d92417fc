package gateway

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/k-negishi/todo-calendar-sync/internal/domain"
)

const (
	snapshotKindTasks      = "tasks"
	snapshotKindCategories = "categories"
)

const createSnapshotsTable = `
CREATE TABLE IF NOT EXISTS snapshots (
	kind       TEXT PRIMARY KEY,
	payload    TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`

// SQLiteSnapshotCache 最後に取得できたタスク・カテゴリをSQLiteに保存するSnapshotCacheの実装
type SQLiteSnapshotCache struct {
	db    *sql.DB
	clock func() time.Time
}

// NewSQLiteSnapshotCache dbPathのデータベースを開き、テーブルを作成する
func NewSQLiteSnapshotCache(dbPath string) (*SQLiteSnapshotCache, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("キャッシュDBのオープンに失敗しました: %w", err)
	}

	if _, err := db.Exec(createSnapshotsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("キャッシュテーブルの作成に失敗しました: %w", err)
	}

	return &SQLiteSnapshotCache{db: db, clock: time.Now}, nil
}

// Close データベースを閉じる
func (c *SQLiteSnapshotCache) Close() error {
	return c.db.Close()
}

func (c *SQLiteSnapshotCache) SaveTasks(ctx context.Context, tasks []domain.Task) error {
	return c.save(ctx, snapshotKindTasks, tasks)
}

func (c *SQLiteSnapshotCache) LoadTasks(ctx context.Context) ([]domain.Task, bool, error) {
	var tasks []domain.Task
	ok, err := c.load(ctx, snapshotKindTasks, &tasks)
	if err != nil || !ok {
		return nil, ok, err
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	return tasks, true, nil
}

func (c *SQLiteSnapshotCache) SaveCategories(ctx context.Context, categories []domain.Category) error {
	return c.save(ctx, snapshotKindCategories, categories)
}

func (c *SQLiteSnapshotCache) LoadCategories(ctx context.Context) ([]domain.Category, bool, error) {
	var categories []domain.Category
	ok, err := c.load(ctx, snapshotKindCategories, &categories)
	if err != nil || !ok {
		return nil, ok, err
	}
	if categories == nil {
		categories = []domain.Category{}
	}
	return categories, true, nil
}

// UpdatedAt 最後に保存した時刻
func (c *SQLiteSnapshotCache) UpdatedAt(ctx context.Context, kind string) (time.Time, bool, error) {
	var raw string
	err := c.db.QueryRowContext(ctx, `SELECT updated_at FROM snapshots WHERE kind = ?`, kind).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("キャッシュの読み込みに失敗しました (%s): %w", kind, err)
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("キャッシュの保存時刻の解析に失敗しました (%s): %w", kind, err)
	}
	return t, true, nil
}

// save kindの行をJSONで上書きする
func (c *SQLiteSnapshotCache) save(ctx context.Context, kind string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("キャッシュのJSON変換に失敗しました (%s): %w", kind, err)
	}

	query := `
	INSERT INTO snapshots (kind, payload, updated_at)
	VALUES (?, ?, ?)
	ON CONFLICT(kind) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`

	if _, err := c.db.ExecContext(ctx, query, kind, string(payload), c.clock().UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("キャッシュの保存に失敗しました (%s): %w", kind, err)
	}
	return nil
}

// load kindの行を読み込む。行がなければfalse
func (c *SQLiteSnapshotCache) load(ctx context.Context, kind string, out interface{}) (bool, error) {
	var payload string
	err := c.db.QueryRowContext(ctx, `SELECT payload FROM snapshots WHERE kind = ?`, kind).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("キャッシュの読み込みに失敗しました (%s): %w", kind, err)
	}
	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return false, fmt.Errorf("キャッシュのJSON解析に失敗しました (%s): %w", kind, err)
	}
	return true, nil
}
