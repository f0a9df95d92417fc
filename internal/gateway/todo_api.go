package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/k-negishi/todo-calendar-sync/internal/apperr"
	"github.com/k-negishi/todo-calendar-sync/internal/domain"
)

// DefaultTodoAPIBaseURL ローカル開発用のtodo APIのURL
const DefaultTodoAPIBaseURL = "http://localhost:8000/api/"

// TodoAPIClient REST todo APIを使用したTaskRepository・CategoryRepositoryの実装
type TodoAPIClient struct {
	baseURL    *url.URL
	httpClient *http.Client

	mu            sync.RWMutex
	categoryNames map[domain.ID]string
}

// flexID 数値・文字列どちらのJSONでも受け取れるID
type flexID domain.ID

// categoryWire カテゴリのJSON表現
type categoryWire struct {
	ID    flexID `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// categoryRefWire タスクに埋め込まれるカテゴリ参照
type categoryRefWire struct {
	ID   flexID `json:"id"`
	Name string `json:"name,omitempty"`
}

// taskWire サーバーから返るタスクのJSON表現
type taskWire struct {
	ID           flexID          `json:"id"`
	Title        string          `json:"title"`
	Date         string          `json:"date"`
	End          string          `json:"end"`
	Tag          string          `json:"tag"`
	Category     json.RawMessage `json:"category"`
	Location     json.RawMessage `json:"location"`
	LocationName string          `json:"location_name"`
}

// taskPayload 作成・更新時に送るタスクのJSON表現。locationはJSON文字列で送る
type taskPayload struct {
	Title        string           `json:"title"`
	Date         string           `json:"date"`
	End          string           `json:"end"`
	Tag          string           `json:"tag"`
	Category     *categoryRefWire `json:"category"`
	Location     *string          `json:"location"`
	LocationName string           `json:"location_name"`
}

// createCategoryRequest カテゴリ作成リクエスト
type createCategoryRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// todoErrorResponse DRF形式のエラーレスポンス
type todoErrorResponse struct {
	Detail string `json:"detail"`
}

// NewTodoAPIClient todo APIクライアントを作成。tokenが空でなければBearer認証を付ける
func NewTodoAPIClient(ctx context.Context, baseURL, token string) (*TodoAPIClient, error) {
	base, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}
	if token != "" {
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: token,
			TokenType:   "Bearer",
		}))
		httpClient.Timeout = 30 * time.Second
	}

	return newTodoAPIClientWithHTTPClient(base, httpClient), nil
}

func newTodoAPIClientWithHTTPClient(base *url.URL, httpClient *http.Client) *TodoAPIClient {
	return &TodoAPIClient{
		baseURL:       base,
		httpClient:    httpClient,
		categoryNames: map[domain.ID]string{},
	}
}

// parseBaseURL 絶対URLであることを確認し、末尾を"/"に揃える
func parseBaseURL(raw string) (*url.URL, error) {
	if strings.TrimSpace(raw) == "" {
		raw = DefaultTodoAPIBaseURL
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("todo APIのURLの解析に失敗しました: %v", err)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("todo APIのURLは絶対URLで指定してください: %s", raw)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u, nil
}

// ListTasks 全タスクを取得
func (c *TodoAPIClient) ListTasks(ctx context.Context) ([]domain.Task, error) {
	var wires []taskWire
	if err := c.do(ctx, http.MethodGet, "tasks/", nil, &wires); err != nil {
		return nil, err
	}

	tasks := make([]domain.Task, 0, len(wires))
	for _, w := range wires {
		tasks = append(tasks, c.toTask(w))
	}
	return tasks, nil
}

// CreateTask タスクを作成
func (c *TodoAPIClient) CreateTask(ctx context.Context, task domain.Task) (domain.Task, error) {
	payload, err := newTaskPayload(task)
	if err != nil {
		return domain.Task{}, err
	}

	var created taskWire
	if err := c.do(ctx, http.MethodPost, "tasks/", payload, &created); err != nil {
		return domain.Task{}, err
	}
	return c.mergeSaved(task, created), nil
}

// UpdateTask タスクを更新
func (c *TodoAPIClient) UpdateTask(ctx context.Context, task domain.Task) (domain.Task, error) {
	if task.ID.IsZero() {
		return domain.Task{}, fmt.Errorf("更新するタスクのIDがありません")
	}
	payload, err := newTaskPayload(task)
	if err != nil {
		return domain.Task{}, err
	}

	var updated taskWire
	if err := c.do(ctx, http.MethodPut, resourcePath("tasks", task.ID), payload, &updated); err != nil {
		return domain.Task{}, err
	}
	return c.mergeSaved(task, updated), nil
}

// DeleteTask タスクを削除
func (c *TodoAPIClient) DeleteTask(ctx context.Context, id domain.ID) error {
	return c.do(ctx, http.MethodDelete, resourcePath("tasks", id), nil, nil)
}

// ListCategories 全カテゴリを取得し、タスクのカテゴリID解決用に名前を覚えておく
func (c *TodoAPIClient) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var wires []categoryWire
	if err := c.do(ctx, http.MethodGet, "categories/", nil, &wires); err != nil {
		return nil, err
	}

	categories := make([]domain.Category, 0, len(wires))
	names := make(map[domain.ID]string, len(wires))
	for _, w := range wires {
		categories = append(categories, domain.Category{ID: domain.ID(w.ID), Name: w.Name, Color: w.Color})
		names[domain.ID(w.ID)] = w.Name
	}

	c.mu.Lock()
	c.categoryNames = names
	c.mu.Unlock()

	return categories, nil
}

// CreateCategory カテゴリを作成
func (c *TodoAPIClient) CreateCategory(ctx context.Context, name, color string) (domain.Category, error) {
	var created categoryWire
	if err := c.do(ctx, http.MethodPost, "categories/", createCategoryRequest{Name: name, Color: color}, &created); err != nil {
		return domain.Category{}, err
	}

	category := domain.Category{ID: domain.ID(created.ID), Name: created.Name, Color: created.Color}
	if category.Name == "" {
		category.Name = name
	}
	if category.Color == "" {
		category.Color = color
	}
	return category, nil
}

// DeleteCategory カテゴリを削除
func (c *TodoAPIClient) DeleteCategory(ctx context.Context, id domain.ID) error {
	return c.do(ctx, http.MethodDelete, resourcePath("categories", id), nil, nil)
}

// resourcePath 個別リソースのパス。IDはエスケープ済みの1セグメントとして埋め込む
func resourcePath(collection string, id domain.ID) string {
	return collection + "/" + url.PathEscape(string(id)) + "/"
}

// do リクエストを送信し、2xx以外はエラーにする。404はapperr.ErrRemoteNotFoundを包む。pathはエスケープ済みの相対パス
func (c *TodoAPIClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	ref, err := url.Parse(path)
	if err != nil {
		return fmt.Errorf("リクエストパスの解析に失敗しました (%s): %v", path, err)
	}
	endpoint := c.baseURL.ResolveReference(ref)

	var reader io.Reader
	if body != nil {
		requestBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("リクエストボディのJSON変換に失敗しました: %v", err)
		}
		reader = bytes.NewReader(requestBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %v", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("todo APIリクエストの送信に失敗しました (%s %s): %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(method, path, resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("todo APIレスポンスの解析に失敗しました (%s %s): %v", method, path, err)
	}
	return nil
}

// statusError ステータスとdetailを含むエラーを作る
func statusError(method, path string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	detail := strings.TrimSpace(string(raw))
	var errorResponse todoErrorResponse
	if json.Unmarshal(raw, &errorResponse) == nil && errorResponse.Detail != "" {
		detail = errorResponse.Detail
	}

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("todo API呼び出しが失敗しました (%s %s, Status: %d): %s: %w", method, path, resp.StatusCode, detail, apperr.ErrRemoteNotFound)
	}
	return fmt.Errorf("todo API呼び出しが失敗しました (%s %s, Status: %d): %s", method, path, resp.StatusCode, detail)
}

// toTask サーバーのJSONをドメインのタスクに変換
func (c *TodoAPIClient) toTask(w taskWire) domain.Task {
	task := domain.Task{
		ID:           domain.ID(w.ID),
		Title:        w.Title,
		Date:         w.Date,
		End:          w.End,
		Tag:          w.Tag,
		Category:     c.decodeCategoryRef(w.Category),
		LocationName: w.LocationName,
	}

	loc, err := decodeLocation(w.Location)
	if err != nil {
		log.Printf("Warning: タスク %s の位置情報を解析できませんでした: %v", w.ID, err)
	}
	task.Location = loc
	return task
}

// mergeSaved 保存レスポンスを送信したタスクに重ねる。レスポンスが空でも送信内容は残す
func (c *TodoAPIClient) mergeSaved(sent domain.Task, w taskWire) domain.Task {
	saved := sent.Clone()
	if !domain.ID(w.ID).IsZero() {
		saved.ID = domain.ID(w.ID)
	}
	if w.Title != "" {
		saved.Title = w.Title
	}
	if w.Date != "" {
		saved.Date = w.Date
	}
	if w.End != "" {
		saved.End = w.End
	}
	if ref := c.decodeCategoryRef(w.Category); ref != nil {
		saved.Category = ref
	}
	return saved
}

// decodeCategoryRef null・ID・{id, name}のいずれかを解釈する
func (c *TodoAPIClient) decodeCategoryRef(raw json.RawMessage) *domain.CategoryRef {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	if raw[0] == '{' {
		var ref categoryRefWire
		if err := json.Unmarshal(raw, &ref); err != nil {
			log.Printf("Warning: カテゴリ参照を解析できませんでした: %v", err)
			return nil
		}
		out := &domain.CategoryRef{ID: domain.ID(ref.ID), Name: ref.Name}
		if out.Name == "" {
			out.Name = c.categoryName(out.ID)
		}
		return out
	}

	var id flexID
	if err := json.Unmarshal(raw, &id); err != nil {
		log.Printf("Warning: カテゴリIDを解析できませんでした: %v", err)
		return nil
	}
	return &domain.CategoryRef{ID: domain.ID(id), Name: c.categoryName(domain.ID(id))}
}

func (c *TodoAPIClient) categoryName(id domain.ID) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.categoryNames[id]
}

// decodeLocation null・空文字・オブジェクト・JSON文字列のいずれかを解釈する
func decodeLocation(raw json.RawMessage) (*domain.Location, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	if raw[0] == '"' {
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil {
			return nil, err
		}
		encoded = strings.TrimSpace(encoded)
		if encoded == "" || encoded == "null" {
			return nil, nil
		}
		raw = json.RawMessage(encoded)
	}

	var loc domain.Location
	if err := json.Unmarshal(raw, &loc); err != nil {
		return nil, err
	}
	return &loc, nil
}

// newTaskPayload 送信用のJSONを組み立てる
func newTaskPayload(task domain.Task) (taskPayload, error) {
	payload := taskPayload{
		Title:        task.Title,
		Date:         task.Date,
		End:          task.End,
		Tag:          task.ResolvedTag(),
		LocationName: task.LocationName,
	}
	if task.Category != nil && !task.Category.ID.IsZero() {
		payload.Category = &categoryRefWire{ID: flexID(task.Category.ID), Name: task.Category.Name}
	}
	if task.Location != nil {
		encoded, err := json.Marshal(task.Location)
		if err != nil {
			return taskPayload{}, fmt.Errorf("位置情報のJSON変換に失敗しました: %v", err)
		}
		s := string(encoded)
		payload.Location = &s
	}
	return payload, nil
}

// UnmarshalJSON 数値・文字列・nullを受け付ける
func (id *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = flexID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("IDの形式が不正です: %s", data)
	}
	*id = flexID(n.String())
	return nil
}

// MarshalJSON 整数として解釈できる場合は数値で出力する
func (id flexID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}
