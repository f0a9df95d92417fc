package usecase

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/k-negishi/todo-calendar-sync/internal/apperr"
	"github.com/k-negishi/todo-calendar-sync/internal/domain"
)

// fakeRemote タスクとカテゴリを保持するインメモリのリモート。後勝ちで上書きする
type fakeRemote struct {
	mu         sync.Mutex
	nextID     int
	tasks      []domain.Task
	categories []domain.Category
	calls      []string

	failList   error
	failCreate error
	failUpdate error
	failDelete error
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{nextID: 1}
}

func (f *fakeRemote) id() domain.ID {
	id := domain.ID(strconv.Itoa(f.nextID))
	f.nextID++
	return id
}

func (f *fakeRemote) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeRemote) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeRemote) countCalls(name string) int {
	n := 0
	for _, c := range f.callLog() {
		if c == name {
			n++
		}
	}
	return n
}

func (f *fakeRemote) seedCategory(name, color string) domain.Category {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := domain.Category{ID: f.id(), Name: name, Color: color}
	f.categories = append(f.categories, c)
	return c
}

func (f *fakeRemote) seedTask(t domain.Task) domain.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	t.ID = f.id()
	f.tasks = append(f.tasks, t.Clone())
	return t
}

func (f *fakeRemote) task(id domain.ID) (domain.Task, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tasks {
		if t.ID == id {
			return t.Clone(), true
		}
	}
	return domain.Task{}, false
}

func (f *fakeRemote) ListTasks(_ context.Context) ([]domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListTasks")
	if f.failList != nil {
		return nil, f.failList
	}
	return domain.CloneTasks(f.tasks), nil
}

func (f *fakeRemote) CreateTask(_ context.Context, task domain.Task) (domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreateTask")
	if f.failCreate != nil {
		return domain.Task{}, f.failCreate
	}
	task.ID = f.id()
	f.tasks = append(f.tasks, task.Clone())
	return task, nil
}

func (f *fakeRemote) UpdateTask(_ context.Context, task domain.Task) (domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("UpdateTask")
	if f.failUpdate != nil {
		return domain.Task{}, f.failUpdate
	}
	for i, t := range f.tasks {
		if t.ID == task.ID {
			f.tasks[i] = task.Clone()
			return task, nil
		}
	}
	return domain.Task{}, fmt.Errorf("PUT tasks/%s/: %w", task.ID, apperr.ErrRemoteNotFound)
}

func (f *fakeRemote) DeleteTask(_ context.Context, id domain.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteTask")
	if f.failDelete != nil {
		return f.failDelete
	}
	for i, t := range f.tasks {
		if t.ID == id {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("DELETE tasks/%s/: %w", id, apperr.ErrRemoteNotFound)
}

func (f *fakeRemote) ListCategories(_ context.Context) ([]domain.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListCategories")
	if f.failList != nil {
		return nil, f.failList
	}
	return append([]domain.Category(nil), f.categories...), nil
}

func (f *fakeRemote) CreateCategory(_ context.Context, name, color string) (domain.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreateCategory")
	if f.failCreate != nil {
		return domain.Category{}, f.failCreate
	}
	c := domain.Category{ID: f.id(), Name: name, Color: color}
	f.categories = append(f.categories, c)
	return c, nil
}

// DeleteCategory 削除したカテゴリを参照するタスクのカテゴリは空になる（SET_NULL相当）
func (f *fakeRemote) DeleteCategory(_ context.Context, id domain.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteCategory")
	if f.failDelete != nil {
		return f.failDelete
	}
	for i, c := range f.categories {
		if c.ID != id {
			continue
		}
		f.categories = append(f.categories[:i], f.categories[i+1:]...)
		for j, t := range f.tasks {
			if t.Category != nil && t.Category.ID == id {
				f.tasks[j].Category = nil
				f.tasks[j].Tag = ""
			}
		}
		return nil
	}
	return fmt.Errorf("DELETE categories/%s/: %w", id, apperr.ErrRemoteNotFound)
}

// fakeCache メモリ上のスナップショットキャッシュ
type fakeCache struct {
	tasks      []domain.Task
	categories []domain.Category
	saveErr    error
}

func (c *fakeCache) SaveTasks(_ context.Context, tasks []domain.Task) error {
	if c.saveErr != nil {
		return c.saveErr
	}
	c.tasks = domain.CloneTasks(tasks)
	return nil
}

func (c *fakeCache) LoadTasks(_ context.Context) ([]domain.Task, bool, error) {
	if c.tasks == nil {
		return nil, false, nil
	}
	return domain.CloneTasks(c.tasks), true, nil
}

func (c *fakeCache) SaveCategories(_ context.Context, categories []domain.Category) error {
	if c.saveErr != nil {
		return c.saveErr
	}
	c.categories = append([]domain.Category(nil), categories...)
	return nil
}

func (c *fakeCache) LoadCategories(_ context.Context) ([]domain.Category, bool, error) {
	if c.categories == nil {
		return nil, false, nil
	}
	return append([]domain.Category(nil), c.categories...), true, nil
}

// MockTaskRepository は TaskRepository のテスト用モック
type MockTaskRepository struct {
	mock.Mock
}

func (m *MockTaskRepository) ListTasks(ctx context.Context) ([]domain.Task, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Task), args.Error(1)
}

func (m *MockTaskRepository) CreateTask(ctx context.Context, task domain.Task) (domain.Task, error) {
	args := m.Called(ctx, task)
	return args.Get(0).(domain.Task), args.Error(1)
}

func (m *MockTaskRepository) UpdateTask(ctx context.Context, task domain.Task) (domain.Task, error) {
	args := m.Called(ctx, task)
	return args.Get(0).(domain.Task), args.Error(1)
}

func (m *MockTaskRepository) DeleteTask(ctx context.Context, id domain.ID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockCategoryRepository は CategoryRepository のテスト用モック
type MockCategoryRepository struct {
	mock.Mock
}

func (m *MockCategoryRepository) ListCategories(ctx context.Context) ([]domain.Category, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Category), args.Error(1)
}

func (m *MockCategoryRepository) CreateCategory(ctx context.Context, name, color string) (domain.Category, error) {
	args := m.Called(ctx, name, color)
	return args.Get(0).(domain.Category), args.Error(1)
}

func (m *MockCategoryRepository) DeleteCategory(ctx context.Context, id domain.ID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockPlaceSearchProvider は PlaceSearchProvider のテスト用モック
type MockPlaceSearchProvider struct {
	mock.Mock
}

func (m *MockPlaceSearchProvider) Search(ctx context.Context, keyword string) ([]domain.Place, error) {
	args := m.Called(ctx, keyword)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Place), args.Error(1)
}

func (m *MockPlaceSearchProvider) ReverseFocus(loc domain.Location) {
	m.Called(loc)
}

// MockAuthProvider は AuthProvider のテスト用モック
type MockAuthProvider struct {
	mock.Mock
}

func (m *MockAuthProvider) Ready() bool {
	return m.Called().Bool(0)
}

func (m *MockAuthProvider) Login(ctx context.Context, authCode string) (domain.User, error) {
	args := m.Called(ctx, authCode)
	return args.Get(0).(domain.User), args.Error(1)
}

func (m *MockAuthProvider) Logout(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockAuthProvider) CurrentUser() (domain.User, bool) {
	args := m.Called()
	return args.Get(0).(domain.User), args.Bool(1)
}

// MockAgendaNotifier は AgendaNotifier のテスト用モック
type MockAgendaNotifier struct {
	mock.Mock
}

func (m *MockAgendaNotifier) SendAgendaNotification(ctx context.Context, todayTasks, tomorrowTasks []domain.Task) error {
	args := m.Called(ctx, todayTasks, tomorrowTasks)
	return args.Error(0)
}
