package domain

const (
	// AllCategoryName フィルター専用の合成カテゴリ名（サーバーには送らない）
	AllCategoryName = "전체"
	// DefaultCategoryName タグが解決できない場合のカテゴリ名
	DefaultCategoryName = "일반"
	// DefaultCategoryColor 新規カテゴリの既定色
	DefaultCategoryColor = "#4A90E2"
	// NeutralColor 表示カテゴリが見つからない場合の色
	NeutralColor = "#3788d8"
	// AllCategoryColor 合成カテゴリの表示色
	AllCategoryColor = "#eeeeee"
)

// Category タスクを分類する色付きカテゴリ
type Category struct {
	ID    ID     `json:"id,omitempty"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// AllCategory 先頭に固定される合成カテゴリ
func AllCategory() Category {
	return Category{Name: AllCategoryName, Color: AllCategoryColor}
}

// IsSynthetic 合成カテゴリならtrue
func (c Category) IsSynthetic() bool {
	return c.Name == AllCategoryName
}

// FindCategory 名前の完全一致でカテゴリを探す
func FindCategory(categories []Category, name string) (Category, bool) {
	for _, c := range categories {
		if c.Name == name {
			return c, true
		}
	}
	return Category{}, false
}
