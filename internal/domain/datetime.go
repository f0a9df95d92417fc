package domain

import (
	"fmt"
	"strings"
	"time"
)

// FormLayout 入力フォームの分単位の日時形式
const FormLayout = "2006-01-02T15:04"

var dateTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	FormLayout,
}

// ParseDateTime ISO-8601の日時文字列を解析する。オフセットがない場合はlocで解釈（nilならLocal）
func ParseDateTime(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	s = strings.TrimSpace(s)
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("日時の解析に失敗しました: %q", s)
}

// FormatFormTime フォーム入力の粒度（分）で整形する
func FormatFormTime(t time.Time) string {
	return t.Format(FormLayout)
}

// TruncateToForm 日時文字列をフォームの粒度（先頭16文字）に切り詰める
func TruncateToForm(s string) string {
	if len(s) > len(FormLayout) {
		return s[:len(FormLayout)]
	}
	return s
}
