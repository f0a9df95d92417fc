package calendar

import (
	"strconv"
	"strings"

	"github.com/k-negishi/todo-calendar-sync/internal/domain"
)

const (
	// TextColorDark 明るい背景に使う文字色
	TextColorDark = "#000000"
	// TextColorLight 暗い背景に使う文字色
	TextColorLight = "#ffffff"
)

// Project タスク・カテゴリ・フィルターからカレンダー表示用イベントを生成する
func Project(tasks []domain.Task, categories []domain.Category, filterTag string) []domain.CalendarEvent {
	events := make([]domain.CalendarEvent, 0, len(tasks))
	for _, t := range tasks {
		if !Visible(t, filterTag) {
			continue
		}

		background := displayColor(t, categories)
		events = append(events, domain.CalendarEvent{
			Title:           t.Title,
			Start:           t.Date,
			End:             t.End,
			BackgroundColor: background,
			BorderColor:     background,
			TextColor:       TextColor(background),
			Source:          t.Clone(),
		})
	}
	return events
}

// Visible フィルターが合成カテゴリか、タグが一致すればtrue
func Visible(t domain.Task, filterTag string) bool {
	return filterTag == domain.AllCategoryName || t.ResolvedTag() == filterTag
}

// displayColor タグ名、既定カテゴリ、固定色の順で表示色を決める
func displayColor(t domain.Task, categories []domain.Category) string {
	cat, ok := domain.FindCategory(categories, t.ResolvedTag())
	if !ok {
		cat, ok = domain.FindCategory(categories, domain.DefaultCategoryName)
	}
	if !ok {
		return domain.NeutralColor
	}
	if _, _, _, valid := ParseHexColor(cat.Color); !valid {
		return domain.NeutralColor
	}
	return cat.Color
}

// ParseHexColor "#RRGGBB" または "RRGGBB" をRGBに分解する
func ParseHexColor(hex string) (r, g, b uint8, ok bool) {
	hex = strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(hex) != 6 {
		return 0, 0, 0, false
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, 0, 0, false
	}
	return uint8(v >> 16), uint8(v >> 8), uint8(v), true
}

// luminanceThreshold 0.5*255を重み1000倍の整数で表したもの
const luminanceThreshold = 127500

// Luminance (0.299R + 0.587G + 0.114B) / 255 の相対輝度。表示用で、文字色の判定には使わない
func Luminance(hex string) (float64, bool) {
	r, g, b, ok := ParseHexColor(hex)
	if !ok {
		return 0, false
	}
	return float64(weightedLuma(r, g, b)) / 1000 / 255, true
}

// TextColor 背景色に対して読みやすい文字色を返す。解析できない色は白
func TextColor(hex string) string {
	r, g, b, ok := ParseHexColor(hex)
	if !ok {
		return TextColorLight
	}
	return contrastText(weightedLuma(r, g, b))
}

// weightedLuma 299R + 587G + 114B。浮動小数点の丸めを避けるため整数で計算する
func weightedLuma(r, g, b uint8) int {
	return 299*int(r) + 587*int(g) + 114*int(b)
}

// contrastText 重み付き輝度がしきい値を超えれば黒
func contrastText(luma int) string {
	if luma > luminanceThreshold {
		return TextColorDark
	}
	return TextColorLight
}
