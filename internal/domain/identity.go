package domain

// Place 場所検索の結果
type Place struct {
	Name     string
	Location Location
	Address  string
}

// User ログイン中のユーザー
type User struct {
	ID              string
	Nickname        string
	ProfileImageURL string
}

// DefaultMapCenter 地図の既定の中心（ソウル市庁）
var DefaultMapCenter = Location{Lat: 37.566826, Lng: 126.9786567}
