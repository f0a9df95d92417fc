package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/k-negishi/todo-calendar-sync/internal/apperr"
	"github.com/k-negishi/todo-calendar-sync/internal/domain"
)

// KakaoPlaceSearch Kakao Local APIを使用したPlaceSearchProviderの実装
type KakaoPlaceSearch struct {
	restAPIKey string
	httpClient *http.Client
	endpoint   string

	mu     sync.Mutex
	center domain.Location
}

// kakaoKeywordResponse キーワード検索のレスポンス
type kakaoKeywordResponse struct {
	Documents []kakaoPlaceDocument `json:"documents"`
}

type kakaoPlaceDocument struct {
	PlaceName       string `json:"place_name"`
	AddressName     string `json:"address_name"`
	RoadAddressName string `json:"road_address_name"`
	X               string `json:"x"`
	Y               string `json:"y"`
}

// kakaoErrorResponse Kakao APIのエラーレスポンス
type kakaoErrorResponse struct {
	ErrorType string `json:"errorType"`
	Message   string `json:"message"`
	Msg       string `json:"msg"`
}

// NewKakaoPlaceSearch 場所検索クライアントを作成
func NewKakaoPlaceSearch(restAPIKey string) *KakaoPlaceSearch {
	return &KakaoPlaceSearch{
		restAPIKey: restAPIKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		endpoint: "https://dapi.kakao.com/v2/local/search/keyword.json",
		center:   domain.DefaultMapCenter,
	}
}

// Search キーワードで場所を検索
func (k *KakaoPlaceSearch) Search(ctx context.Context, keyword string) ([]domain.Place, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, apperr.NewValidationError("keyword", "検索キーワードを入力してください")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.endpoint+"?"+url.Values{"query": {keyword}}.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %v", err)
	}
	req.Header.Set("Authorization", "KakaoAK "+k.restAPIKey)

	resp, err := k.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Kakao APIリクエストの送信に失敗しました: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, kakaoStatusError(resp)
	}

	var body kakaoKeywordResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("Kakao APIレスポンスの解析に失敗しました: %v", err)
	}

	places := make([]domain.Place, 0, len(body.Documents))
	for _, doc := range body.Documents {
		place, err := toPlace(doc)
		if err != nil {
			log.Printf("Warning: 検索結果の変換をスキップしました: %v", err)
			continue
		}
		places = append(places, place)
	}
	return places, nil
}

// ReverseFocus 地図の中心を記録する
func (k *KakaoPlaceSearch) ReverseFocus(loc domain.Location) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.center = loc
}

// Center 現在の地図の中心
func (k *KakaoPlaceSearch) Center() domain.Location {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.center
}

// toPlace 座標は文字列で返るので数値に変換する
func toPlace(doc kakaoPlaceDocument) (domain.Place, error) {
	lat, err := strconv.ParseFloat(doc.Y, 64)
	if err != nil {
		return domain.Place{}, fmt.Errorf("緯度の解析に失敗しました (%s): %v", doc.PlaceName, err)
	}
	lng, err := strconv.ParseFloat(doc.X, 64)
	if err != nil {
		return domain.Place{}, fmt.Errorf("経度の解析に失敗しました (%s): %v", doc.PlaceName, err)
	}

	address := doc.RoadAddressName
	if address == "" {
		address = doc.AddressName
	}
	return domain.Place{
		Name:     doc.PlaceName,
		Location: domain.Location{Lat: lat, Lng: lng},
		Address:  address,
	}, nil
}

// kakaoStatusError Kakao APIのエラーレスポンスからエラーを作る
func kakaoStatusError(resp *http.Response) error {
	var errorResponse kakaoErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errorResponse); err != nil {
		return fmt.Errorf("Kakao API呼び出しが失敗しました (Status: %d, レスポンス解析不可: %v)", resp.StatusCode, err)
	}
	message := errorResponse.Message
	if message == "" {
		message = errorResponse.Msg
	}
	return fmt.Errorf("Kakao API呼び出しが失敗しました (Status: %d): %s", resp.StatusCode, message)
}
