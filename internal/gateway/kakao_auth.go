package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/k-negishi/todo-calendar-sync/internal/apperr"
	"github.com/k-negishi/todo-calendar-sync/internal/domain"
)

// oauth2Endpoint Kakaoの認可サーバー
func oauth2Endpoint(base string) oauth2.Endpoint {
	return oauth2.Endpoint{
		AuthURL:   base + "/oauth/authorize",
		TokenURL:  base + "/oauth/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
}

// KakaoAuth Kakaoログインを使用したAuthProviderの実装
type KakaoAuth struct {
	oauthConfig *oauth2.Config
	apiBaseURL  string
	httpClient  *http.Client

	mu    sync.RWMutex
	token *oauth2.Token
	user  *domain.User
}

// kakaoUserResponse /v2/user/me のレスポンス
type kakaoUserResponse struct {
	ID           int64 `json:"id"`
	KakaoAccount struct {
		Profile struct {
			Nickname        string `json:"nickname"`
			ProfileImageURL string `json:"profile_image_url"`
		} `json:"profile"`
	} `json:"kakao_account"`
}

// NewKakaoAuth Kakaoログインクライアントを作成
func NewKakaoAuth(restAPIKey, redirectURL string) *KakaoAuth {
	return &KakaoAuth{
		oauthConfig: &oauth2.Config{
			ClientID:    restAPIKey,
			RedirectURL: redirectURL,
			Endpoint:    oauth2Endpoint("https://kauth.kakao.com"),
			Scopes:      []string{"profile_nickname", "profile_image"},
		},
		apiBaseURL: "https://kapi.kakao.com",
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Ready REST APIキーが設定されていればtrue
func (a *KakaoAuth) Ready() bool {
	return strings.TrimSpace(a.oauthConfig.ClientID) != ""
}

// AuthCodeURL ログイン画面のURL
func (a *KakaoAuth) AuthCodeURL(state string) string {
	return a.oauthConfig.AuthCodeURL(state)
}

// Login 認可コードをトークンに交換し、ユーザー情報を取得する
func (a *KakaoAuth) Login(ctx context.Context, authCode string) (domain.User, error) {
	if !a.Ready() {
		return domain.User{}, apperr.NewUnauthenticatedError("KakaoのREST APIキーが設定されていません")
	}
	if strings.TrimSpace(authCode) == "" {
		return domain.User{}, apperr.NewValidationError("code", "認可コードがありません")
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
	token, err := a.oauthConfig.Exchange(ctx, authCode)
	if err != nil {
		log.Printf("Kakaoのトークン取得に失敗しました: %v", err)
		return domain.User{}, apperr.NewUnauthenticatedError("Kakaoログインに失敗しました: " + err.Error())
	}

	user, err := a.fetchUser(ctx, token)
	if err != nil {
		log.Printf("Kakaoのユーザー情報取得に失敗しました: %v", err)
		return domain.User{}, apperr.NewRemoteFetchError("Kakaoユーザー情報", err)
	}

	a.mu.Lock()
	a.token = token
	a.user = &user
	a.mu.Unlock()

	return user, nil
}

// Logout Kakaoのセッションを終了する。API呼び出しが失敗してもローカルのユーザーは消す
func (a *KakaoAuth) Logout(ctx context.Context) error {
	a.mu.Lock()
	token := a.token
	a.token = nil
	a.user = nil
	a.mu.Unlock()

	if token == nil {
		return nil
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
	client := a.oauthConfig.Client(ctx, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.apiBaseURL+"/v1/user/logout", nil)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		log.Printf("Kakaoのログアウトに失敗しました: %v", err)
		return fmt.Errorf("Kakaoのログアウトに失敗しました: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return kakaoStatusError(resp)
	}
	return nil
}

// CurrentUser ログイン中のユーザー
func (a *KakaoAuth) CurrentUser() (domain.User, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.user == nil {
		return domain.User{}, false
	}
	return *a.user, true
}

// fetchUser トークンでプロフィールを取得
func (a *KakaoAuth) fetchUser(ctx context.Context, token *oauth2.Token) (domain.User, error) {
	client := a.oauthConfig.Client(ctx, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.apiBaseURL+"/v2/user/me", nil)
	if err != nil {
		return domain.User{}, fmt.Errorf("HTTPリクエストの作成に失敗しました: %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return domain.User{}, fmt.Errorf("Kakao APIリクエストの送信に失敗しました: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.User{}, kakaoStatusError(resp)
	}

	var body kakaoUserResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.User{}, fmt.Errorf("Kakao APIレスポンスの解析に失敗しました: %v", err)
	}

	return domain.User{
		ID:              strconv.FormatInt(body.ID, 10),
		Nickname:        body.KakaoAccount.Profile.Nickname,
		ProfileImageURL: body.KakaoAccount.Profile.ProfileImageURL,
	}, nil
}
