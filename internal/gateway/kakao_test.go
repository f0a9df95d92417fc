package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/k-negishi/todo-calendar-sync/internal/apperr"
	"github.com/k-negishi/todo-calendar-sync/internal/domain"
	"github.com/k-negishi/todo-calendar-sync/internal/usecase"
)

var (
	_ usecase.PlaceSearchProvider = (*KakaoPlaceSearch)(nil)
	_ usecase.AuthProvider        = (*KakaoAuth)(nil)
)

// newTestKakaoPlaceSearch テスト用の KakaoPlaceSearch を構築するヘルパー
func newTestKakaoPlaceSearch(key string, httpClient *http.Client, endpoint string) *KakaoPlaceSearch {
	return &KakaoPlaceSearch{
		restAPIKey: key,
		httpClient: httpClient,
		endpoint:   endpoint,
		center:     domain.DefaultMapCenter,
	}
}

// newTestKakaoAuth 認可サーバーとAPIを同じテストサーバーに向けるヘルパー
func newTestKakaoAuth(key string, server *httptest.Server) *KakaoAuth {
	a := NewKakaoAuth(key, "http://localhost:3000/oauth")
	a.oauthConfig.Endpoint = oauth2Endpoint(server.URL)
	a.apiBaseURL = server.URL
	a.httpClient = server.Client()
	return a
}

// --- KakaoPlaceSearch テスト ---

func TestKakaoSearch_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "KakaoAK test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "서울역", r.URL.Query().Get("query"))
		_, _ = io.WriteString(w, `{"documents": [
			{"place_name": "서울역", "road_address_name": "서울 용산구 한강대로 405", "address_name": "서울 용산구 동자동 43-205", "x": "126.9707", "y": "37.5547"},
			{"place_name": "지번만", "road_address_name": "", "address_name": "서울 중구 봉래동2가 122", "x": "126.97", "y": "37.55"},
			{"place_name": "좌표없음", "x": "", "y": ""}
		]}`)
	}))
	defer server.Close()

	k := newTestKakaoPlaceSearch("test-key", server.Client(), server.URL)
	places, err := k.Search(context.Background(), "서울역")

	require.NoError(t, err)
	require.Len(t, places, 2)
	assert.Equal(t, domain.Place{
		Name:     "서울역",
		Location: domain.Location{Lat: 37.5547, Lng: 126.9707},
		Address:  "서울 용산구 한강대로 405",
	}, places[0])
	assert.Equal(t, "서울 중구 봉래동2가 122", places[1].Address)
}

func TestKakaoSearch_BlankKeywordSkipsRequest(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
	}))
	defer server.Close()

	k := newTestKakaoPlaceSearch("test-key", server.Client(), server.URL)
	_, err := k.Search(context.Background(), "   ")

	assert.True(t, errors.Is(err, apperr.ErrValidation))
	assert.False(t, called)
}

func TestKakaoSearch_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"errorType": "AccessDeniedError", "message": "wrong appKey"}`)
	}))
	defer server.Close()

	k := newTestKakaoPlaceSearch("bad", server.Client(), server.URL)
	_, err := k.Search(context.Background(), "cafe")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Kakao API呼び出しが失敗しました")
	assert.Contains(t, err.Error(), "wrong appKey")
}

func TestKakaoReverseFocus(t *testing.T) {
	k := NewKakaoPlaceSearch("key")
	assert.Equal(t, domain.DefaultMapCenter, k.Center())

	k.ReverseFocus(domain.Location{Lat: 35.1, Lng: 129.0})
	assert.Equal(t, domain.Location{Lat: 35.1, Lng: 129.0}, k.Center())
}

// --- KakaoAuth テスト ---

func TestKakaoAuth_LoginAndLogout(t *testing.T) {
	var loggedOut bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/token":
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "auth-code", r.PostForm.Get("code"))
			assert.Equal(t, "rest-key", r.PostForm.Get("client_id"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"access_token": "kakao-token", "token_type": "bearer", "expires_in": 3600}`)
		case "/v2/user/me":
			assert.Equal(t, "Bearer kakao-token", r.Header.Get("Authorization"))
			_, _ = io.WriteString(w, `{"id": 1234, "kakao_account": {"profile": {"nickname": "라이언", "profile_image_url": "https://img.example/1.png"}}}`)
		case "/v1/user/logout":
			loggedOut = true
			_, _ = io.WriteString(w, `{"id": 1234}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	a := newTestKakaoAuth("rest-key", server)
	assert.True(t, a.Ready())
	_, ok := a.CurrentUser()
	assert.False(t, ok)

	user, err := a.Login(context.Background(), "auth-code")
	require.NoError(t, err)
	assert.Equal(t, domain.User{ID: "1234", Nickname: "라이언", ProfileImageURL: "https://img.example/1.png"}, user)

	current, ok := a.CurrentUser()
	require.True(t, ok)
	assert.Equal(t, user, current)

	require.NoError(t, a.Logout(context.Background()))
	assert.True(t, loggedOut)
	_, ok = a.CurrentUser()
	assert.False(t, ok)
}

func TestKakaoAuth_LogoutFailureStillClearsUser(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/token":
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"access_token": "kakao-token", "token_type": "bearer"}`)
		case "/v2/user/me":
			_, _ = io.WriteString(w, `{"id": 1}`)
		default:
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"msg": "this access token does not exist"}`)
		}
	}))
	defer server.Close()

	a := newTestKakaoAuth("rest-key", server)
	_, err := a.Login(context.Background(), "code")
	require.NoError(t, err)

	err = a.Logout(context.Background())
	assert.Error(t, err)
	_, ok := a.CurrentUser()
	assert.False(t, ok)
}

func TestKakaoAuth_LoginErrors(t *testing.T) {
	notReady := NewKakaoAuth("", "")
	assert.False(t, notReady.Ready())
	_, err := notReady.Login(context.Background(), "code")
	assert.True(t, errors.Is(err, apperr.ErrUnauthenticated))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error": "invalid_grant"}`)
	}))
	defer server.Close()

	a := newTestKakaoAuth("rest-key", server)
	_, err = a.Login(context.Background(), "")
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = a.Login(context.Background(), "expired")
	assert.True(t, errors.Is(err, apperr.ErrUnauthenticated))
	_, ok := a.CurrentUser()
	assert.False(t, ok)
}

func TestKakaoAuth_AuthCodeURL(t *testing.T) {
	a := NewKakaoAuth("rest-key", "http://localhost:3000/oauth")
	u := a.AuthCodeURL("state-1")

	assert.Contains(t, u, "https://kauth.kakao.com/oauth/authorize?")
	assert.Contains(t, u, "client_id=rest-key")
	assert.Contains(t, u, "state=state-1")
}
