package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/joho/godotenv"
)

const (
	defaultTodoAPIBaseURL = "http://localhost:8000/api/"
	defaultTimezone       = "Asia/Seoul"
	ssmParamPrefix        = "/todo-calendar-sync/"
)

// SSMParameterGetter Parameter Storeからの取得を抽象化するインターフェース
type SSMParameterGetter interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Config アプリケーション設定構造体
type Config struct {
	// todo API設定
	TodoAPIBaseURL string
	TodoAPIToken   string

	// Kakao設定
	KakaoRESTAPIKey  string
	KakaoRedirectURL string

	// Google Calendar設定
	GoogleCredentials string
	CalendarID        string

	// LINE API設定
	LineChannelAccessToken string
	LineUserID             string

	// その他設定
	RequireLocation bool
	SnapshotDBPath  string
	LogLevel        string
	Timezone        string

	// AWS関連（本番環境でのみ使用）
	ssmClient SSMParameterGetter
}

// Load 環境に応じて設定を読み込み
func Load() (*Config, error) {
	// AWS Lambda環境かどうか判定
	if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		return loadAWSConfig()
	}
	return loadLocalConfig()
}

// loadLocalConfig ローカル開発環境用の設定読み込み
func loadLocalConfig() (*Config, error) {
	// .envファイルを読み込み（存在する場合のみ）
	if err := godotenv.Load(); err != nil {
		// .envファイルが存在しない場合はエラーにしない
		log.Printf("Warning: .envファイルが見つかりません: %v", err)
	}

	cfg := newBaseConfig()
	cfg.TodoAPIToken = getEnvOrDefault("TODO_API_TOKEN", "")
	cfg.KakaoRESTAPIKey = getEnvOrDefault("KAKAO_REST_API_KEY", "")
	cfg.GoogleCredentials = getEnvOrDefault("GOOGLE_CREDENTIALS", "")
	cfg.LineChannelAccessToken = getEnvOrDefault("LINE_CHANNEL_ACCESS_TOKEN", "")
	cfg.LineUserID = getEnvOrDefault("LINE_USER_ID", "")

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadAWSConfig AWS Lambda環境用の設定読み込み
func loadAWSConfig() (*Config, error) {
	// AWS設定を初期化
	awsConfig, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		return nil, fmt.Errorf("AWS設定の読み込みに失敗しました: %v", err)
	}

	cfg := newBaseConfig()
	cfg.ssmClient = ssm.NewFromConfig(awsConfig)

	// Parameter Storeから機密情報を取得
	if err := cfg.loadFromParameterStore(); err != nil {
		return nil, fmt.Errorf("Parameter Storeからの設定読み込みに失敗しました: %v", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newBaseConfig 機密でない設定を環境変数から読み込む
func newBaseConfig() *Config {
	return &Config{
		TodoAPIBaseURL:   getEnvOrDefault("TODO_API_BASE_URL", defaultTodoAPIBaseURL),
		KakaoRedirectURL: getEnvOrDefault("KAKAO_REDIRECT_URL", ""),
		CalendarID:       getEnvOrDefault("CALENDAR_ID", "primary"),
		RequireLocation:  getBoolEnvOrDefault("REQUIRE_LOCATION", true),
		SnapshotDBPath:   getEnvOrDefault("SNAPSHOT_DB_PATH", ""),
		LogLevel:         getEnvOrDefault("LOG_LEVEL", "INFO"),
		Timezone:         getEnvOrDefault("TIMEZONE", defaultTimezone),
	}
}

// validate 必須設定項目の確認
func (c *Config) validate() error {
	u, err := url.Parse(c.TodoAPIBaseURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("TODO_API_BASE_URL環境変数が絶対URLではありません: %s", c.TodoAPIBaseURL)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("TIMEZONE環境変数のタイムゾーンが不正です: %v", err)
	}
	return nil
}

// loadFromParameterStore Parameter Storeから機密情報を読み込み
func (c *Config) loadFromParameterStore() error {
	ctx := context.TODO()

	// LINE Channel Access Tokenを取得
	lineToken, err := c.getParameter(ctx, ssmParamName("SSM_LINE_TOKEN_PARAM", "line-channel-access-token"), true)
	if err != nil {
		return fmt.Errorf("LINE Channel Access Tokenの取得に失敗しました: %v", err)
	}
	c.LineChannelAccessToken = lineToken

	// LINE User IDを取得
	lineUser, err := c.getParameter(ctx, ssmParamName("SSM_LINE_USER_ID_PARAM", "line-user-id"), true)
	if err != nil {
		return fmt.Errorf("LINE User IDの取得に失敗しました: %v", err)
	}
	c.LineUserID = lineUser

	// 以下は未登録でもよい
	optional := []struct {
		envKey string
		name   string
		target *string
	}{
		{"SSM_TODO_API_TOKEN_PARAM", "todo-api-token", &c.TodoAPIToken},
		{"SSM_KAKAO_REST_API_KEY_PARAM", "kakao-rest-api-key", &c.KakaoRESTAPIKey},
		{"SSM_GOOGLE_CREDS_PARAM", "google-creds", &c.GoogleCredentials},
		{"SSM_CALENDAR_ID_PARAM", "calendar-id", &c.CalendarID},
	}
	for _, p := range optional {
		value, found, err := c.getOptionalParameter(ctx, ssmParamName(p.envKey, p.name), true)
		if err != nil {
			return err
		}
		if found {
			*p.target = value
		}
	}

	return nil
}

// getParameter Parameter Storeから指定されたパラメータを取得
func (c *Config) getParameter(ctx context.Context, paramName string, withDecryption bool) (string, error) {
	input := &ssm.GetParameterInput{
		Name:           aws.String(paramName),
		WithDecryption: aws.Bool(withDecryption),
	}

	result, err := c.ssmClient.GetParameter(ctx, input)
	if err != nil {
		return "", fmt.Errorf("パラメータ %s の取得に失敗しました: %w", paramName, err)
	}

	if result.Parameter == nil || result.Parameter.Value == nil || *result.Parameter.Value == "" {
		return "", fmt.Errorf("パラメータ %s が空の値です", paramName)
	}

	return *result.Parameter.Value, nil
}

// getOptionalParameter 未登録のパラメータはfound=falseで返す
func (c *Config) getOptionalParameter(ctx context.Context, paramName string, withDecryption bool) (string, bool, error) {
	value, err := c.getParameter(ctx, paramName, withDecryption)
	if err == nil {
		return value, true, nil
	}

	var notFound *types.ParameterNotFound
	if errors.As(err, &notFound) {
		return "", false, nil
	}
	return "", false, err
}

// GetGoogleCredentialsJSON Google認証情報をJSONとして解析
func (c *Config) GetGoogleCredentialsJSON() (map[string]interface{}, error) {
	var credentials map[string]interface{}
	if err := json.Unmarshal([]byte(c.GoogleCredentials), &credentials); err != nil {
		return nil, fmt.Errorf("Google認証情報のJSON解析に失敗しました: %v", err)
	}
	return credentials, nil
}

// Location 設定されたタイムゾーン
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("タイムゾーンの読み込みに失敗しました: %v", err)
	}
	return loc, nil
}

// HasLINE LINE通知が使える状態ならtrue
func (c *Config) HasLINE() bool {
	return c.LineChannelAccessToken != "" && c.LineUserID != ""
}

// HasGoogleCalendar Google Calendarへの反映が使える状態ならtrue
func (c *Config) HasGoogleCalendar() bool {
	return c.GoogleCredentials != "" && c.CalendarID != ""
}

// ssmParamName 環境変数で上書きできるパラメータ名
func ssmParamName(envKey, name string) string {
	return getEnvOrDefault(envKey, ssmParamPrefix+name)
}

// getEnvOrDefault 環境変数を取得し、存在しない場合はデフォルト値を返す
func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// getBoolEnvOrDefault 真偽値の環境変数を取得。解釈できなければデフォルト値
func getBoolEnvOrDefault(key string, defaultValue bool) bool {
	raw := getEnvOrDefault(key, "")
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		log.Printf("Warning: %s の値を真偽値として解釈できません: %s", key, raw)
		return defaultValue
	}
	return v
}
