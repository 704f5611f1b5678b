// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"strings"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, catalog, playlist, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeDuplicateUsername  = "DUPLICATE_USERNAME"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeMissingToken       = "MISSING_TOKEN"
	ErrCodeInvalidToken       = "INVALID_TOKEN"
	ErrCodeSongNotFound       = "SONG_NOT_FOUND"
	ErrCodePlaylistNotFound   = "PLAYLIST_NOT_FOUND"
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeAssetTooLarge      = "ASSET_TOO_LARGE"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// NewDuplicateUsernameError はユーザー名重複エラーを生成する。
func NewDuplicateUsernameError(username string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateUsername,
		Message:  fmt.Sprintf("Username already exists: %s", username),
		Category: "auth",
		Action:   "Choose a different username.",
	}
}

// NewInvalidCredentialsError は認証失敗エラーを生成する。
// ユーザー未登録とパスワード不一致を区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Invalid username or password",
		Category: "auth",
		Action:   "Check your username and password and try again.",
	}
}

// NewMissingTokenError はトークン未指定エラーを生成する。
func NewMissingTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeMissingToken,
		Message:  "Authorization token is required",
		Category: "auth",
		Action:   "Log in and send the token as 'Authorization: Bearer <token>'.",
	}
}

// NewInvalidTokenError は無効なトークンのエラーを生成する。
// 署名不正・形式不正・期限切れを区別しない。
func NewInvalidTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidToken,
		Message:  "Invalid or expired token",
		Category: "auth",
		Action:   "Log in again.",
	}
}

// NewSongNotFoundError は楽曲未検出エラーを生成する。
func NewSongNotFoundError(songID string) *APIError {
	return &APIError{
		Code:     ErrCodeSongNotFound,
		Message:  fmt.Sprintf("Song not found: %s", songID),
		Category: "catalog",
		Action:   "Check the song ID.",
	}
}

// NewPlaylistNotFoundError はプレイリスト未検出エラーを生成する。
// 他ユーザーのプレイリストへのアクセスにも同じエラーを返す。
func NewPlaylistNotFoundError(playlistID string) *APIError {
	return &APIError{
		Code:     ErrCodePlaylistNotFound,
		Message:  fmt.Sprintf("Playlist not found: %s", playlistID),
		Category: "playlist",
		Action:   "Check the playlist ID.",
	}
}

// NewValidationError は入力検証エラーを生成する。
// fieldsには検証に失敗したフィールドの説明を渡す。
func NewValidationError(fields ...string) *APIError {
	msg := "Invalid input"
	if len(fields) > 0 {
		msg = fmt.Sprintf("Invalid input: %s", strings.Join(fields, ", "))
	}
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  msg,
		Category: "validation",
		Action:   "Fill in all required fields and try again.",
	}
}

// NewInvalidRequestError はリクエストボディの解析失敗エラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "Failed to parse request body",
		Category: "validation",
		Action:   "Send a well-formed request body.",
	}
}

// NewAssetTooLargeError はアップロードサイズ超過エラーを生成する。
func NewAssetTooLargeError(maxBytes int64) *APIError {
	return &APIError{
		Code:     ErrCodeAssetTooLarge,
		Message:  fmt.Sprintf("Audio file exceeds the upload limit of %d bytes", maxBytes),
		Category: "validation",
		Action:   "Upload a smaller file.",
	}
}

// NewInternalError は内部エラーを生成する。
// 詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "Internal server error",
		Category: "system",
		Action:   "Please try again later.",
	}
}
