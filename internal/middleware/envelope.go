package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/North004/Server/internal/model"
)

// GeneralResponse は全APIレスポンスの統一エンベロープ。
// statusは"success"（2xx）、"fail"（4xx、クライアント起因）、
// "error"（5xx、サーバー起因）のいずれか。
// dataは成功時のペイロードで、ない場合はnull。
type GeneralResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// WriteSuccess は成功レスポンスをエンベロープ形式で書き込む。
func WriteSuccess(w http.ResponseWriter, statusCode int, message string, data any) {
	writeEnvelope(w, statusCode, GeneralResponse{
		Status:  "success",
		Message: message,
		Data:    data,
	})
}

// WriteFail はクライアント起因（4xx）のレスポンスをエンベロープ形式で書き込む。
func WriteFail(w http.ResponseWriter, statusCode int, message string) {
	writeEnvelope(w, statusCode, GeneralResponse{
		Status:  "fail",
		Message: message,
		Data:    nil,
	})
}

// WriteServerError はサーバー起因（5xx）の統一レスポンスを書き込む。
// 詳細はログのみに記録し、クライアントには一般的なメッセージを返す。
func WriteServerError(w http.ResponseWriter) {
	writeEnvelope(w, http.StatusInternalServerError, GeneralResponse{
		Status:  "error",
		Message: "Internal server error",
		Data:    nil,
	})
}

// WriteUnauthorized は401の統一レスポンスを書き込む。
func WriteUnauthorized(w http.ResponseWriter) {
	writeEnvelope(w, http.StatusUnauthorized, GeneralResponse{
		Status:  "fail",
		Message: "user unauthorized",
		Data:    nil,
	})
}

// HandleServiceError はサービス層から返されたエラーをレスポンスに変換する。
// APIErrorはステータスコードに応じてfail/errorに振り分け、
// それ以外のエラーは詳細をログに記録して500を返す。
func HandleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatus >= 500 {
			slog.Error("request failed",
				slog.String("code", apiErr.Code),
				slog.String("path", r.URL.Path),
			)
			writeEnvelope(w, apiErr.HTTPStatus, GeneralResponse{
				Status:  "error",
				Message: apiErr.Message,
				Data:    nil,
			})
			return
		}
		WriteFail(w, apiErr.HTTPStatus, apiErr.Message)
		return
	}

	slog.Error("request failed",
		slog.String("error", err.Error()),
		slog.String("path", r.URL.Path),
	)
	WriteServerError(w)
}

func writeEnvelope(w http.ResponseWriter, statusCode int, body GeneralResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}
