// Package respond は HTTP レスポンスの共通エンベロープを提供します。
package respond

import (
	"encoding/json"
	"net/http"
)

// Envelope はすべての API レスポンスの外形です。
type Envelope struct {
	Success    bool        `json:"success"`
	Data       any         `json:"data,omitempty"`
	Message    string      `json:"message,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// Pagination は一覧レスポンスのページ情報です。
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// NewPagination は総件数からページ数を計算します。
func NewPagination(page, limit, total int) *Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return &Pagination{Page: page, Limit: limit, Total: total, TotalPages: pages}
}

// JSON は成功レスポンスを書き込みます。
func JSON(w http.ResponseWriter, status int, data any) {
	write(w, status, Envelope{Success: true, Data: data})
}

// Message はデータを持たない成功レスポンスを書き込みます。
func Message(w http.ResponseWriter, status int, msg string) {
	write(w, status, Envelope{Success: true, Message: msg})
}

// Page はページ情報付きの成功レスポンスを書き込みます。
func Page(w http.ResponseWriter, data any, p *Pagination) {
	write(w, http.StatusOK, Envelope{Success: true, Data: data, Pagination: p})
}

// Error は失敗レスポンスを書き込みます。
func Error(w http.ResponseWriter, status int, msg string) {
	write(w, status, Envelope{Success: false, Message: msg})
}

func write(w http.ResponseWriter, status int, body Envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
