// Package model はドメインモデルを定義する。
package model

import "time"

// Post はユーザーの投稿を表す。
// Contentはサニタイズ済みHTML。
type Post struct {
	ID        string
	UserID    string
	Title     string
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Reaction は1ユーザーの1投稿に対するlike/dislike投票を表す。
// (post_id, user_id) の組に対して高々1件。UNIQUE制約で保証される。
type Reaction struct {
	ID        string
	PostID    string
	UserID    string
	IsLike    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ReactionCounts は投稿のlike/dislike集計値を表す。
// 保存されず、リアクション行から都度導出される。
type ReactionCounts struct {
	PostID       string
	LikeCount    int64
	DislikeCount int64
}

// PostWithCounts は投稿と投稿者情報、導出済み集計値を結合したモデル。
// 投稿一覧取得時にusersとpost_reactionsをJOINして取得される。
type PostWithCounts struct {
	Post
	Username     string
	LikeCount    int64
	DislikeCount int64
}
