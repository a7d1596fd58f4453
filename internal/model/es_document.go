package model

import "time"

// DoubtDocument is the shape of a doubt stored in Elasticsearch.
type DoubtDocument struct {
	DoubtID   uint      `json:"doubt_id"`
	UserID    uint      `json:"user_id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	CreatedAt time.Time `json:"created_at"`
}

// DoubtHit is one search result returned to the caller.
type DoubtHit struct {
	ID        uint      `json:"id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	CreatedAt time.Time `json:"createdAt"`
	Score     float64   `json:"score"`
}
