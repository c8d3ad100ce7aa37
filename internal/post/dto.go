// AngelaMos | 2026
// dto.go

package post

import (
	"time"
)

type CreatePostRequest struct {
	Platform    string    `json:"platform" validate:"required,oneof=mastodon telegram facebook instagram"`
	Content     string    `json:"content" validate:"required,max=5000"`
	ScheduledAt time.Time `json:"scheduled_at" validate:"required"`
}

type PostResponse struct {
	ID          string    `json:"id"`
	Platform    string    `json:"platform"`
	Content     string    `json:"content"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

func ToPostResponse(p *Post) PostResponse {
	return PostResponse{
		ID:          p.ID,
		Platform:    p.Platform,
		Content:     p.Content,
		ScheduledAt: p.ScheduledAt,
		Status:      p.Status,
		CreatedAt:   p.CreatedAt,
	}
}

func ToPostResponseList(posts []Post) []PostResponse {
	out := make([]PostResponse, len(posts))
	for i := range posts {
		out[i] = ToPostResponse(&posts[i])
	}
	return out
}
