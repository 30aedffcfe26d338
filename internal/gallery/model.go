package gallery

import "time"

type Kind string

const (
	KindVideo Kind = "video"
	KindPhoto Kind = "photo"
)

func (k Kind) Valid() bool {
	return k == KindVideo || k == KindPhoto
}

func (k Kind) ContentType() string {
	if k == KindPhoto {
		return "image/jpeg"
	}
	return "video/mp4"
}

type Item struct {
	ID         string    `gorm:"primaryKey" json:"id"`
	Kind       Kind      `gorm:"not null;index" json:"kind"`
	FileName   string    `gorm:"uniqueIndex;not null" json:"file_name"`
	Path       string    `gorm:"not null" json:"-"`
	SizeBytes  int64     `json:"size_bytes"`
	Frames     int       `json:"frames,omitempty"`
	DurationMs int64     `json:"duration_ms,omitempty"`
	SessionID  string    `gorm:"index" json:"session_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
