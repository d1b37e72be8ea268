package model

import "time"

// Link - запись короткой ссылки
type Link struct {
	ID          string     `json:"id" gorm:"primaryKey;size:36"`
	Code        string     `json:"code" gorm:"uniqueIndex;size:8;not null"`
	URL         string     `json:"url" gorm:"not null"`
	Clicks      int64      `json:"clicks" gorm:"not null;default:0"`
	CreatedAt   time.Time  `json:"createdAt" gorm:"index"`
	LastClicked *time.Time `json:"lastClicked"`
}

func (Link) TableName() string {
	return "links"
}

// Clone returns a deep copy so callers can't mutate stored state.
func (l *Link) Clone() *Link {
	if l == nil {
		return nil
	}
	c := *l
	if l.LastClicked != nil {
		t := *l.LastClicked
		c.LastClicked = &t
	}
	return &c
}

type CreateLinkRequest struct {
	URL  string `json:"url" binding:"required"`
	Code string `json:"code"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
