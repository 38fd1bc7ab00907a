// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Post represents a blog post.
type Post struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"_id"`
	Title       string    `gorm:"not null" json:"title"`
	SubTitle    *string   `json:"subTitle,omitempty"`
	Description string    `gorm:"type:text;not null" json:"description"`
	Category    string    `gorm:"not null;index" json:"category"`
	Image       string    `gorm:"not null" json:"image"`
	IsPublished bool      `gorm:"not null;default:false;index" json:"isPublished"`
	Slug        string    `gorm:"not null;uniqueIndex" json:"slug"`
	CreatedAt   time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// BeforeCreate assigns a fresh identifier when the caller did not supply one.
func (p *Post) BeforeCreate(_ *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// PostPage is one page of the admin listing.
type PostPage struct {
	Page       int     `json:"page"`
	Limit      int     `json:"limit"`
	TotalPages int     `json:"totalPages"`
	Count      int     `json:"count"`
	Blogs      []*Post `json:"blogs"`
}

// PublishState is returned by the publish toggle.
type PublishState struct {
	IsPublished bool `json:"isPublished"`
}
