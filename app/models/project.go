package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ProjectStatusDraft     = "draft"
	ProjectStatusEditing   = "editing"
	ProjectStatusRendered  = "rendered"
	ProjectStatusPublished = "published"
)

// Project is one AI editing project. The heavy lifting (upload, the AI
// pipeline, rendering) happens in external services; this record exists so
// credits can be tied to a concrete project reference.
type Project struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	UUID           string         `gorm:"type:char(36) CHARACTER SET utf8 COLLATE utf8_bin;uniqueIndex;not null" json:"uuid"`
	UserID         uint           `gorm:"not null;index" json:"user_id"`
	User           User           `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Title          string         `gorm:"type:varchar(255)" json:"title"`
	Prompt         string         `gorm:"type:text" json:"prompt"`
	Status         string         `gorm:"type:varchar(32);not null;default:'draft';index" json:"status"`
	SourceVideoRef string         `gorm:"type:varchar(255)" json:"source_video_ref"`
	ShareCode      string         `gorm:"type:varchar(16);index" json:"share_code,omitempty"`
	ViewCount      int64          `gorm:"not null;default:0" json:"view_count"`
	PublishedAt    *time.Time     `gorm:"type:timestamp;default:null" json:"published_at,omitempty"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate assigns a public UUID when none is set.
func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.UUID == "" {
		p.UUID = uuid.New().String()
	}
	return nil
}
