package model

import (
	"time"

	"github.com/google/uuid"
)

type Note struct {
	Id         uuid.UUID `gorm:"type:uuid;primaryKey"`
	OwnerId    uuid.UUID `gorm:"type:uuid;not null;index"`
	Title      string    `gorm:"type:varchar(200);not null"`
	Content    string    `gorm:"type:text;not null"`
	Visibility string    `gorm:"type:varchar(20);not null;default:'private';index"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime;index"`
}

func (Note) TableName() string {
	return "notes"
}
