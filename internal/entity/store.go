package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Store.AverageRating and Store.TotalRatings are derived from the ratings table and
// only ever written by the rating aggregator.
type Store struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name          string    `gorm:"size:255;not null;index" json:"name"`
	Email         string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Address       string    `gorm:"size:400;not null" json:"address"`
	OwnerID       uuid.UUID `gorm:"type:uuid;not null;index" json:"ownerId"`
	Owner         *User     `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	AverageRating float64   `gorm:"type:numeric(3,2);not null;default:0" json:"averageRating"`
	TotalRatings  int       `gorm:"not null;default:0;check:total_ratings >= 0" json:"totalRatings"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updatedAt"`

	Ratings []Rating `gorm:"foreignKey:StoreID;constraint:OnDelete:CASCADE" json:"-"`
}

func (s *Store) BeforeCreate(tx *gorm.DB) (err error) {
	if s.ID == uuid.Nil {
		s.ID, err = uuid.NewV7()
	}
	return
}
