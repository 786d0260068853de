package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Rating struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_ratings_user_store,priority:1" json:"userId"`
	StoreID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_ratings_user_store,priority:2;index:idx_ratings_store_created,priority:1" json:"storeId"`
	Rating    int       `gorm:"not null;check:rating >= 1 AND rating <= 5" json:"rating"`
	Comment   *string   `gorm:"type:text" json:"comment"`
	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_ratings_store_created,priority:2,sort:desc" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`

	User  *User  `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Store *Store `gorm:"foreignKey:StoreID" json:"store,omitempty"`
}

func (r *Rating) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == uuid.Nil {
		r.ID, err = uuid.NewV7()
	}
	return
}

// Aggregate is the fresh AVG/COUNT over a store's ratings.
type Aggregate struct {
	Average float64
	Count   int64
}
