package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Category groups foods on the menu.
type Category struct {
	ID   string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name string `json:"name" gorm:"type:varchar(70);index"`
	Slug string `json:"slug" gorm:"type:varchar(70);uniqueIndex"`
}

func (c *Category) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Slug == "" {
		c.Slug = Slugify(c.Name)
	}
	return nil
}

// Food is a menu entry. Price is the current price; order items keep their own copy.
type Food struct {
	ID           string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	CategoryID   *string         `json:"category_id,omitempty" gorm:"type:varchar(36);index"`
	Category     *Category       `json:"category,omitempty" gorm:"constraint:OnDelete:CASCADE"`
	Name         string          `json:"name" gorm:"type:varchar(70);index" validate:"required,max=70"`
	Slug         string          `json:"slug" gorm:"type:varchar(70);index"`
	Descriptions string          `json:"descriptions" gorm:"type:text"`
	Price        decimal.Decimal `json:"price" gorm:"type:numeric(10,2);not null"`
	ImageURL     *string         `json:"image_url,omitempty" gorm:"type:varchar(255)"`
	Available    bool            `json:"available" gorm:"not null;default:true;index"`
	CreatedAt    time.Time       `json:"created"`
	UpdatedAt    time.Time       `json:"updated"`
}

func (f *Food) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	if f.Slug == "" {
		f.Slug = Slugify(f.Name)
	}
	return nil
}

// Slugify lower-cases s and collapses every run of non [a-z0-9] characters into one hyphen.
func Slugify(s string) string {
	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			pendingDash = false
			continue
		}
		pendingDash = true
	}
	return b.String()
}
