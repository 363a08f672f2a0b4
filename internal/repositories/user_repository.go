package repositories

import (
	"fooddelivery/internal/models"
	"fooddelivery/pkg/dbctx"
)

// UserRepository defines the interface for user data access.
type UserRepository interface {
	Create(dbc dbctx.Context, user *models.User) error
	GetByUsername(dbc dbctx.Context, username string) (*models.User, error)
	// GetByEmail matches case-insensitively.
	GetByEmail(dbc dbctx.Context, email string) (*models.User, error)
	GetByPhone(dbc dbctx.Context, phone string) (*models.User, error)
	GetByID(dbc dbctx.Context, id string) (*models.User, error)
}
