package repositories

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"fooddelivery/internal/models"
	"fooddelivery/pkg/dbctx"
)

// GORMUserRepository is a GORM implementation of UserRepository.
type GORMUserRepository struct {
	db *gorm.DB
}

// NewGORMUserRepository creates a new instance of GORMUserRepository.
func NewGORMUserRepository(db *gorm.DB) *GORMUserRepository {
	return &GORMUserRepository{
		db: db,
	}
}

// Create creates a new user in the database.
func (r *GORMUserRepository) Create(dbc dbctx.Context, user *models.User) error {
	if err := dbc.DB(r.db).Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByUsername retrieves a user by their username from the database.
func (r *GORMUserRepository) GetByUsername(dbc dbctx.Context, username string) (*models.User, error) {
	return r.first(dbc, "username = ?", username, "username")
}

// GetByEmail retrieves a user by their email from the database.
func (r *GORMUserRepository) GetByEmail(dbc dbctx.Context, email string) (*models.User, error) {
	return r.first(dbc, "LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email)), "email")
}

// GetByPhone retrieves a user by their phone number from the database.
func (r *GORMUserRepository) GetByPhone(dbc dbctx.Context, phone string) (*models.User, error) {
	return r.first(dbc, "phone = ?", phone, "phone")
}

// GetByID retrieves a user by their ID from the database.
func (r *GORMUserRepository) GetByID(dbc dbctx.Context, id string) (*models.User, error) {
	return r.first(dbc, "id = ?", id, "ID")
}

func (r *GORMUserRepository) first(dbc dbctx.Context, query string, value string, field string) (*models.User, error) {
	var user models.User
	if err := dbc.DB(r.db).Where(query, value).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user with %s %s not found: %w", field, value, err)
		}
		return nil, fmt.Errorf("failed to get user by %s %s: %w", field, value, err)
	}
	return &user, nil
}
