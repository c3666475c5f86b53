package auth

import (
	"context"
	"fmt"

	"github.com/agjmills/assetadmin/internal/config"
	"github.com/agjmills/assetadmin/internal/database/models"
	"github.com/agjmills/assetadmin/internal/logger"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EnsureAdmin creates the configured admin account when the users table is empty.
// Returns the created user, or nil when nothing was created.
func EnsureAdmin(ctx context.Context, db *gorm.DB, cfg *config.Config) (*models.User, error) {
	var count int64
	if err := db.WithContext(ctx).Model(&models.User{}).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	if count > 0 {
		return nil, nil
	}
	if cfg.AdminPassword == "" {
		logger.Warn("no users exist and ADMIN_PASSWORD is not set; login will be impossible")
		return nil, nil
	}

	hash, err := HashPassword(cfg.AdminPassword, cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash admin password: %w", err)
	}

	user := &models.User{
		Username:     cfg.AdminUsername,
		Email:        cfg.AdminEmail,
		PasswordHash: hash,
		IsAdmin:      true,
		Permissions:  datatypes.NewJSONType(models.AllPermissions),
	}
	if err := db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create admin user: %w", err)
	}

	logger.Info("created bootstrap admin", "username", user.Username)
	return user, nil
}
