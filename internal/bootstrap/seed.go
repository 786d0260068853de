package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"anoa.com/storerating/internal/entity"
	userRepo "anoa.com/storerating/internal/modules/user/repository"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&entity.User{},
		&entity.Store{},
		&entity.Rating{},
	)
}

// AdminSeed describes the account created when the database has no system administrator.
type AdminSeed struct {
	Name     string
	Email    string
	Password string
	Address  string
}

// SeedAdminUser creates the first system_admin. It does nothing once any admin exists,
// so a changed SEED_ADMIN_PASSWORD never overwrites a live account.
func SeedAdminUser(ctx context.Context, users userRepo.UserRepository, seed AdminSeed, log logrus.FieldLogger) error {
	count, err := users.CountByRole(ctx, entity.RoleSystemAdmin)
	if err != nil {
		return fmt.Errorf("count admins: %w", err)
	}
	if count > 0 {
		log.Debug("admin user already exists, skipping seed")
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(seed.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	name := seed.Name
	if name == "" {
		name = "System Administrator Account"
	}
	address := seed.Address
	if address == "" {
		address = "System"
	}

	admin := &entity.User{
		Name:         name,
		Email:        strings.ToLower(strings.TrimSpace(seed.Email)),
		PasswordHash: string(hash),
		Address:      address,
		Role:         entity.RoleSystemAdmin,
	}
	if err := users.Create(ctx, admin); err != nil {
		return fmt.Errorf("create admin: %w", err)
	}

	log.WithField("email", admin.Email).Info("admin user seeded")
	return nil
}
