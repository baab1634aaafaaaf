package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/dinein/pkg/apperr"
	"github.com/example/dinein/pkg/config"
	"github.com/example/dinein/pkg/models"
	"github.com/example/dinein/pkg/repository"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Staff is a directory entry. Admins have no restaurant.
type Staff struct {
	ID           string      `gorm:"primaryKey;size:24" json:"id"`
	Login        string      `gorm:"uniqueIndex;size:64;not null" json:"login"`
	Name         string      `gorm:"size:128" json:"name"`
	PasswordHash string      `gorm:"not null" json:"-"`
	Role         models.Role `gorm:"size:16;not null" json:"role"`
	RestaurantID string      `gorm:"index;size:24" json:"restaurant"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

func (s *Staff) Actor() models.Actor {
	return models.Actor{ID: s.ID, Role: s.Role, RestaurantID: s.RestaurantID}
}

// Open connects to MySQL when it is configured and to SQLite otherwise.
func Open(cfg *config.Config) (*gorm.DB, error) {
	gcfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}

	if cfg.MySQL.Host != "" {
		db, err := gorm.Open(mysql.Open(cfg.MySQL.DSN()), gcfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to mysql: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
		sqlDB.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
		return db, nil
	}

	db, err := gorm.Open(sqlite.Open(cfg.SQLite.Path), gcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	return db, nil
}

type Directory struct {
	db *gorm.DB
}

func NewDirectory(db *gorm.DB) (*Directory, error) {
	if err := db.AutoMigrate(&Staff{}); err != nil {
		return nil, fmt.Errorf("failed to migrate staff: %w", err)
	}
	return &Directory{db: db}, nil
}

type NewStaff struct {
	Login        string
	Name         string
	Password     string
	Role         models.Role
	RestaurantID string
}

func (d *Directory) Create(ctx context.Context, in NewStaff) (*Staff, error) {
	login := strings.TrimSpace(strings.ToLower(in.Login))
	if login == "" || len(in.Password) < 6 {
		return nil, apperr.Validationf("login and a password of at least 6 characters are required")
	}
	if in.Role != models.RoleAdmin && in.RestaurantID == "" {
		return nil, apperr.Validationf("restaurant is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	s := &Staff{
		ID:           repository.NewID(),
		Login:        login,
		Name:         in.Name,
		PasswordHash: string(hash),
		Role:         in.Role,
		RestaurantID: in.RestaurantID,
	}

	var count int64
	if err := d.db.WithContext(ctx).Model(&Staff{}).Where("login = ?", login).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, apperr.Conflictf("login %q is taken", login)
	}
	if err := d.db.WithContext(ctx).Create(s).Error; err != nil {
		return nil, fmt.Errorf("failed to create staff: %w", err)
	}
	return s, nil
}

func (d *Directory) Authenticate(ctx context.Context, login, password string) (*Staff, error) {
	var s Staff
	err := d.db.WithContext(ctx).Where("login = ?", strings.TrimSpace(strings.ToLower(login))).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Unauthorizedf("invalid login or password")
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(s.PasswordHash), []byte(password)) != nil {
		return nil, apperr.Unauthorizedf("invalid login or password")
	}
	return &s, nil
}

func (d *Directory) Get(ctx context.Context, id string) (*Staff, error) {
	var s Staff
	err := d.db.WithContext(ctx).First(&s, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFoundf("staff member not found")
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (d *Directory) List(ctx context.Context, restaurantID string, role models.Role) ([]*Staff, error) {
	var out []*Staff
	err := d.db.WithContext(ctx).
		Where("restaurant_id = ? AND role = ?", restaurantID, role).
		Order("created_at").
		Find(&out).Error
	return out, err
}

func (d *Directory) Delete(ctx context.Context, id string) error {
	res := d.db.WithContext(ctx).Delete(&Staff{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFoundf("staff member not found")
	}
	return nil
}

func (d *Directory) DeleteByRestaurant(ctx context.Context, restaurantID string) error {
	return d.db.WithContext(ctx).Delete(&Staff{}, "restaurant_id = ?", restaurantID).Error
}

// SeedAdmin creates the admin account on first start. Existing accounts are
// left untouched.
func (d *Directory) SeedAdmin(ctx context.Context, login, password string) error {
	if login == "" || password == "" {
		return nil
	}
	var count int64
	if err := d.db.WithContext(ctx).Model(&Staff{}).Where("role = ?", models.RoleAdmin).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	_, err := d.Create(ctx, NewStaff{Login: login, Name: "Administrator", Password: password, Role: models.RoleAdmin})
	return err
}
