package user

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yetuga/portal/internal/models"
)

const mysqlDuplicateEntry = 1062

type GormStore struct{ db *gorm.DB }

func NewGormStore(db *gorm.DB) *GormStore { return &GormStore{db: db} }

func (g *GormStore) first(ctx context.Context, query string, args ...interface{}) (*models.UserModel, error) {
	var u models.UserModel
	if err := g.db.WithContext(ctx).Where(query, args...).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (g *GormStore) FindByIdentifier(ctx context.Context, identifier string) (*models.UserModel, error) {
	return g.first(ctx, "(username = ? OR email = ?) AND is_active = ?", identifier, identifier, true)
}

func (g *GormStore) FindActiveByEmail(ctx context.Context, email string) (*models.UserModel, error) {
	return g.first(ctx, "email = ? AND is_active = ?", email, true)
}

func (g *GormStore) FindByID(ctx context.Context, id int64) (*models.UserModel, error) {
	return g.first(ctx, "id = ?", id)
}

func (g *GormStore) exists(ctx context.Context, column, value string) (bool, error) {
	var count int64
	err := g.db.WithContext(ctx).Model(&models.UserModel{}).Where(column+" = ?", value).Count(&count).Error
	return count > 0, err
}

func (g *GormStore) UsernameExists(ctx context.Context, username string) (bool, error) {
	return g.exists(ctx, "username", username)
}

func (g *GormStore) EmailExists(ctx context.Context, email string) (bool, error) {
	return g.exists(ctx, "email", email)
}

func (g *GormStore) Create(ctx context.Context, u *models.UserModel) error {
	err := g.db.WithContext(ctx).Create(u).Error
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
		if strings.Contains(myErr.Message, "email") {
			return ErrEmailTaken
		}
		return ErrUsernameTaken
	}
	return err
}

func (g *GormStore) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	return g.db.WithContext(ctx).Model(&models.UserModel{}).Where("id = ?", id).Update("last_login", at).Error
}

func (g *GormStore) UpdatePassword(ctx context.Context, id int64, hash string) error {
	return g.db.WithContext(ctx).Model(&models.UserModel{}).Where("id = ?", id).Update("password_hash", hash).Error
}

func (g *GormStore) UpsertReset(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) error {
	row := models.PasswordResetModel{UserID: userID, TokenHash: tokenHash, ExpiresAt: expiresAt}
	return g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"token_hash", "expires_at", "created_at"}),
	}).Create(&row).Error
}

func (g *GormStore) FindReset(ctx context.Context, tokenHash string) (*models.PasswordResetModel, error) {
	var row models.PasswordResetModel
	if err := g.db.WithContext(ctx).Where("token_hash = ?", tokenHash).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &row, nil
}

func (g *GormStore) DeleteReset(ctx context.Context, userID int64) error {
	return g.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.PasswordResetModel{}).Error
}
