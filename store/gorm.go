package store

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kasuganosora/mmocache/entity"
	"github.com/kasuganosora/mmocache/model"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// GormStore implements Store on any gorm dialect. Tables come from
// model.AutoMigrate.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps db.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// wrap maps gorm errors onto the package sentinels.
func wrap(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("store: %s: %w", op, ErrDuplicate)
	default:
		return fmt.Errorf("store: %s: %w", op, err)
	}
}

// ---- accounts ----

func (s *GormStore) CreateUserLogin(ctx context.Context, username, password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("store: hash password: %w", err)
	}
	acc := model.Account{ID: uuid.NewString(), Username: username, PasswordHash: string(hash)}
	if err := s.conn(ctx).Create(&acc).Error; err != nil {
		return "", wrap("create user login", err)
	}
	return acc.ID, nil
}

func (s *GormStore) ValidateUserLogin(ctx context.Context, username, password string) (string, error) {
	var acc model.Account
	err := s.conn(ctx).Select("id", "password_hash").Where("username = ?", username).First(&acc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", wrap("validate user login", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)) != nil {
		return "", nil
	}
	return acc.ID, nil
}

func (s *GormStore) ValidateAccessToken(ctx context.Context, accountID, token string) (bool, error) {
	var acc model.Account
	err := s.conn(ctx).Select("access_token").Where("id = ?", accountID).First(&acc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, wrap("validate access token", err)
	}
	if acc.AccessToken == "" || token == "" {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(acc.AccessToken), []byte(token)) == 1, nil
}

func (s *GormStore) account(ctx context.Context, accountID, column string) (*model.Account, error) {
	var acc model.Account
	err := s.conn(ctx).Select(column).Where("id = ?", accountID).First(&acc).Error
	if err != nil {
		return nil, wrap("read account "+column, err)
	}
	return &acc, nil
}

func (s *GormStore) GetUserLevel(ctx context.Context, accountID string) (uint8, error) {
	acc, err := s.account(ctx, accountID, "user_level")
	if err != nil {
		return 0, err
	}
	return acc.UserLevel, nil
}

func (s *GormStore) GetGold(ctx context.Context, accountID string) (int64, error) {
	acc, err := s.account(ctx, accountID, "gold")
	if err != nil {
		return 0, err
	}
	return acc.Gold, nil
}

func (s *GormStore) GetCash(ctx context.Context, accountID string) (int64, error) {
	acc, err := s.account(ctx, accountID, "cash")
	if err != nil {
		return 0, err
	}
	return acc.Cash, nil
}

func (s *GormStore) UpdateGold(ctx context.Context, accountID string, gold int64) error {
	return wrap("update gold", s.conn(ctx).Model(&model.Account{}).
		Where("id = ?", accountID).Update("gold", gold).Error)
}

func (s *GormStore) UpdateCash(ctx context.Context, accountID string, cash int64) error {
	return wrap("update cash", s.conn(ctx).Model(&model.Account{}).
		Where("id = ?", accountID).Update("cash", cash).Error)
}

func (s *GormStore) UpdateAccessToken(ctx context.Context, accountID, token string) error {
	now := time.Now()
	return wrap("update access token", s.conn(ctx).Model(&model.Account{}).
		Where("id = ?", accountID).
		Updates(map[string]any{"access_token": token, "last_login_at": &now}).Error)
}

func (s *GormStore) FindUsername(ctx context.Context, username string) (int64, error) {
	var n int64
	err := s.conn(ctx).Model(&model.Account{}).Where("username = ?", username).Count(&n).Error
	return n, wrap("find username", err)
}

// ---- characters ----

func (s *GormStore) CreateCharacter(ctx context.Context, accountID string, c *entity.Character) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.AccountID = accountID
	row := characterRow(accountID, c)
	return wrap("create character", s.conn(ctx).Create(&row).Error)
}

func (s *GormStore) ReadCharacter(ctx context.Context, id string) (*entity.Character, error) {
	var row model.Character
	if err := s.conn(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, wrap("read character", err)
	}
	return characterEntity(&row), nil
}

func (s *GormStore) ReadCharacters(ctx context.Context, accountID string) ([]*entity.Character, error) {
	var rows []model.Character
	err := s.conn(ctx).Where("account_id = ?", accountID).Order("created_at").Find(&rows).Error
	if err != nil {
		return nil, wrap("read characters", err)
	}
	out := make([]*entity.Character, len(rows))
	for i := range rows {
		out[i] = characterEntity(&rows[i])
	}
	return out, nil
}

func (s *GormStore) UpdateCharacter(ctx context.Context, c *entity.Character) error {
	row := characterRow(c.AccountID, c)
	res := s.conn(ctx).Model(&model.Character{ID: c.ID}).
		Select("*").Omit("id", "account_id", "created_at").
		Updates(&row)
	if res.Error != nil {
		return wrap("update character", res.Error)
	}
	return nil
}

func (s *GormStore) DeleteCharacter(ctx context.Context, accountID, id string) error {
	return wrap("delete character", s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND account_id = ?", id, accountID).Delete(&model.Character{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		return tx.Where("char_id = ? OR friend_id = ?", id, id).Delete(&model.Friendship{}).Error
	}))
}

func (s *GormStore) FindCharacterName(ctx context.Context, name string) (int64, error) {
	var n int64
	err := s.conn(ctx).Model(&model.Character{}).Where("name = ?", name).Count(&n).Error
	return n, wrap("find character name", err)
}

// findCharactersLimit caps FindCharacters results.
const findCharactersLimit = 20

func (s *GormStore) FindCharacters(ctx context.Context, name string) ([]entity.SocialCharacter, error) {
	var rows []model.Character
	err := s.conn(ctx).Where("name LIKE ?", "%"+name+"%").
		Order("name").Limit(findCharactersLimit).Find(&rows).Error
	if err != nil {
		return nil, wrap("find characters", err)
	}
	return socialList(rows), nil
}

func (s *GormStore) GetIDByCharacterName(ctx context.Context, name string) (string, error) {
	var row model.Character
	if err := s.conn(ctx).Select("id").Where("name = ?", name).First(&row).Error; err != nil {
		return "", wrap("id by character name", err)
	}
	return row.ID, nil
}

func (s *GormStore) GetAccountIDByCharacterName(ctx context.Context, name string) (string, error) {
	var row model.Character
	if err := s.conn(ctx).Select("account_id").Where("name = ?", name).First(&row).Error; err != nil {
		return "", wrap("account id by character name", err)
	}
	return row.AccountID, nil
}

func socialList(rows []model.Character) []entity.SocialCharacter {
	out := make([]entity.SocialCharacter, len(rows))
	for i := range rows {
		out[i] = socialEntity(&rows[i])
	}
	return out
}
