package store

import (
	"context"
	"errors"
	"time"

	"github.com/activityladdr/laddr/internal/models"
	"gorm.io/gorm"
)

// Identity returns the provider identity linked to userID.
func (s *Store) Identity(ctx context.Context, userID uint, provider string) (*models.AuthIdentity, error) {
	var identity models.AuthIdentity
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND provider = ?", userID, provider).
		First(&identity).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &identity, nil
}

// UserByProviderID resolves the user behind an external account id.
func (s *Store) UserByProviderID(ctx context.Context, provider, providerUserID string) (*models.User, error) {
	var identity models.AuthIdentity
	err := s.db.WithContext(ctx).
		Where("provider = ? AND provider_user_id = ?", provider, providerUserID).
		First(&identity).Error
	if err != nil {
		return nil, notFound(err)
	}
	return s.GetUser(ctx, identity.UserID)
}

// SaveTokens stores refreshed credentials on an existing identity.
func (s *Store) SaveTokens(ctx context.Context, identity *models.AuthIdentity) error {
	return s.db.WithContext(ctx).Save(identity).Error
}

// LinkedUserIDs lists every user with a linked provider identity.
func (s *Store) LinkedUserIDs(ctx context.Context, provider string) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Model(&models.AuthIdentity{}).
		Where("provider = ?", provider).
		Distinct().
		Order("user_id ASC").
		Pluck("user_id", &ids).Error
	return ids, err
}

// LinkIdentity finds the user owning the external account or creates one from
// template, then stores the latest tokens and login time.
func (s *Store) LinkIdentity(ctx context.Context, template *models.User, identity *models.AuthIdentity, now time.Time) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.AuthIdentity
		err := tx.Where("provider = ? AND provider_user_id = ?", identity.Provider, identity.ProviderUserID).
			First(&existing).Error

		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			user = *template
			if err := tx.Create(&user).Error; err != nil {
				return err
			}
			identity.UserID = user.ID
			if err := tx.Create(identity).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			if err := tx.First(&user, existing.UserID).Error; err != nil {
				return notFound(err)
			}
			existing.AccessToken = identity.AccessToken
			existing.RefreshToken = identity.RefreshToken
			existing.TokenExpiry = identity.TokenExpiry
			if err := tx.Save(&existing).Error; err != nil {
				return err
			}
			*identity = existing
		}

		login := now.UTC()
		user.LastLoginAt = &login
		return tx.Model(&user).Update("last_login_at", login).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}
