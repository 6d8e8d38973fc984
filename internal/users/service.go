package users

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/clipshare/internal/apperr"
	"github.com/MarcoPoloResearchLab/clipshare/internal/auth"
	"github.com/MarcoPoloResearchLab/clipshare/internal/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("users: database connection required")
	errMissingIDProvider = errors.New("users: id provider required")
)

const (
	opResolveGoogleUser = "users.resolve_google_user"
	opGet               = "users.get"
	opUpdateProfile     = "users.update_profile"
	opSearch            = "users.search"
	opListExcluding     = "users.list_excluding"
	opListByIDs         = "users.list_by_ids"
)

// ServiceConfig describes the dependencies required for user management.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider model.IDProvider
	Logger     *zap.Logger
}

// Service resolves verified Google identities to users and manages profiles.
type Service struct {
	db         *gorm.DB
	now        func() time.Time
	idProvider model.IDProvider
	logger     *zap.Logger
}

// ProfileUpdate carries the mutable profile fields. Nil fields are left untouched.
type ProfileUpdate struct {
	Username *string `json:"username"`
	Avatar   *string `json:"avatar"`
	Cover    *string `json:"cover"`
	About    *string `json:"about"`
}

// NewService constructs the user service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.IDProvider == nil {
		return nil, errMissingIDProvider
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:         cfg.Database,
		now:        clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// ResolveGoogleUser returns the user owning the verified email, creating it on first sign-in.
func (s *Service) ResolveGoogleUser(ctx context.Context, claims auth.GoogleClaims) (model.User, error) {
	email := normalizeEmail(claims.Email)
	if email == "" {
		return model.User{}, apperr.New(apperr.KindUnauthenticated, opResolveGoogleUser, "missing_email", "credential carries no email", nil)
	}

	user, found, err := s.findByEmail(ctx, email)
	if err != nil {
		s.logError(opResolveGoogleUser, "user_select_failed", err, zap.String("email", email))
		return model.User{}, apperr.Internal(opResolveGoogleUser, "user_select_failed", err)
	}
	if found {
		return user, nil
	}

	userID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opResolveGoogleUser, "id_generation_failed", err)
		return model.User{}, apperr.Internal(opResolveGoogleUser, "id_generation_failed", err)
	}
	username := deriveUsername(claims.Name, email)
	user = model.User{
		ID:             userID,
		Username:       username,
		UsernameFolded: model.Fold(username),
		Email:          email,
		Avatar:         strings.TrimSpace(claims.Picture),
		CreatedAt:      s.now().UTC(),
	}
	if createErr := s.db.WithContext(ctx).Create(&user).Error; createErr != nil {
		// A concurrent sign-in may have inserted the same email first.
		existing, found, err := s.findByEmail(ctx, email)
		if err == nil && found {
			return existing, nil
		}
		s.logError(opResolveGoogleUser, "user_insert_failed", createErr, zap.String("email", email))
		return model.User{}, apperr.Internal(opResolveGoogleUser, "user_insert_failed", createErr)
	}

	s.logger.Info("user created", zap.String("user_id", user.ID))
	return user, nil
}

// Get returns the user with the given id.
func (s *Service) Get(ctx context.Context, userID string) (model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).Where("id = ?", userID).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.User{}, apperr.New(apperr.KindNotFound, opGet, "user_not_found", "user not found", nil)
	}
	if err != nil {
		s.logError(opGet, "user_select_failed", err, zap.String("user_id", userID))
		return model.User{}, apperr.Internal(opGet, "user_select_failed", err)
	}
	return user, nil
}

// UpdateProfile applies the provided fields to the user's own record.
func (s *Service) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (model.User, error) {
	updates := map[string]any{}
	if update.Username != nil {
		username := strings.TrimSpace(*update.Username)
		if username == "" {
			return model.User{}, apperr.New(apperr.KindValidation, opUpdateProfile, "blank_username", "username must not be empty", nil)
		}
		updates["username"] = username
		updates["username_folded"] = model.Fold(username)
	}
	if update.Avatar != nil {
		updates["avatar"] = strings.TrimSpace(*update.Avatar)
	}
	if update.Cover != nil {
		updates["cover"] = strings.TrimSpace(*update.Cover)
	}
	if update.About != nil {
		updates["about"] = *update.About
	}

	if _, err := s.Get(ctx, userID); err != nil {
		return model.User{}, err
	}
	if len(updates) > 0 {
		updates["updated_at"] = s.now().UTC()
		if err := s.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", userID).Updates(updates).Error; err != nil {
			s.logError(opUpdateProfile, "user_update_failed", err, zap.String("user_id", userID))
			return model.User{}, apperr.Internal(opUpdateProfile, "user_update_failed", err)
		}
	}
	return s.Get(ctx, userID)
}

// Search returns users whose username contains query, ignoring case.
func (s *Service) Search(ctx context.Context, query string) ([]model.User, error) {
	needle := model.Fold(strings.TrimSpace(query))
	if needle == "" {
		return nil, apperr.New(apperr.KindValidation, opSearch, "empty_query", "search query is required", nil)
	}
	var found []model.User
	err := s.db.WithContext(ctx).
		Where("INSTR(username_folded, ?) > 0", needle).
		Order("created_at ASC").
		Order("id ASC").
		Find(&found).Error
	if err != nil {
		s.logError(opSearch, "user_select_failed", err)
		return nil, apperr.Internal(opSearch, "user_select_failed", err)
	}
	return found, nil
}

// ListExcluding returns up to limit users other than excludeID, oldest accounts first.
func (s *Service) ListExcluding(ctx context.Context, excludeID string, limit int) ([]model.User, error) {
	query := s.db.WithContext(ctx).Order("created_at ASC").Order("id ASC")
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	var found []model.User
	if err := query.Find(&found).Error; err != nil {
		s.logError(opListExcluding, "user_select_failed", err)
		return nil, apperr.Internal(opListExcluding, "user_select_failed", err)
	}
	return found, nil
}

// ListByIDs returns the users with the given ids keyed by id.
func (s *Service) ListByIDs(ctx context.Context, userIDs []string) (map[string]model.User, error) {
	result := make(map[string]model.User, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}
	var found []model.User
	if err := s.db.WithContext(ctx).Where("id IN ?", userIDs).Find(&found).Error; err != nil {
		s.logError(opListByIDs, "user_select_failed", err)
		return nil, apperr.Internal(opListByIDs, "user_select_failed", err)
	}
	for _, user := range found {
		result[user.ID] = user
	}
	return result, nil
}

func (s *Service) findByEmail(ctx context.Context, email string) (model.User, bool, error) {
	var user model.User
	err := s.db.WithContext(ctx).Where("email = ?", email).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.User{}, false, nil
	}
	if err != nil {
		return model.User{}, false, err
	}
	return user, true, nil
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("users service error", attrs...)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func deriveUsername(name, email string) string {
	if trimmed := strings.TrimSpace(name); trimmed != "" {
		return trimmed
	}
	localPart, _, _ := strings.Cut(email, "@")
	return localPart
}
