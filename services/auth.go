package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"electrotech/jwt"
	"electrotech/models"
)

const invalidCredentials = "incorrect username or password"

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]{3,50}$`)
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+$`)
)

// TokenSigner is the sign/verify primitive behind session tokens.
type TokenSigner interface {
	Sign(userID uint, username, role string, ttl time.Duration) (string, *jwt.Claims, error)
	Verify(token string) (*jwt.Claims, error)
}

type AuthService struct {
	db       *gorm.DB
	hasher   PasswordHasher
	signer   TokenSigner
	tokenTTL time.Duration
	now      func() time.Time
}

func NewAuthService(db *gorm.DB, hasher PasswordHasher, signer TokenSigner, tokenTTL time.Duration) *AuthService {
	return &AuthService{
		db:       db,
		hasher:   hasher,
		signer:   signer,
		tokenTTL: tokenTTL,
		now:      time.Now,
	}
}

func ValidateUsername(username string) bool {
	return usernamePattern.MatchString(username)
}

func ValidateEmail(email string) bool {
	return len(email) <= 100 && emailPattern.MatchString(email)
}

// ValidatePassword requires 8-72 characters (bcrypt's input limit), at least one letter and
// one digit, and no whitespace.
func ValidatePassword(password string) bool {
	if len(password) < 8 || len(password) > 72 {
		return false
	}

	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsSpace(r):
			return false
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	return hasLetter && hasDigit
}

type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
}

func (in *RegisterInput) normalize() {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Phone = strings.TrimSpace(in.Phone)
}

func validName(name string) bool {
	return name != "" && len(name) <= 100
}

func (in RegisterInput) validate() error {
	if !ValidateUsername(in.Username) {
		return NewValidationError("username", "must be 3-50 letters, digits, '.', '_' or '-'")
	}
	if !ValidateEmail(in.Email) {
		return NewValidationError("email", "invalid email address")
	}
	if !ValidatePassword(in.Password) {
		return NewValidationError("password", "must be 8-72 characters with at least one letter and one digit")
	}
	if !validName(in.FirstName) {
		return NewValidationError("first_name", "must be 1-100 characters")
	}
	if !validName(in.LastName) {
		return NewValidationError("last_name", "must be 1-100 characters")
	}
	if len(in.Phone) > 20 {
		return NewValidationError("phone", "must be at most 20 characters")
	}
	return nil
}

func isTaken(tx *gorm.DB, column, value string) (bool, error) {
	var count int64
	err := tx.Model(&models.User{}).Unscoped().Where(column+" = ?", value).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Register creates a customer account together with its empty cart.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}

	hashedPassword, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := models.User{
		Username:  in.Username,
		Email:     in.Email,
		Password:  hashedPassword,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Phone:     in.Phone,
		Role:      models.RoleCustomer,
		Status:    models.AccountActive,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taken, err := isTaken(tx, "email", in.Email)
		if err != nil {
			return fmt.Errorf("check email: %w", err)
		}
		if taken {
			return &ConflictError{Field: "email", Message: "email is already registered"}
		}

		taken, err = isTaken(tx, "username", in.Username)
		if err != nil {
			return fmt.Errorf("check username: %w", err)
		}
		if taken {
			return &ConflictError{Field: "username", Message: "username is already taken"}
		}

		if err := tx.Create(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return &ConflictError{Message: "username or email is already registered"}
			}
			return fmt.Errorf("create user: %w", err)
		}

		if err := tx.Create(&models.Cart{UserID: user.ID}).Error; err != nil {
			return fmt.Errorf("create cart: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &user, nil
}

type LoginResult struct {
	AccessToken string
	ExpiresAt   time.Time
	User        models.User
}

// Login accepts either the username or the email as identifier. Unknown accounts and wrong
// passwords fail with the same UnauthorizedError.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (*LoginResult, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, &UnauthorizedError{Message: invalidCredentials}
	}

	db := s.db.WithContext(ctx)

	var user models.User
	err := db.
		Where("username = ? OR email = ?", identifier, strings.ToLower(identifier)).
		First(&user).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &UnauthorizedError{Message: invalidCredentials}
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	if !s.hasher.Verify(password, user.Password) {
		return nil, &UnauthorizedError{Message: invalidCredentials}
	}
	if !user.IsActive() {
		return nil, &UnauthorizedError{Message: "account is not active"}
	}

	token, claims, err := s.signer.Sign(user.ID, user.Username, user.Role, s.tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	now := s.now()
	err = db.Transaction(func(tx *gorm.DB) error {
		// drop this user's expired sessions
		if err := tx.Where("user_id = ? AND expires_at < ?", user.ID, now).Delete(&models.LoginToken{}).Error; err != nil {
			return err
		}
		loginToken := models.LoginToken{
			TokenID:   claims.ID,
			UserID:    user.ID,
			ExpiresAt: claims.ExpiresAt.Time,
		}
		if err := tx.Create(&loginToken).Error; err != nil {
			return err
		}
		return tx.Model(&user).UpdateColumn("last_login_at", now).Error
	})
	if err != nil {
		return nil, fmt.Errorf("store login token: %w", err)
	}
	user.LastLoginAt = &now

	return &LoginResult{
		AccessToken: token,
		ExpiresAt:   claims.ExpiresAt.Time,
		User:        user,
	}, nil
}

// Authenticate verifies a bearer token and resolves the caller. It fails closed: bad signature,
// expiry, a revoked session or a missing/suspended user all yield UnauthorizedError.
func (s *AuthService) Authenticate(ctx context.Context, token string) (Identity, error) {
	claims, err := s.signer.Verify(token)
	if err != nil {
		return Identity{}, &UnauthorizedError{Message: "invalid or expired token"}
	}

	db := s.db.WithContext(ctx)

	var loginToken models.LoginToken
	err = db.Where("token_id = ?", claims.ID).First(&loginToken).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Identity{}, &UnauthorizedError{Message: "session has been revoked"}
		}
		return Identity{}, fmt.Errorf("find login token: %w", err)
	}
	if loginToken.UserID != claims.UserID {
		return Identity{}, &UnauthorizedError{Message: "invalid or expired token"}
	}

	var user models.User
	err = db.First(&user, claims.UserID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Identity{}, &UnauthorizedError{Message: "user no longer exists"}
		}
		return Identity{}, fmt.Errorf("find user: %w", err)
	}
	if !user.IsActive() {
		return Identity{}, &UnauthorizedError{Message: "account is not active"}
	}

	return Identity{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		TokenID:  claims.ID,
	}, nil
}

// Logout revokes the session the identity was resolved from.
func (s *AuthService) Logout(ctx context.Context, identity Identity) error {
	result := s.db.WithContext(ctx).
		Where("token_id = ? AND user_id = ?", identity.TokenID, identity.UserID).
		Delete(&models.LoginToken{})
	if result.Error != nil {
		return fmt.Errorf("delete login token: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return &NotFoundError{Resource: "session"}
	}
	return nil
}

func (s *AuthService) Profile(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		return nil, notFoundOr(err, "user", userID)
	}
	return &user, nil
}

// ProfileUpdate carries optional changes; nil leaves a field untouched. Changing the email
// or the password requires the current password.
type ProfileUpdate struct {
	Email       *string
	FirstName   *string
	LastName    *string
	Phone       *string
	OldPassword string
	NewPassword string
}

func (s *AuthService) UpdateProfile(ctx context.Context, userID uint, upd ProfileUpdate) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&user, userID).Error; err != nil {
			return notFoundOr(err, "user", userID)
		}

		sensitive := upd.NewPassword != "" || upd.Email != nil
		if sensitive && !s.hasher.Verify(upd.OldPassword, user.Password) {
			return &UnauthorizedError{Message: "current password is incorrect"}
		}

		if upd.NewPassword != "" {
			if !ValidatePassword(upd.NewPassword) {
				return NewValidationError("new_password", "must be 8-72 characters with at least one letter and one digit")
			}
			hashedPassword, err := s.hasher.Hash(upd.NewPassword)
			if err != nil {
				return fmt.Errorf("hash password: %w", err)
			}
			user.Password = hashedPassword
		}

		if upd.Email != nil {
			email := strings.ToLower(strings.TrimSpace(*upd.Email))
			if !ValidateEmail(email) {
				return NewValidationError("email", "invalid email address")
			}
			if email != user.Email {
				taken, err := isTaken(tx, "email", email)
				if err != nil {
					return fmt.Errorf("check email: %w", err)
				}
				if taken {
					return &ConflictError{Field: "email", Message: "email is already registered"}
				}
				user.Email = email
			}
		}

		if upd.FirstName != nil {
			firstName := strings.TrimSpace(*upd.FirstName)
			if !validName(firstName) {
				return NewValidationError("first_name", "must be 1-100 characters")
			}
			user.FirstName = firstName
		}
		if upd.LastName != nil {
			lastName := strings.TrimSpace(*upd.LastName)
			if !validName(lastName) {
				return NewValidationError("last_name", "must be 1-100 characters")
			}
			user.LastName = lastName
		}
		if upd.Phone != nil {
			phone := strings.TrimSpace(*upd.Phone)
			if len(phone) > 20 {
				return NewValidationError("phone", "must be at most 20 characters")
			}
			user.Phone = phone
		}

		if err := tx.Omit(clause.Associations).Save(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return &ConflictError{Field: "email", Message: "email is already registered"}
			}
			return fmt.Errorf("save user: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ListUsers returns a page of the user directory ordered by id.
func (s *AuthService) ListUsers(ctx context.Context, page Page) ([]models.User, int64, error) {
	db := s.db.WithContext(ctx)

	var total int64
	if err := db.Model(&models.User{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	var users []models.User
	if err := page.apply(db.Order("id asc")).Find(&users).Error; err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	return users, total, nil
}
