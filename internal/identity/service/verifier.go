package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"

	"github.com/gaini88088/expert-pancake/internal/identity/domain"
	"github.com/gaini88088/expert-pancake/internal/security"
)

// Sentinel errors for credential verification; the HTTP layer maps them to
// status codes.
var (
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrUserNotFound           = errors.New("user not found")

	// ErrInvalidInput wraps registration input the service rejects. The
	// wrapped message names the rule that failed.
	ErrInvalidInput = errors.New("invalid input")
)

// UserRepo is the minimal user repository needed by the verifier.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	UpdateTOTPSecret(ctx context.Context, userID, secret string) error
}

// Verifier checks local credentials and manages registration. It decides
// nothing about sessions; callers carry the verified user id downstream.
type Verifier struct {
	users      UserRepo
	hasher     *security.Hasher
	totpIssuer string
}

// NewVerifier returns a Verifier. totpIssuer names this service in
// authenticator apps when users enroll.
func NewVerifier(users UserRepo, hasher *security.Hasher, totpIssuer string) *Verifier {
	if totpIssuer == "" {
		totpIssuer = "expert-pancake"
	}
	return &Verifier{users: users, hasher: hasher, totpIssuer: totpIssuer}
}

// Register creates a user with a bcrypt password hash. Email is normalized to
// lower case.
func (v *Verifier) Register(ctx context.Context, email, password, name string) (*domain.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	existing, err := v.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailAlreadyRegistered
	}
	hashed, err := v.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: hashed,
		Status:       domain.UserStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}
	if err := v.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// VerifyCredentials returns the user when email and password match an active
// account. Every failure mode returns ErrInvalidCredentials so callers cannot
// distinguish unknown accounts from wrong passwords.
func (v *Verifier) VerifyCredentials(ctx context.Context, email, password string) (*domain.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := v.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || user.Status != domain.UserStatusActive || user.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := v.hasher.Compare(user.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// TOTPSecret returns the user's enrolled authenticator secret, or an empty
// string when none is enrolled or the user is unknown.
func (v *Verifier) TOTPSecret(ctx context.Context, userID string) (string, error) {
	user, err := v.users.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", nil
	}
	return user.TOTPSecret, nil
}

// EnrollTOTP generates and stores a fresh TOTP secret for the user and
// returns the otpauth:// provisioning URL for authenticator apps. Re-enrolling
// replaces the previous secret.
func (v *Verifier) EnrollTOTP(ctx context.Context, userID string) (secret, url string, err error) {
	user, err := v.users.GetByID(ctx, userID)
	if err != nil {
		return "", "", err
	}
	if user == nil {
		return "", "", ErrUserNotFound
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      v.totpIssuer,
		AccountName: user.Email,
	})
	if err != nil {
		return "", "", err
	}
	if err := v.users.UpdateTOTPSecret(ctx, userID, key.Secret()); err != nil {
		return "", "", err
	}
	return key.Secret(), key.URL(), nil
}

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	const simpleEmail = `^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`
	ok, _ := regexp.MatchString(simpleEmail, email)
	if !ok {
		return fmt.Errorf("%w: invalid email format", ErrInvalidInput)
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < 12 {
		return fmt.Errorf("%w: password must be at least 12 characters", ErrInvalidInput)
	}
	var hasUpper, hasLower, hasNumber, hasSymbol bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasNumber = true
		case r < '0' || (r > '9' && r < 'A') || (r > 'Z' && r < 'a') || r > 'z':
			hasSymbol = true
		}
	}
	if !hasUpper {
		return fmt.Errorf("%w: password must contain at least one uppercase letter", ErrInvalidInput)
	}
	if !hasLower {
		return fmt.Errorf("%w: password must contain at least one lowercase letter", ErrInvalidInput)
	}
	if !hasNumber {
		return fmt.Errorf("%w: password must contain at least one number", ErrInvalidInput)
	}
	if !hasSymbol {
		return fmt.Errorf("%w: password must contain at least one symbol", ErrInvalidInput)
	}
	return nil
}
