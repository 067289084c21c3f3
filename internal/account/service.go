package account

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ONE2ALLINFOTECH/ecomerce/internal/models"
	"github.com/ONE2ALLINFOTECH/ecomerce/internal/pkg/utils"
	"github.com/ONE2ALLINFOTECH/ecomerce/internal/repository"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrEmailTaken         = errors.New("an account with this email already exists")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidResetToken  = errors.New("reset link is invalid or has expired")
)

const (
	minPasswordLength = 6

	purposeAccess = "access"
	purposeReset  = "reset"
)

// CustomerStore persists customers.
type CustomerStore interface {
	Create(ctx context.Context, customer *models.Customer) error
	FindByEmail(ctx context.Context, email string) (*models.Customer, error)
	FindByCustomerID(ctx context.Context, customerID string) (*models.Customer, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	UpdatePasswordHash(ctx context.Context, customerID, currentHash, newHash string) (bool, error)
}

// ResetDelivery hands a password reset token to the customer.
type ResetDelivery interface {
	SendReset(ctx context.Context, customer *models.Customer, token string) error
}

type Options struct {
	Secret     []byte
	AccessTTL  time.Duration
	ResetTTL   time.Duration
	BcryptCost int
	Now        func() time.Time
}

// Service registers customers and manages their credentials.
type Service struct {
	customers CustomerStore
	delivery  ResetDelivery
	opts      Options
	logger    *zap.Logger
}

func NewService(customers CustomerStore, delivery ResetDelivery, opts Options, logger *zap.Logger) *Service {
	if len(opts.Secret) == 0 {
		logger.Warn("JWT_SECRET is not set, using an ephemeral signing key")
		opts.Secret = []byte(utils.RandomHex(32))
	}
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = 24 * time.Hour
	}
	if opts.ResetTTL <= 0 {
		opts.ResetTTL = 15 * time.Minute
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{customers: customers, delivery: delivery, opts: opts, logger: logger}
}

// AuthResult is a signed-in customer.
type AuthResult struct {
	Customer  *models.Customer `json:"customer"`
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expiresAt"`
}

type claims struct {
	Purpose string `json:"purpose"`
	// PasswordFP binds a reset token to the password it replaces.
	PasswordFP string `json:"pwf,omitempty"`
	jwt.RegisteredClaims
}

// Register creates a customer account.
func (s *Service) Register(ctx context.Context, req models.RegisterCustomerRequest) (*AuthResult, error) {
	name := strings.TrimSpace(req.Name)
	email := strings.TrimSpace(req.Email)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: a valid email is required", ErrInvalidInput)
	}
	if err := checkPassword(req.Password, req.ConfirmPassword); err != nil {
		return nil, err
	}

	taken, err := s.customers.EmailExists(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if taken {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.opts.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	customer := &models.Customer{
		CustomerID:   utils.GenerateCustomerID(),
		Name:         name,
		Email:        email,
		Phone:        strings.TrimSpace(req.Phone),
		PasswordHash: string(hash),
	}
	if err := s.customers.Create(ctx, customer); err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}

	s.logger.Info("Customer registered",
		zap.String("customer_id", customer.CustomerID),
		zap.String("email", utils.MaskEmail(customer.Email)),
	)
	return s.issueAccess(customer)
}

// Login checks credentials and issues an access token.
func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	customer, err := s.customers.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("find customer: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(customer.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.issueAccess(customer)
}

// ForgotPassword sends a reset token when the email is registered. The
// outcome is the same either way so callers cannot probe for accounts.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	customer, err := s.customers.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		s.logger.Info("Password reset requested for unknown email", zap.String("email", utils.MaskEmail(email)))
		return nil
	}
	if err != nil {
		return fmt.Errorf("find customer: %w", err)
	}

	now := s.opts.Now()
	token, err := s.sign(claims{
		Purpose:    purposeReset,
		PasswordFP: utils.Fingerprint(customer.PasswordHash),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   customer.CustomerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.opts.ResetTTL)),
			ID:        utils.GenerateUUID(),
		},
	})
	if err != nil {
		return err
	}

	if err := s.delivery.SendReset(ctx, customer, token); err != nil {
		s.logger.Error("Password reset delivery failed", zap.String("customer_id", customer.CustomerID), zap.Error(err))
		return fmt.Errorf("deliver reset: %w", err)
	}
	return nil
}

// ResetPassword replaces the password named by a reset token. A token stops
// working once the password it was issued for has changed.
func (s *Service) ResetPassword(ctx context.Context, token, password, confirm string) error {
	if err := checkPassword(password, confirm); err != nil {
		return err
	}

	c, err := s.parse(token, purposeReset)
	if err != nil {
		return ErrInvalidResetToken
	}

	customer, err := s.customers.FindByCustomerID(ctx, c.Subject)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrInvalidResetToken
	}
	if err != nil {
		return fmt.Errorf("find customer: %w", err)
	}
	if c.PasswordFP != utils.Fingerprint(customer.PasswordHash) {
		return ErrInvalidResetToken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.opts.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	ok, err := s.customers.UpdatePasswordHash(ctx, customer.CustomerID, customer.PasswordHash, string(hash))
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if !ok {
		return ErrInvalidResetToken
	}

	s.logger.Info("Customer password reset", zap.String("customer_id", customer.CustomerID))
	return nil
}

// Authenticate validates an access token and returns its customer id.
func (s *Service) Authenticate(token string) (string, error) {
	c, err := s.parse(token, purposeAccess)
	if err != nil {
		return "", ErrInvalidCredentials
	}
	return c.Subject, nil
}

func (s *Service) issueAccess(customer *models.Customer) (*AuthResult, error) {
	now := s.opts.Now()
	expires := now.Add(s.opts.AccessTTL)
	token, err := s.sign(claims{
		Purpose: purposeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   customer.CustomerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	})
	if err != nil {
		return nil, err
	}
	return &AuthResult{Customer: customer, Token: token, ExpiresAt: expires}, nil
}

func (s *Service) sign(c claims) (string, error) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.opts.Secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

func (s *Service) parse(token, purpose string) (*claims, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.opts.Secret, nil
	}, jwt.WithTimeFunc(s.opts.Now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if c.Purpose != purpose || c.Subject == "" {
		return nil, fmt.Errorf("token purpose %q, want %q", c.Purpose, purpose)
	}
	return &c, nil
}

func checkPassword(password, confirm string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}
	if password != confirm {
		return ErrPasswordMismatch
	}
	return nil
}
