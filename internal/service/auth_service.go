package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"doubtiq-go/internal/model"
	"doubtiq-go/internal/repository"
	"doubtiq-go/pkg/hash"
	"doubtiq-go/pkg/log"
	"doubtiq-go/pkg/mail"
	"doubtiq-go/pkg/token"
)

// DefaultOTPTTL is how long a password-reset code stays valid.
const DefaultOTPTTL = 10 * time.Minute

// UserView is the public projection of a user.
type UserView struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}

// NewUserView projects user for responses.
func NewUserView(user *model.User) UserView {
	return UserView{ID: user.ID, Name: user.Name, Email: user.Email, Role: user.Role}
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	Token string
	User  UserView
}

// ForgotPasswordResult carries the issued code only in diagnostic mode when
// mail could not be delivered.
type ForgotPasswordResult struct {
	Code string
}

// AuthService covers registration, login and OTP-based password recovery.
type AuthService interface {
	Register(ctx context.Context, name, email, password string) (*AuthResult, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	ForgotPassword(ctx context.Context, email string) (*ForgotPasswordResult, error)
	VerifyOTP(ctx context.Context, email, code string) error
	ResetPassword(ctx context.Context, email, code, newPassword string) error
	// GetCurrentUser resolves a bearer token to an active user.
	GetCurrentUser(ctx context.Context, tokenString string) (*model.User, error)
}

// AuthOptions tunes an AuthService. Zero values fall back to defaults.
type AuthOptions struct {
	OTPTTL      time.Duration
	MailTimeout time.Duration
	// Diagnostic exposes undelivered OTP codes in the response.
	Diagnostic  bool
	AdminEmails []string
	Now         func() time.Time
}

type authService struct {
	userRepo    repository.UserRepository
	otpRepo     repository.OTPRepository
	jwtManager  *token.JWTManager
	mailer      mail.Sender
	otpTTL      time.Duration
	mailTimeout time.Duration
	diagnostic  bool
	adminEmails map[string]bool
	now         func() time.Time
}

// NewAuthService creates an AuthService.
func NewAuthService(userRepo repository.UserRepository, otpRepo repository.OTPRepository, jwtManager *token.JWTManager, mailer mail.Sender, opts AuthOptions) AuthService {
	s := &authService{
		userRepo:    userRepo,
		otpRepo:     otpRepo,
		jwtManager:  jwtManager,
		mailer:      mailer,
		otpTTL:      opts.OTPTTL,
		mailTimeout: opts.MailTimeout,
		diagnostic:  opts.Diagnostic,
		adminEmails: make(map[string]bool),
		now:         opts.Now,
	}
	if s.otpTTL <= 0 {
		s.otpTTL = DefaultOTPTTL
	}
	if s.mailTimeout <= 0 {
		s.mailTimeout = 10 * time.Second
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.mailer == nil {
		s.mailer = mail.NopSender{}
	}
	for _, e := range opts.AdminEmails {
		s.adminEmails[normalizeEmail(e)] = true
	}
	return s
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an account and signs the user in.
func (s *authService) Register(ctx context.Context, name, email, password string) (*AuthResult, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" || email == "" || password == "" {
		return nil, newError(ErrValidation, "Name, email, and password are required", nil)
	}
	if !s.jwtManager.Configured() {
		return nil, newError(ErrConfiguration, "Server JWT not configured", token.ErrSecretNotConfigured)
	}

	_, err := s.userRepo.FindByEmail(ctx, email)
	if err == nil {
		return nil, newError(ErrConflict, "User already exists", nil)
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("look up user: %w", err)
	}

	hashedPassword, err := hash.HashPassword(password)
	if err != nil {
		return nil, err
	}

	role := model.RoleUser
	if s.adminEmails[email] {
		role = model.RoleAdmin
	}
	user := &model.User{
		Name:     name,
		Email:    email,
		Password: hashedPassword,
		Role:     role,
		IsActive: true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			// lost a race with a concurrent registration
			return nil, newError(ErrConflict, "User already exists", nil)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	log.Infow("user registered", "userId", user.ID)

	return s.issue(user)
}

// Login checks credentials. Unknown email and wrong password fail identically.
func (s *authService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, newError(ErrValidation, "Email and password are required", nil)
	}
	if !s.jwtManager.Configured() {
		return nil, newError(ErrConfiguration, "Server JWT not configured", token.ErrSecretNotConfigured)
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, newError(ErrUnauthorized, "Invalid credentials", nil)
		}
		return nil, fmt.Errorf("look up user: %w", err)
	}
	if !hash.CheckPasswordHash(password, user.Password) {
		return nil, newError(ErrUnauthorized, "Invalid credentials", nil)
	}

	now := s.now()
	if err := s.userRepo.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, fmt.Errorf("update last login: %w", err)
	}
	user.LastLoginAt = &now

	return s.issue(user)
}

func (s *authService) issue(user *model.User) (*AuthResult, error) {
	signed, err := s.jwtManager.GenerateToken(user.ID)
	if err != nil {
		if errors.Is(err, token.ErrSecretNotConfigured) {
			return nil, newError(ErrConfiguration, "Server JWT not configured", err)
		}
		return nil, err
	}
	view := NewUserView(user)
	view.Role = ""
	return &AuthResult{Token: signed, User: view}, nil
}

// ForgotPassword issues a fresh code, replacing any previous one, and mails
// it. Delivery problems never fail the request; the code is logged instead.
func (s *authService) ForgotPassword(ctx context.Context, email string) (*ForgotPasswordResult, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, newError(ErrValidation, "Email is required", nil)
	}

	if _, err := s.userRepo.FindByEmail(ctx, email); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, newError(ErrNotFound, "User not found", nil)
		}
		return nil, fmt.Errorf("look up user: %w", err)
	}

	code, err := generateOTP()
	if err != nil {
		return nil, err
	}
	rec := model.OTPRecord{Email: email, Code: code, ExpiresAt: s.now().Add(s.otpTTL)}
	if err := s.otpRepo.Replace(ctx, rec); err != nil {
		return nil, fmt.Errorf("store otp: %w", err)
	}

	result := &ForgotPasswordResult{}
	if !s.deliverOTP(ctx, email, code) && s.diagnostic {
		result.Code = code
	}
	return result, nil
}

// deliverOTP reports whether the mail transport accepted the code.
func (s *authService) deliverOTP(ctx context.Context, email, code string) bool {
	if !s.mailer.Configured() {
		log.Warnw("mail not configured, password reset code logged instead", "email", email, "otp", code)
		return false
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.mailTimeout)
	defer cancel()
	if err := s.mailer.Send(sendCtx, mail.PasswordResetMessage(email, code, s.otpTTL)); err != nil {
		log.Error("failed to send password reset mail", err)
		log.Warnw("password reset code logged instead", "email", email, "otp", code)
		return false
	}
	return true
}

// VerifyOTP checks the code without consuming it.
func (s *authService) VerifyOTP(ctx context.Context, email, code string) error {
	email = normalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return newError(ErrValidation, "Email and OTP are required", nil)
	}
	return s.checkOTP(ctx, email, code)
}

// ResetPassword re-checks the code, stores the new password and consumes the code.
func (s *authService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	email = normalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" || newPassword == "" {
		return newError(ErrValidation, "Email, new password, and OTP are required", nil)
	}
	if err := s.checkOTP(ctx, email, code); err != nil {
		return err
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return newError(ErrNotFound, "User not found", nil)
		}
		return fmt.Errorf("look up user: %w", err)
	}

	hashedPassword, err := hash.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.userRepo.UpdatePassword(ctx, user.ID, hashedPassword); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if err := s.otpRepo.Delete(ctx, email); err != nil {
		// the password is already changed; a leftover code expires on its own
		log.Error("failed to delete used otp", err)
	}
	log.Infow("password reset", "userId", user.ID)
	return nil
}

func (s *authService) checkOTP(ctx context.Context, email, code string) error {
	rec, err := s.otpRepo.Find(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrOTPNotFound) {
			return newError(ErrValidation, "Invalid OTP", nil)
		}
		return fmt.Errorf("load otp: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(rec.Code), []byte(code)) != 1 {
		return newError(ErrValidation, "Invalid OTP", nil)
	}
	if rec.Expired(s.now()) {
		if err := s.otpRepo.Delete(ctx, email); err != nil {
			log.Error("failed to delete expired otp", err)
		}
		return newError(ErrExpired, "OTP expired", nil)
	}
	return nil
}

func (s *authService) GetCurrentUser(ctx context.Context, tokenString string) (*model.User, error) {
	if !s.jwtManager.Configured() {
		return nil, newError(ErrConfiguration, "Server JWT not configured", token.ErrSecretNotConfigured)
	}
	if tokenString == "" {
		return nil, newError(ErrUnauthorized, "Auth token missing", nil)
	}

	claims, err := s.jwtManager.VerifyToken(tokenString)
	if err != nil {
		return nil, newError(ErrUnauthorized, "Invalid or expired token", err)
	}

	user, err := s.userRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, newError(ErrUnauthorized, "User not found", nil)
		}
		return nil, fmt.Errorf("look up user: %w", err)
	}
	if !user.IsActive {
		return nil, newError(ErrForbidden, "User is inactive", nil)
	}
	return user, nil
}

// generateOTP returns a uniformly random 6-digit code, zero padded.
func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
