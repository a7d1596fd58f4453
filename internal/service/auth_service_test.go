package service

import (
	"context"
	"testing"
	"time"

	"doubtiq-go/internal/repository"
	"doubtiq-go/pkg/token"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type authFixture struct {
	svc     AuthService
	users   repository.UserRepository
	otps    repository.OTPRepository
	jwt     *token.JWTManager
	mailer  *fakeMailer
	clock   *clock
	rawOpts AuthOptions
}

func newAuthFixture(t *testing.T, opts AuthOptions) *authFixture {
	t.Helper()
	f := &authFixture{
		users:  repository.NewUserRepository(newTestDB(t)),
		otps:   repository.NewOTPRepository(newTestRedis(t)),
		jwt:    token.NewJWTManager("test-secret", 0),
		mailer: &fakeMailer{configured: true},
		clock:  newClock(),
	}
	opts.Now = f.clock.Now
	f.rawOpts = opts
	f.svc = NewAuthService(f.users, f.otps, f.jwt, f.mailer, opts)
	return f
}

func TestRegisterAndLoginRoundTrip(t *testing.T) {
	f := newAuthFixture(t, AuthOptions{})
	ctx := context.Background()

	reg, err := f.svc.Register(ctx, "Alice", "alice@x.com", "pw123456")
	require.NoError(t, err)
	assert.NotEmpty(t, reg.Token)
	assert.Equal(t, "Alice", reg.User.Name)
	assert.Equal(t, "alice@x.com", reg.User.Email)
	assert.Empty(t, reg.User.Role)

	_, err = f.svc.Login(ctx, "alice@x.com", "wrongpw")
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, "Invalid credentials", err.(*Error).Message)

	login, err := f.svc.Login(ctx, "alice@x.com", "pw123456")
	require.NoError(t, err)
	claims, err := f.jwt.VerifyToken(login.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, claims.UserID)
}

func TestRegisterValidation(t *testing.T) {
	f := newAuthFixture(t, AuthOptions{})
	_, err := f.svc.Register(context.Background(), "Alice", " ", "pw")
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "Name, email, and password are required", err.(*Error).Message)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newAuthFixture(t, AuthOptions{})
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "Alice", "alice@x.com", "pw123456")
	require.NoError(t, err)
	_, err = f.svc.Register(ctx, "Other", "ALICE@x.com", "different")
	require.ErrorIs(t, err, ErrConflict)

	page, total, err := f.users.FindWithPagination(ctx, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "Alice", page[0].Name)
}

func TestRegisterAdminEmail(t *testing.T) {
	f := newAuthFixture(t, AuthOptions{AdminEmails: []string{"Root@X.com"}})
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "Root", "root@x.com", "pw123456")
	require.NoError(t, err)
	user, err := f.users.FindByEmail(ctx, "root@x.com")
	require.NoError(t, err)
	assert.Equal(t, "admin", user.Role)
}

func TestLoginUnknownEmailMatchesWrongPassword(t *testing.T) {
	f := newAuthFixture(t, AuthOptions{})
	_, err := f.svc.Login(context.Background(), "nobody@x.com", "pw")
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, "Invalid credentials", err.(*Error).Message)
}

func TestLoginUpdatesLastLogin(t *testing.T) {
	f := newAuthFixture(t, AuthOptions{})
	ctx := context.Background()
	_, err := f.svc.Register(ctx, "Alice", "alice@x.com", "pw123456")
	require.NoError(t, err)

	user, err := f.users.FindByEmail(ctx, "alice@x.com")
	require.NoError(t, err)
	assert.Nil(t, user.LastLoginAt)

	_, err = f.svc.Login(ctx, "alice@x.com", "pw123456")
	require.NoError(t, err)
	user, err = f.users.FindByEmail(ctx, "alice@x.com")
	require.NoError(t, err)
	require.NotNil(t, user.LastLoginAt)
	first := *user.LastLoginAt

	f.clock.Advance(time.Minute)
	_, err = f.svc.Login(ctx, "alice@x.com", "pw123456")
	require.NoError(t, err)
	user, err = f.users.FindByEmail(ctx, "alice@x.com")
	require.NoError(t, err)
	assert.True(t, user.LastLoginAt.After(first))
}

func TestJWTNotConfigured(t *testing.T) {
	f := newAuthFixture(t, AuthOptions{})
	svc := NewAuthService(f.users, f.otps, token.NewJWTManager("", 0), f.mailer, f.rawOpts)

	_, err := svc.Register(context.Background(), "Alice", "alice@x.com", "pw123456")
	assert.ErrorIs(t, err, ErrConfiguration)
	_, err = svc.GetCurrentUser(context.Background(), "anything")
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestForgotPasswordUnknownUser(t *testing.T) {
	f := newAuthFixture(t, AuthOptions{})
	_, err := f.svc.ForgotPassword(context.Background(), "nobody@x.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestForgotPasswordMailsCode(t *testing.T) {
	f := newAuthFixture(t, AuthOptions{Diagnostic: true})
	ctx := context.Background()
	_, err := f.svc.Register(ctx, "Alice", "alice@x.com", "pw123456")
	require.NoError(t, err)

	res, err := f.svc.ForgotPassword(ctx, "alice@x.com")
	require.NoError(t, err)
	assert.Empty(t, res.Code, "delivered codes are never echoed")

	msg := f.mailer.last()
	assert.Equal(t, "alice@x.com", msg.To)
	assert.Equal(t, "Password Reset OTP", msg.Subject)
	assert.Len(t, msg.Code, 6)
	assert.Contains(t, msg.HTML, msg.Code)
	assert.NoError(t, f.svc.VerifyOTP(ctx, "alice@x.com", msg.Code))
}

func TestForgotPasswordFallbackWhenMailFails(t *testing.T) {
	f := newAuthFixture(t, AuthOptions{Diagnostic: true})
	f.mailer.err = errBoom
	ctx := context.Background()
	_, err := f.svc.Register(ctx, "Alice", "alice@x.com", "pw123456")
	require.NoError(t, err)

	res, err := f.svc.ForgotPassword(ctx, "alice@x.com")
	require.NoError(t, err)
	require.Len(t, res.Code, 6)
	assert.NoError(t, f.svc.VerifyOTP(ctx, "alice@x.com", res.Code))
}

func TestForgotPasswordHidesCodeOutsideDiagnostic(t *testing.T) {
	f := newAuthFixture(t, AuthOptions{})
	f.mailer.configured = false
	ctx := context.Background()
	_, err := f.svc.Register(ctx, "Alice", "alice@x.com", "pw123456")
	require.NoError(t, err)

	res, err := f.svc.ForgotPassword(ctx, "alice@x.com")
	require.NoError(t, err)
	assert.Empty(t, res.Code)
}

func TestOTPExpires(t *testing.T) {
	f := newAuthFixture(t, AuthOptions{})
	ctx := context.Background()
	_, err := f.svc.Register(ctx, "Alice", "alice@x.com", "pw123456")
	require.NoError(t, err)
	_, err = f.svc.ForgotPassword(ctx, "alice@x.com")
	require.NoError(t, err)
	code := f.mailer.last().Code

	f.clock.Advance(11 * time.Minute)
	err = f.svc.VerifyOTP(ctx, "alice@x.com", code)
	require.ErrorIs(t, err, ErrExpired)
	assert.Equal(t, "OTP expired", err.(*Error).Message)

	_, err = f.otps.Find(ctx, "alice@x.com")
	assert.ErrorIs(t, err, repository.ErrOTPNotFound)
}

func TestSecondForgotPasswordInvalidatesFirstCode(t *testing.T) {
	f := newAuthFixture(t, AuthOptions{})
	ctx := context.Background()
	_, err := f.svc.Register(ctx, "Alice", "alice@x.com", "pw123456")
	require.NoError(t, err)

	var first, second string
	// codes are random; retry until two distinct codes are issued
	for first == second {
		_, err = f.svc.ForgotPassword(ctx, "alice@x.com")
		require.NoError(t, err)
		first = f.mailer.last().Code
		_, err = f.svc.ForgotPassword(ctx, "alice@x.com")
		require.NoError(t, err)
		second = f.mailer.last().Code
	}

	err = f.svc.VerifyOTP(ctx, "alice@x.com", first)
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "Invalid OTP", err.(*Error).Message)
	assert.NoError(t, f.svc.VerifyOTP(ctx, "alice@x.com", second))
}

func TestVerifyOTPDoesNotConsume(t *testing.T) {
	f := newAuthFixture(t, AuthOptions{})
	ctx := context.Background()
	_, err := f.svc.Register(ctx, "Alice", "alice@x.com", "pw123456")
	require.NoError(t, err)
	_, err = f.svc.ForgotPassword(ctx, "alice@x.com")
	require.NoError(t, err)
	code := f.mailer.last().Code

	require.NoError(t, f.svc.VerifyOTP(ctx, "alice@x.com", code))
	require.NoError(t, f.svc.VerifyOTP(ctx, "alice@x.com", code))
}

func TestResetPassword(t *testing.T) {
	f := newAuthFixture(t, AuthOptions{})
	ctx := context.Background()
	_, err := f.svc.Register(ctx, "Alice", "alice@x.com", "pw123456")
	require.NoError(t, err)
	_, err = f.svc.ForgotPassword(ctx, "alice@x.com")
	require.NoError(t, err)
	code := f.mailer.last().Code

	err = f.svc.ResetPassword(ctx, "alice@x.com", "000000x", "newpass99")
	assert.ErrorIs(t, err, ErrValidation)

	require.NoError(t, f.svc.ResetPassword(ctx, "alice@x.com", code, "newpass99"))

	_, err = f.svc.Login(ctx, "alice@x.com", "pw123456")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = f.svc.Login(ctx, "alice@x.com", "newpass99")
	assert.NoError(t, err)

	// the code is single use
	err = f.svc.ResetPassword(ctx, "alice@x.com", code, "again1234")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestResetPasswordRequiresFields(t *testing.T) {
	f := newAuthFixture(t, AuthOptions{})
	err := f.svc.ResetPassword(context.Background(), "alice@x.com", "", "newpass")
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "Email, new password, and OTP are required", err.(*Error).Message)
}

func TestGetCurrentUser(t *testing.T) {
	f := newAuthFixture(t, AuthOptions{})
	ctx := context.Background()
	reg, err := f.svc.Register(ctx, "Alice", "alice@x.com", "pw123456")
	require.NoError(t, err)

	user, err := f.svc.GetCurrentUser(ctx, reg.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, user.ID)

	_, err = f.svc.GetCurrentUser(ctx, "")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = f.svc.GetCurrentUser(ctx, "not-a-token")
	assert.ErrorIs(t, err, ErrUnauthorized)

	require.NoError(t, f.users.SetActive(ctx, user.ID, false))
	_, err = f.svc.GetCurrentUser(ctx, reg.Token)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestGetCurrentUserDeletedUser(t *testing.T) {
	f := newAuthFixture(t, AuthOptions{})
	signed, err := f.jwt.GenerateToken(999)
	require.NoError(t, err)

	_, err = f.svc.GetCurrentUser(context.Background(), signed)
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, "User not found", err.(*Error).Message)
}

func TestGenerateOTPFormat(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := generateOTP()
		require.NoError(t, err)
		assert.Regexp(t, `^\d{6}$`, code)
	}
}
