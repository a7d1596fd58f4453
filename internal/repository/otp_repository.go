package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"doubtiq-go/internal/model"

	"github.com/go-redis/redis/v8"
)

// ErrOTPNotFound is returned when no code is stored for an email.
var ErrOTPNotFound = errors.New("otp not found")

// otpRetention keeps an expired record around long enough to report it as expired.
const otpRetention = time.Hour

// OTPRepository stores at most one password-reset code per email.
type OTPRepository interface {
	// Replace stores rec, discarding any previous code for the same email in one step.
	Replace(ctx context.Context, rec model.OTPRecord) error
	Find(ctx context.Context, email string) (*model.OTPRecord, error)
	Delete(ctx context.Context, email string) error
}

type redisOTPRepository struct {
	redisClient *redis.Client
	now         func() time.Time
}

// NewOTPRepository creates a redis-backed OTPRepository.
func NewOTPRepository(redisClient *redis.Client) OTPRepository {
	return &redisOTPRepository{redisClient: redisClient, now: time.Now}
}

func otpKey(email string) string {
	return fmt.Sprintf("otp:%s", email)
}

func (r *redisOTPRepository) Replace(ctx context.Context, rec model.OTPRecord) error {
	jsonData, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal otp: %w", err)
	}
	ttl := rec.ExpiresAt.Sub(r.now()) + otpRetention
	if ttl < otpRetention {
		ttl = otpRetention
	}
	if err := r.redisClient.Set(ctx, otpKey(rec.Email), jsonData, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store otp: %w", err)
	}
	return nil
}

func (r *redisOTPRepository) Find(ctx context.Context, email string) (*model.OTPRecord, error) {
	jsonData, err := r.redisClient.Get(ctx, otpKey(email)).Result()
	if err == redis.Nil {
		return nil, ErrOTPNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get otp: %w", err)
	}
	var rec model.OTPRecord
	if err := json.Unmarshal([]byte(jsonData), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal otp: %w", err)
	}
	return &rec, nil
}

func (r *redisOTPRepository) Delete(ctx context.Context, email string) error {
	if err := r.redisClient.Del(ctx, otpKey(email)).Err(); err != nil {
		return fmt.Errorf("failed to delete otp: %w", err)
	}
	return nil
}
