package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"doubtiq-go/internal/model"
	"doubtiq-go/internal/repository"
	"doubtiq-go/pkg/log"
)

const maxPageSize = 100

// UserListResponse is one page of the admin user listing.
type UserListResponse struct {
	Content       []UserDetailResponse `json:"content"`
	TotalElements int64                `json:"totalElements"`
	TotalPages    int                  `json:"totalPages"`
	Size          int                  `json:"size"`
	Number        int                  `json:"number"`
}

// UserDetailResponse is a user as seen by an admin.
type UserDetailResponse struct {
	ID          uint       `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Role        string     `json:"role"`
	IsActive    bool       `json:"isActive"`
	LastLoginAt *time.Time `json:"lastLogin,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func newUserDetail(u *model.User) UserDetailResponse {
	return UserDetailResponse{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Role:        u.Role,
		IsActive:    u.IsActive,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}

// AdminService holds the operations behind the admin role gate.
type AdminService interface {
	ListUsers(ctx context.Context, page, size int) (*UserListResponse, error)
	SetUserActive(ctx context.Context, userID uint, active bool) (*UserDetailResponse, error)
}

type adminService struct {
	userRepo repository.UserRepository
}

func NewAdminService(userRepo repository.UserRepository) AdminService {
	return &adminService{userRepo: userRepo}
}

// ListUsers pages through users. page is 1-based.
func (s *adminService) ListUsers(ctx context.Context, page, size int) (*UserListResponse, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > maxPageSize {
		size = 20
	}
	offset := (page - 1) * size
	users, total, err := s.userRepo.FindWithPagination(ctx, offset, size)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	content := make([]UserDetailResponse, 0, len(users))
	for i := range users {
		content = append(content, newUserDetail(&users[i]))
	}

	totalPages := 0
	if total > 0 {
		totalPages = int((total + int64(size) - 1) / int64(size))
	}
	return &UserListResponse{
		Content:       content,
		TotalElements: total,
		TotalPages:    totalPages,
		Size:          size,
		Number:        page,
	}, nil
}

// SetUserActive enables or disables an account. Disabled users are turned
// away by the auth gate on their next request.
func (s *adminService) SetUserActive(ctx context.Context, userID uint, active bool) (*UserDetailResponse, error) {
	if err := s.userRepo.SetActive(ctx, userID, active); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, newError(ErrNotFound, "User not found", nil)
		}
		return nil, fmt.Errorf("set user active: %w", err)
	}
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("reload user: %w", err)
	}
	log.Infow("user status changed", "userId", userID, "active", active)
	detail := newUserDetail(user)
	return &detail, nil
}
