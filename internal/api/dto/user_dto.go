package dto

import (
	"time"

	"github.com/spec-kit/task-service/internal/domain"
)

// UserRegisterRequest payload for new users.
type UserRegisterRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=50" message:"Name must be between 2 and 50 characters"`
	Email    string `json:"email" validate:"required,email,max=320" message:"Please provide a valid email"`
	Password string `json:"password" validate:"required,min=6" message:"Password must be at least 6 characters long"`
	Role     string `json:"role" validate:"omitempty,oneof=user admin" message:"Role must be either user or admin"`
}

// UserLoginRequest payload for login.
type UserLoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=320" message:"Please provide a valid email"`
	Password string `json:"password" validate:"required" message:"Password is required"`
}

// UpdateProfileRequest carries the only mutable profile fields.
type UpdateProfileRequest struct {
	Name  *string `json:"name" validate:"omitnil,min=2,max=50" message:"Name must be between 2 and 50 characters"`
	Email *string `json:"email" validate:"omitnil,email,max=320" message:"Please provide a valid email"`
}

// UserResponse is the public view of a user. It has no password field.
type UserResponse struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Email     string          `json:"email"`
	Role      domain.UserRole `json:"role"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	User      UserResponse `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

// NewUserResponse projects a domain user.
func NewUserResponse(user *domain.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}
