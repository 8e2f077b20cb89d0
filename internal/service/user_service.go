package service

import (
	"context"
	"errors"
	"os"
	"time"

	"opsstay/internal/model"
	"opsstay/internal/repository"
	"opsstay/pkg/apperr"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const refreshTokenTTL = 7 * 24 * time.Hour

// DTOs for Request validation
type CreateUserRequest struct {
	FullName   string `json:"full_name" binding:"required"`
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required,min=6"`
	Role       string `json:"role" binding:"required,oneof=manager editor viewer"`
	HotelName  string `json:"hotel_name"`
	Department string `json:"department"`
}

type UpdateUserRequest struct {
	FullName   string `json:"full_name"`
	Email      string `json:"email" binding:"omitempty,email"`
	Role       string `json:"role" binding:"omitempty,oneof=manager editor viewer"`
	HotelName  string `json:"hotel_name"`
	Department string `json:"department"`
}

type LoginUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type TokenResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
}

// DTO for returning User without exposing sensitive data (e.g. password)
type UserResponse struct {
	ID         uuid.UUID `json:"id"`
	FullName   string    `json:"full_name"`
	Email      string    `json:"email"`
	Role       string    `json:"role"`
	HotelName  string    `json:"hotel_name"`
	Department string    `json:"department"`
	CreatedAt  string    `json:"created_at"`
	UpdatedAt  string    `json:"updated_at"`
}

// UserService defines the interface for business logic related to User
type UserService interface {
	CreateUser(ctx context.Context, req CreateUserRequest) (*UserResponse, error)
	Login(ctx context.Context, req LoginUserRequest) (*TokenResponse, error)
	RefreshToken(ctx context.Context, req RefreshTokenRequest) (*TokenResponse, error)
	GetUserByID(ctx context.Context, id string) (*UserResponse, error)
	ListUsers(ctx context.Context, page, limit int) ([]UserResponse, int64, error)
	UpdateUser(ctx context.Context, id string, req UpdateUserRequest) (*UserResponse, error)
	DeleteUser(ctx context.Context, id string) error
	EnsureBootstrapManager(ctx context.Context) error
}

type userService struct {
	repo   repository.UserRepository
	tokens repository.TokenRepository
}

// NewUserService returns a new instance of UserService
func NewUserService(repo repository.UserRepository, tokens repository.TokenRepository) UserService {
	return &userService{repo: repo, tokens: tokens}
}

// Helper: check if role is allowed
func validateRole(role string) bool {
	return role == model.RoleManager || role == model.RoleEditor || role == model.RoleViewer
}

// Helper: parse model to standard json API response
func mapToResponse(user *model.User) *UserResponse {
	return &UserResponse{
		ID:         user.ID,
		FullName:   user.FullName,
		Email:      user.Email,
		Role:       user.Role,
		HotelName:  user.HotelName,
		Department: user.Department,
		CreatedAt:  user.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  user.UpdatedAt.Format(time.RFC3339),
	}
}

func (s *userService) CreateUser(ctx context.Context, req CreateUserRequest) (*UserResponse, error) {
	if !validateRole(req.Role) {
		return nil, apperr.Validation("invalid role: must be manager, editor, or viewer")
	}

	if _, err := s.repo.GetByEmail(ctx, req.Email); err == nil {
		return nil, apperr.Validation("email already exists")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.New("failed to hash password")
	}

	user := &model.User{
		FullName:   req.FullName,
		Email:      req.Email,
		Password:   string(hashedPassword),
		Role:       req.Role,
		HotelName:  req.HotelName,
		Department: req.Department,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	return mapToResponse(user), nil
}

func (s *userService) Login(ctx context.Context, req LoginUserRequest) (*TokenResponse, error) {
	user, err := s.repo.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, errors.New("invalid email or password")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, errors.New("invalid email or password")
	}

	return s.issueTokens(ctx, user)
}

func (s *userService) RefreshToken(ctx context.Context, req RefreshTokenRequest) (*TokenResponse, error) {
	stored, err := s.tokens.GetByToken(ctx, req.RefreshToken)
	if err != nil {
		return nil, errors.New("invalid refresh token")
	}
	if time.Now().After(stored.ExpiresAt) {
		_ = s.tokens.DeleteByToken(ctx, stored.Token)
		return nil, errors.New("refresh token expired")
	}

	user, err := s.repo.GetByID(ctx, stored.UserID.String())
	if err != nil {
		return nil, errors.New("user not found")
	}

	// Rotate: the presented token is single use.
	if err := s.tokens.DeleteByToken(ctx, stored.Token); err != nil {
		return nil, errors.New("failed to rotate refresh token")
	}

	return s.issueTokens(ctx, user)
}

// issueTokens signs a short-lived access JWT carrying the identity claims the
// middleware resolves, and stores a fresh refresh token.
func (s *userService) issueTokens(ctx context.Context, user *model.User) (*TokenResponse, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":        user.ID.String(),
		"name":       user.FullName,
		"role":       user.Role,
		"hotel":      user.HotelName,
		"department": user.Department,
		"exp":        time.Now().Add(24 * time.Hour).Unix(),
	})

	// Use same fallback strategy as middleware for simplicity here or get from env centrally
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "default_super_secret_key"
	}

	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return nil, errors.New("failed to generate token")
	}

	refresh := &model.RefreshToken{
		UserID:    user.ID,
		Token:     uuid.NewString(),
		ExpiresAt: time.Now().Add(refreshTokenTTL),
	}
	if err := s.tokens.Create(ctx, refresh); err != nil {
		return nil, errors.New("failed to store refresh token")
	}

	return &TokenResponse{Token: tokenString, RefreshToken: refresh.Token}, nil
}

func (s *userService) GetUserByID(ctx context.Context, id string) (*UserResponse, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.NotFound("user not found")
	}
	return mapToResponse(user), nil
}

func (s *userService) ListUsers(ctx context.Context, page, limit int) ([]UserResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 10
	}

	users, total, err := s.repo.List(ctx, page, limit)
	if err != nil {
		return nil, 0, err
	}

	var responses []UserResponse
	for _, u := range users {
		responses = append(responses, *mapToResponse(&u))
	}

	return responses, total, nil
}

func (s *userService) UpdateUser(ctx context.Context, id string, req UpdateUserRequest) (*UserResponse, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.NotFound("user not found")
	}

	if req.Role != "" {
		if !validateRole(req.Role) {
			return nil, apperr.Validation("invalid role: must be manager, editor, or viewer")
		}
		user.Role = req.Role
	}

	if req.Email != "" && req.Email != user.Email {
		if _, err := s.repo.GetByEmail(ctx, req.Email); err == nil {
			return nil, apperr.Validation("email already exists")
		}
		user.Email = req.Email
	}

	if req.FullName != "" {
		user.FullName = req.FullName
	}
	if req.HotelName != "" {
		user.HotelName = req.HotelName
	}
	if req.Department != "" {
		user.Department = req.Department
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}

	return mapToResponse(user), nil
}

func (s *userService) DeleteUser(ctx context.Context, id string) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return apperr.NotFound("user not found")
	}
	return s.repo.Delete(ctx, id)
}

// EnsureBootstrapManager seeds a manager account from ADMIN_EMAIL /
// ADMIN_PASSWORD when the user table is empty, so a fresh deployment can log
// in. No-op otherwise.
func (s *userService) EnsureBootstrapManager(ctx context.Context) error {
	total, err := s.repo.Count(ctx)
	if err != nil || total > 0 {
		return err
	}

	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		return nil
	}

	_, err = s.CreateUser(ctx, CreateUserRequest{
		FullName:   "Operations Manager",
		Email:      email,
		Password:   password,
		Role:       model.RoleManager,
		HotelName:  os.Getenv("HOTEL_NAME"),
		Department: "Operasyon",
	})
	return err
}
