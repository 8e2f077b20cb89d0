package service

import (
	"context"
	"testing"
	"time"

	"opsstay/internal/model"
	"opsstay/internal/repository"
	"opsstay/pkg/apperr"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
)

func setupUserService(t *testing.T) (UserService, *gorm.DB) {
	t.Helper()

	db := openTestDB(t)
	return NewUserService(repository.NewUserRepository(db), repository.NewTokenRepository(db)), db
}

func createTestUser(t *testing.T, svc UserService, role string) *UserResponse {
	t.Helper()

	user, err := svc.CreateUser(context.Background(), CreateUserRequest{
		FullName:   "Test Kullanıcı",
		Email:      role + "@opsstay.test",
		Password:   "password123",
		Role:       role,
		HotelName:  "Opsstay Hotel Taksim",
		Department: "Ön Büro",
	})
	if err != nil {
		t.Fatalf("CreateUser(%s): %v", role, err)
	}
	return user
}

func TestCreateUserRejectsUnknownRole(t *testing.T) {
	svc, _ := setupUserService(t)

	_, err := svc.CreateUser(context.Background(), CreateUserRequest{
		FullName: "Test Kullanıcı",
		Email:    "admin@opsstay.test",
		Password: "password123",
		Role:     "superadmin",
	})
	if !apperr.IsCode(err, apperr.CodeValidation) {
		t.Errorf("got %v, want validation error", err)
	}
}

func TestCreateUserRejectsDuplicateEmail(t *testing.T) {
	svc, _ := setupUserService(t)
	createTestUser(t, svc, model.RoleEditor)

	_, err := svc.CreateUser(context.Background(), CreateUserRequest{
		FullName: "İkinci Kullanıcı",
		Email:    "editor@opsstay.test",
		Password: "password123",
		Role:     model.RoleViewer,
	})
	if !apperr.IsCode(err, apperr.CodeValidation) {
		t.Errorf("got %v, want validation error", err)
	}
}

func TestLoginIssuesIdentityToken(t *testing.T) {
	svc, _ := setupUserService(t)
	user := createTestUser(t, svc, model.RoleManager)
	ctx := context.Background()

	tokens, err := svc.Login(ctx, LoginUserRequest{
		Email:    user.Email,
		Password: "password123",
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if tokens.Token == "" || tokens.RefreshToken == "" {
		t.Fatal("Login returned empty tokens")
	}

	parsed, err := jwt.Parse(tokens.Token, func(token *jwt.Token) (interface{}, error) {
		return []byte("default_super_secret_key"), nil
	})
	if err != nil || !parsed.Valid {
		t.Fatalf("access token does not verify: %v", err)
	}
	claims := parsed.Claims.(jwt.MapClaims)
	if claims["sub"] != user.ID.String() || claims["role"] != model.RoleManager {
		t.Errorf("claims = %v, want sub/role of the user", claims)
	}
	if claims["name"] != user.FullName || claims["hotel"] != user.HotelName {
		t.Errorf("identity claims missing: %v", claims)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	svc, _ := setupUserService(t)
	user := createTestUser(t, svc, model.RoleEditor)

	if _, err := svc.Login(context.Background(), LoginUserRequest{
		Email:    user.Email,
		Password: "wrong-password",
	}); err == nil {
		t.Error("Login succeeded with wrong password")
	}
}

func TestRefreshTokenRotates(t *testing.T) {
	svc, _ := setupUserService(t)
	user := createTestUser(t, svc, model.RoleEditor)
	ctx := context.Background()

	tokens, err := svc.Login(ctx, LoginUserRequest{Email: user.Email, Password: "password123"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	next, err := svc.RefreshToken(ctx, RefreshTokenRequest{RefreshToken: tokens.RefreshToken})
	if err != nil {
		t.Fatalf("RefreshToken: %v", err)
	}
	if next.RefreshToken == tokens.RefreshToken {
		t.Error("refresh token was not rotated")
	}

	// The presented token is single use.
	if _, err := svc.RefreshToken(ctx, RefreshTokenRequest{RefreshToken: tokens.RefreshToken}); err == nil {
		t.Error("consumed refresh token accepted a second time")
	}
}

func TestRefreshTokenRejectsExpired(t *testing.T) {
	svc, db := setupUserService(t)
	user := createTestUser(t, svc, model.RoleViewer)
	ctx := context.Background()

	tokens, err := svc.Login(ctx, LoginUserRequest{Email: user.Email, Password: "password123"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if err := db.Model(&model.RefreshToken{}).
		Where("token = ?", tokens.RefreshToken).
		Update("expires_at", time.Now().Add(-time.Minute)).Error; err != nil {
		t.Fatalf("expire token: %v", err)
	}

	if _, err := svc.RefreshToken(ctx, RefreshTokenRequest{RefreshToken: tokens.RefreshToken}); err == nil {
		t.Error("expired refresh token accepted")
	}
}

func TestEnsureBootstrapManager(t *testing.T) {
	svc, db := setupUserService(t)
	ctx := context.Background()

	t.Setenv("ADMIN_EMAIL", "bootstrap@opsstay.test")
	t.Setenv("ADMIN_PASSWORD", "bootstrap-secret")
	t.Setenv("HOTEL_NAME", "Opsstay Hotel Taksim")

	if err := svc.EnsureBootstrapManager(ctx); err != nil {
		t.Fatalf("EnsureBootstrapManager: %v", err)
	}

	var seeded model.User
	if err := db.First(&seeded, "email = ?", "bootstrap@opsstay.test").Error; err != nil {
		t.Fatalf("seeded manager missing: %v", err)
	}
	if seeded.Role != model.RoleManager {
		t.Errorf("Role = %q, want manager", seeded.Role)
	}

	// Idempotent: a populated user table is left alone.
	if err := svc.EnsureBootstrapManager(ctx); err != nil {
		t.Fatalf("second EnsureBootstrapManager: %v", err)
	}
	var count int64
	if err := db.Model(&model.User{}).Count(&count).Error; err != nil {
		t.Fatalf("count users: %v", err)
	}
	if count != 1 {
		t.Errorf("users = %d, want 1", count)
	}
}

func TestUpdateUserRole(t *testing.T) {
	svc, _ := setupUserService(t)
	user := createTestUser(t, svc, model.RoleViewer)
	ctx := context.Background()

	updated, err := svc.UpdateUser(ctx, user.ID.String(), UpdateUserRequest{Role: model.RoleEditor})
	if err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if updated.Role != model.RoleEditor {
		t.Errorf("Role = %q, want editor", updated.Role)
	}

	if _, err := svc.UpdateUser(ctx, user.ID.String(), UpdateUserRequest{Role: "owner"}); !apperr.IsCode(err, apperr.CodeValidation) {
		t.Errorf("invalid role update: got %v, want validation error", err)
	}
}

func TestDeleteUser(t *testing.T) {
	svc, _ := setupUserService(t)
	user := createTestUser(t, svc, model.RoleViewer)
	ctx := context.Background()

	if err := svc.DeleteUser(ctx, user.ID.String()); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if _, err := svc.GetUserByID(ctx, user.ID.String()); !apperr.IsCode(err, apperr.CodeNotFound) {
		t.Errorf("deleted user lookup: got %v, want not-found error", err)
	}
}
