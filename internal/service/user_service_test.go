package service

import (
	"context"
	"testing"

	"insurance-backend/internal/model"
	"insurance-backend/pkg/apperr"

	"github.com/golang-jwt/jwt/v5"
)

func newUserFixture(t *testing.T) (UserService, *fakeUserRepo) {
	t.Helper()
	repo := newFakeUserRepo()
	return NewUserService(repo), repo
}

func registerAndLogin(t *testing.T, svc UserService) *TokenResponse {
	t.Helper()
	_, err := svc.Register(context.Background(), RegisterRequest{
		FullName: "Ahmed Khan",
		Email:    "ahmed@example.com",
		Phone:    "+923001234567",
		Password: "correct horse battery",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	tokens, err := svc.Login(context.Background(), LoginUserRequest{
		Email:    "ahmed@example.com",
		Password: "correct horse battery",
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	return tokens
}

func TestRegisterForcesCustomerRole(t *testing.T) {
	svc, repo := newUserFixture(t)

	resp, err := svc.Register(context.Background(), RegisterRequest{
		FullName: "Ahmed Khan",
		Email:    "ahmed@example.com",
		Phone:    "+923001234567",
		Password: "correct horse battery",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if resp.Role != model.RoleCustomer {
		t.Errorf("role = %q, want customer", resp.Role)
	}

	stored, err := repo.GetByEmail(context.Background(), "ahmed@example.com")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if stored.Password == "correct horse battery" {
		t.Error("password stored in plain text")
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := newUserFixture(t)
	registerAndLogin(t, svc)

	_, err := svc.Register(context.Background(), RegisterRequest{
		FullName: "Imposter",
		Email:    "ahmed@example.com",
		Phone:    "+923000000000",
		Password: "another password",
	})
	if !apperr.Is(err, apperr.Conflict) {
		t.Errorf("error kind = %v, want Conflict", apperr.KindOf(err))
	}
}

func TestLoginIssuesRoleClaim(t *testing.T) {
	t.Setenv("JWT_SECRET", "default_super_secret_key")
	svc, _ := newUserFixture(t)
	tokens := registerAndLogin(t, svc)

	if tokens.Token == "" || tokens.RefreshToken == "" {
		t.Fatal("login returned empty tokens")
	}

	parsed, err := jwt.Parse(tokens.Token, func(token *jwt.Token) (interface{}, error) {
		return []byte("default_super_secret_key"), nil
	})
	if err != nil || !parsed.Valid {
		t.Fatalf("access token does not verify: %v", err)
	}
	claims := parsed.Claims.(jwt.MapClaims)
	if claims["role"] != model.RoleCustomer {
		t.Errorf("role claim = %v, want customer", claims["role"])
	}
	if claims["sub"] == "" {
		t.Error("sub claim is empty")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _ := newUserFixture(t)
	registerAndLogin(t, svc)

	if _, err := svc.Login(context.Background(), LoginUserRequest{
		Email:    "ahmed@example.com",
		Password: "wrong",
	}); err == nil {
		t.Error("login with the wrong password succeeded")
	}
	if _, err := svc.Login(context.Background(), LoginUserRequest{
		Email:    "nobody@example.com",
		Password: "correct horse battery",
	}); err == nil {
		t.Error("login for an unknown account succeeded")
	}
}

func TestRefreshTokenRotates(t *testing.T) {
	svc, _ := newUserFixture(t)
	tokens := registerAndLogin(t, svc)

	fresh, err := svc.RefreshToken(context.Background(), RefreshTokenRequest{RefreshToken: tokens.RefreshToken})
	if err != nil {
		t.Fatalf("RefreshToken: %v", err)
	}
	if fresh.RefreshToken == tokens.RefreshToken {
		t.Error("refresh token was not rotated")
	}

	// The presented token is single-use.
	if _, err := svc.RefreshToken(context.Background(), RefreshTokenRequest{RefreshToken: tokens.RefreshToken}); err == nil {
		t.Error("spent refresh token accepted a second time")
	}
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	svc, _ := newUserFixture(t)
	tokens := registerAndLogin(t, svc)

	if err := svc.Logout(context.Background(), tokens.RefreshToken); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := svc.RefreshToken(context.Background(), RefreshTokenRequest{RefreshToken: tokens.RefreshToken}); err == nil {
		t.Error("revoked refresh token still works")
	}
}

func TestUpdateUserEmailConflict(t *testing.T) {
	svc, _ := newUserFixture(t)

	first, err := svc.CreateUser(context.Background(), CreateUserRequest{
		FullName: "Reviewer One", Email: "r1@example.com", Phone: "1", Password: "long enough", Role: model.RoleReviewer,
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if _, err := svc.CreateUser(context.Background(), CreateUserRequest{
		FullName: "Reviewer Two", Email: "r2@example.com", Phone: "2", Password: "long enough", Role: model.RoleReviewer,
	}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	_, err = svc.UpdateUser(context.Background(), first.ID.String(), UpdateUserRequest{Email: "r2@example.com"})
	if !apperr.Is(err, apperr.Conflict) {
		t.Errorf("error kind = %v, want Conflict", apperr.KindOf(err))
	}

	updated, err := svc.UpdateUser(context.Background(), first.ID.String(), UpdateUserRequest{Role: model.RoleAdmin})
	if err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if updated.Role != model.RoleAdmin {
		t.Errorf("role = %q, want admin", updated.Role)
	}
}
