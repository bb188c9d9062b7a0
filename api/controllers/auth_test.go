package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/courseshare/courseshare-backend/api/middleware"
	"github.com/courseshare/courseshare-backend/internal/auth"
	"github.com/courseshare/courseshare-backend/internal/users"
	"github.com/courseshare/courseshare-backend/pkg/config"
	pkgerrors "github.com/courseshare/courseshare-backend/pkg/errors"
)

type stubAuthService struct {
	registerFn func(ctx context.Context, req auth.RegisterRequest) (*auth.LoginResponse, error)
	loginFn    func(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, error)
	meFn       func(ctx context.Context, userID uuid.UUID) (*auth.MeResponse, error)
}

func (s stubAuthService) Register(ctx context.Context, req auth.RegisterRequest) (*auth.LoginResponse, error) {
	return s.registerFn(ctx, req)
}

func (s stubAuthService) Login(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, error) {
	return s.loginFn(ctx, req)
}

func (s stubAuthService) Me(ctx context.Context, userID uuid.UUID) (*auth.MeResponse, error) {
	return s.meFn(ctx, userID)
}

func testConfig() *config.Config {
	return &config.Config{App: config.AppConfig{Env: "dev"}}
}

func TestAuthLoginSetsTokenHeader(t *testing.T) {
	svc := stubAuthService{
		loginFn: func(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, error) {
			if req.Email != "driver@example.com" {
				t.Fatalf("unexpected email %q", req.Email)
			}
			return &auth.LoginResponse{AccessToken: "token", User: &users.UserDTO{}}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":"driver@example.com","password":"secret"}`))
	resp := httptest.NewRecorder()
	AuthLogin(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if resp.Header().Get(tokenHeader) != "token" {
		t.Fatalf("expected token header, got %q", resp.Header().Get(tokenHeader))
	}
}

func TestAuthLoginRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":"driver@example.com","password":"x","role":"admin"}`))
	resp := httptest.NewRecorder()
	AuthLogin(stubAuthService{}, testLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestAuthRegisterReturnsCreated(t *testing.T) {
	svc := stubAuthService{
		registerFn: func(ctx context.Context, req auth.RegisterRequest) (*auth.LoginResponse, error) {
			if req.Department != "75" {
				t.Fatalf("unexpected department %q", req.Department)
			}
			return &auth.LoginResponse{AccessToken: "token", User: &users.UserDTO{}}, nil
		},
	}

	body := `{"first_name":"Ana","last_name":"Diaz","email":"ana@example.com","password":"password1","department":"75"}`
	resp := httptest.NewRecorder()
	AuthRegister(svc, testLogger())(resp, httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(body)))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestAuthMePropagatesServiceError(t *testing.T) {
	userID := uuid.New()
	svc := stubAuthService{
		meFn: func(ctx context.Context, id uuid.UUID) (*auth.MeResponse, error) {
			if id != userID {
				t.Fatalf("unexpected user %s", id)
			}
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), userID))
	resp := httptest.NewRecorder()
	AuthMe(svc, testLogger())(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestAdminUserLoadsPathUser(t *testing.T) {
	target := uuid.New()
	svc := stubAuthService{
		meFn: func(ctx context.Context, id uuid.UUID) (*auth.MeResponse, error) {
			if id != target {
				t.Fatalf("expected path user %s, got %s", target, id)
			}
			return &auth.MeResponse{}, nil
		},
	}

	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("userId", target.String())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/users/"+target.String(), nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
	resp := httptest.NewRecorder()
	AdminUser(svc, testLogger())(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}

	routeCtx = chi.NewRouteContext()
	routeCtx.URLParams.Add("userId", "not-a-uuid")
	req = httptest.NewRequest(http.MethodGet, "/api/v1/admin/users/not-a-uuid", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
	resp = httptest.NewRecorder()
	AdminUser(svc, testLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
