package auth

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/users"
	pkgAuth "github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/security"
)

var testJWT = config.JWTConfig{
	Secret:            "secret",
	Issuer:            "storefront",
	ExpirationMinutes: 30,
}

func TestServiceRegisterIssuesCustomerTokens(t *testing.T) {
	svc, repo, sessions := buildTestService(t)

	resp, err := svc.Register(context.Background(), RegisterRequest{
		Name:     " Ada Lovelace ",
		Email:    " Ada@Example.com ",
		Password: "correct-horse",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if resp.User.Email != "ada@example.com" || resp.User.Name != "Ada Lovelace" {
		t.Fatalf("expected normalized user, got %+v", resp.User)
	}
	if resp.User.Role != enums.RoleCustomer {
		t.Fatalf("expected customer role, got %s", resp.User.Role)
	}
	claims, err := pkgAuth.ParseAccessToken(testJWT, resp.AccessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.Role != enums.RoleCustomer || claims.UserID != resp.User.ID {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if sessions.tokens[claims.ID] != resp.RefreshToken {
		t.Fatalf("refresh token not bound to jti")
	}
	if len(repo.byEmail) != 1 {
		t.Fatalf("expected one stored user, got %d", len(repo.byEmail))
	}
}

func TestServiceRegisterRejectsDuplicateEmail(t *testing.T) {
	svc, _, _ := buildTestService(t)
	req := RegisterRequest{Name: "Ada", Email: "ada@example.com", Password: "correct-horse"}
	if _, err := svc.Register(context.Background(), req); err != nil {
		t.Fatalf("first register: %v", err)
	}
	req.Email = "ADA@example.com"
	_, err := svc.Register(context.Background(), req)
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestServiceRegisterValidates(t *testing.T) {
	svc, _, _ := buildTestService(t)
	_, err := svc.Register(context.Background(), RegisterRequest{Email: "ada@example.com", Password: "short"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, _ := pkgerrors.As(err).Details().(map[string]string)
	if _, ok := details["password"]; !ok {
		t.Fatalf("expected password detail, got %v", details)
	}
	if _, ok := details["name"]; !ok {
		t.Fatalf("expected name detail, got %v", details)
	}
}

func TestServiceLogin(t *testing.T) {
	svc, repo, _ := buildTestService(t)
	user := repo.add(t, "admin@example.com", "admin-secret", enums.RoleAdmin, config.PasswordConfig{})

	resp, err := svc.Login(context.Background(), LoginRequest{Email: "ADMIN@example.com", Password: "admin-secret"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	claims, err := pkgAuth.ParseAccessToken(testJWT, resp.AccessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.Role != enums.RoleAdmin {
		t.Fatalf("expected admin role claim, got %s", claims.Role)
	}
	if user.LastLoginAt == nil {
		t.Fatalf("expected last login to be recorded")
	}
}

func TestServiceLoginBadCredentials(t *testing.T) {
	svc, repo, _ := buildTestService(t)
	repo.add(t, "ada@example.com", "correct-horse", enums.RoleCustomer, config.PasswordConfig{})

	for _, req := range []LoginRequest{
		{Email: "ada@example.com", Password: "wrong-horse"},
		{Email: "nobody@example.com", Password: "correct-horse"},
		{Email: "", Password: "correct-horse"},
	} {
		_, err := svc.Login(context.Background(), req)
		typed := pkgerrors.As(err)
		if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
			t.Fatalf("expected unauthorized for %q, got %v", req.Email, err)
		}
	}
}

func TestServiceLoginUpgradesStaleHash(t *testing.T) {
	svc, repo, _ := buildTestService(t)
	stale := config.PasswordConfig{ArgonMemoryKB: 8192, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 16, ArgonKeyLen: 32}
	user := repo.add(t, "ada@example.com", "correct-horse", enums.RoleCustomer, stale)
	before := user.PasswordHash

	if _, err := svc.Login(context.Background(), LoginRequest{Email: "ada@example.com", Password: "correct-horse"}); err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.PasswordHash == before {
		t.Fatalf("expected password hash to be upgraded")
	}
	if security.NeedsRehash(user.PasswordHash, config.PasswordConfig{}) {
		t.Fatalf("upgraded hash still uses stale parameters")
	}
	ok, err := security.VerifyPassword("correct-horse", user.PasswordHash)
	if err != nil || !ok {
		t.Fatalf("upgraded hash does not verify: %v", err)
	}
}

func TestServiceRefreshRotatesSession(t *testing.T) {
	svc, repo, sessions := buildTestService(t)
	repo.add(t, "ada@example.com", "correct-horse", enums.RoleCustomer, config.PasswordConfig{})
	ctx := context.Background()

	login, err := svc.Login(ctx, LoginRequest{Email: "ada@example.com", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	oldClaims, _ := pkgAuth.ParseAccessToken(testJWT, login.AccessToken)

	refreshed, err := svc.Refresh(ctx, RefreshRequest{AccessToken: login.AccessToken, RefreshToken: login.RefreshToken})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	newClaims, err := pkgAuth.ParseAccessToken(testJWT, refreshed.AccessToken)
	if err != nil {
		t.Fatalf("parse refreshed token: %v", err)
	}
	if newClaims.ID == oldClaims.ID {
		t.Fatalf("expected a new jti")
	}
	if _, ok := sessions.tokens[oldClaims.ID]; ok {
		t.Fatalf("old session should be gone")
	}

	_, err = svc.Refresh(ctx, RefreshRequest{AccessToken: login.AccessToken, RefreshToken: login.RefreshToken})
	if !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected replayed refresh to be unauthorized, got %v", err)
	}
}

func TestServiceLogoutAndMe(t *testing.T) {
	svc, repo, sessions := buildTestService(t)
	user := repo.add(t, "ada@example.com", "correct-horse", enums.RoleCustomer, config.PasswordConfig{})
	ctx := context.Background()

	login, err := svc.Login(ctx, LoginRequest{Email: "ada@example.com", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	claims, _ := pkgAuth.ParseAccessToken(testJWT, login.AccessToken)
	if err := svc.Logout(ctx, claims.ID); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, ok := sessions.tokens[claims.ID]; ok {
		t.Fatalf("session should be revoked")
	}

	me, err := svc.Me(ctx, user.ID)
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if me.Email != "ada@example.com" {
		t.Fatalf("unexpected user %+v", me)
	}
	if _, err := svc.Me(ctx, uuid.New()); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func buildTestService(t *testing.T) (Service, *stubUserRepo, *stubSessionManager) {
	t.Helper()
	repo := &stubUserRepo{byEmail: map[string]*models.User{}}
	sessions := &stubSessionManager{tokens: map[string]string{}, owners: map[string]uuid.UUID{}}
	svc, err := NewService(ServiceParams{
		UserRepo:       repo,
		SessionManager: sessions,
		JWTConfig:      testJWT,
		PasswordConfig: config.PasswordConfig{},
		Logger:         logger.New(logger.Options{ServiceName: "auth-test", Output: io.Discard}),
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc, repo, sessions
}

type stubUserRepo struct {
	byEmail map[string]*models.User
}

func (s *stubUserRepo) add(t *testing.T, email, password string, role enums.Role, cfg config.PasswordConfig) *models.User {
	t.Helper()
	hash, err := security.HashPassword(password, cfg)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := &models.User{ID: uuid.New(), Email: email, Name: email, PasswordHash: hash, Role: role}
	s.byEmail[email] = user
	return user
}

func (s *stubUserRepo) Create(ctx context.Context, dto users.CreateUserDTO) (*models.User, error) {
	user := dto.ToModel()
	user.ID = uuid.New()
	user.CreatedAt = time.Now()
	s.byEmail[user.Email] = user
	return user, nil
}

func (s *stubUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if user, ok := s.byEmail[email]; ok {
		return user, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubUserRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	for _, user := range s.byEmail {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubUserRepo) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	if user, err := s.FindByID(ctx, id); err == nil {
		user.LastLoginAt = &at
	}
	return nil
}

func (s *stubUserRepo) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	user, err := s.FindByID(ctx, id)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	return nil
}

type stubSessionManager struct {
	tokens map[string]string
	owners map[string]uuid.UUID
	seq    int
}

func (s *stubSessionManager) Generate(ctx context.Context, userID uuid.UUID, accessID string) (string, error) {
	s.seq++
	token := "refresh-" + accessID
	s.tokens[accessID] = token
	s.owners[accessID] = userID
	return token, nil
}

func (s *stubSessionManager) Rotate(ctx context.Context, userID uuid.UUID, oldAccessID, provided string) (string, string, error) {
	if s.tokens[oldAccessID] != provided || s.owners[oldAccessID] != userID || provided == "" {
		return "", "", session.ErrInvalidRefreshToken
	}
	delete(s.tokens, oldAccessID)
	delete(s.owners, oldAccessID)
	newID := session.NewAccessID()
	token, _ := s.Generate(ctx, userID, newID)
	return newID, token, nil
}

func (s *stubSessionManager) Revoke(ctx context.Context, accessID string) error {
	delete(s.tokens, accessID)
	delete(s.owners, accessID)
	return nil
}
