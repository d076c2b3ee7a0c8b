package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/North004/Server/internal/auth"
	"github.com/North004/Server/internal/model"
	"github.com/North004/Server/internal/repository"
)

// mockUserRepo はUserRepositoryのモック実装。
type mockUserRepo struct {
	findByIDFn func(ctx context.Context, id string) (*model.User, error)
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return nil, nil
}

func (m *mockUserRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return false, nil
}

func (m *mockUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return false, nil
}

func (m *mockUserRepo) CreateWithProfile(ctx context.Context, user *model.User, profile *model.Profile) error {
	return nil
}

func (m *mockUserRepo) ListAll(ctx context.Context) ([]*model.User, error) {
	return nil, nil
}

var _ repository.UserRepository = (*mockUserRepo)(nil)

func testIssuer() *auth.TokenIssuer {
	return auth.NewTokenIssuer([]byte("test-secret-key-32-bytes-long!!!"), 60*time.Minute)
}

func issueProof(t *testing.T, issuer auth.IdentityIssuer, userID string) string {
	t.Helper()
	proof, _, err := issuer.Issue(context.Background(), userID)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	return proof
}

// 認証済みユーザーをエコーするテスト用ハンドラ
func echoUserHandler(t *testing.T, gotUser **model.User) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := UserFromContext(r.Context())
		if err != nil {
			t.Errorf("expected user in context, got %v", err)
		}
		*gotUser = user
		w.WriteHeader(http.StatusOK)
	})
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) GeneralResponse {
	t.Helper()
	var body GeneralResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	return body
}

func TestAuthMiddleware_ValidProof_InjectsUser(t *testing.T) {
	issuer := testIssuer()
	repo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, Username: "alice"}, nil
		},
	}

	var gotUser *model.User
	mw := NewAuthMiddleware(issuer, repo)
	handler := mw(echoUserHandler(t, &gotUser))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: issuer.CookieName(), Value: issueProof(t, issuer, "user-1")})
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if gotUser == nil || gotUser.ID != "user-1" {
		t.Errorf("context user = %+v, want user-1", gotUser)
	}
}

func TestAuthMiddleware_MissingCookie_Returns401(t *testing.T) {
	mw := NewAuthMiddleware(testIssuer(), &mockUserRepo{})
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}

	body := decodeEnvelope(t, rec)
	if body.Status != "fail" {
		t.Errorf("status field = %q, want %q", body.Status, "fail")
	}
	if body.Message != "user unauthorized" {
		t.Errorf("message = %q, want %q", body.Message, "user unauthorized")
	}
}

func TestAuthMiddleware_EmptyCookie_Returns401(t *testing.T) {
	issuer := testIssuer()
	mw := NewAuthMiddleware(issuer, &mockUserRepo{})
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: issuer.CookieName(), Value: ""})
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestAuthMiddleware_InvalidProof_Returns401(t *testing.T) {
	issuer := testIssuer()
	mw := NewAuthMiddleware(issuer, &mockUserRepo{})
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: issuer.CookieName(), Value: "not-a-valid-token"})
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

// 有効な証明を持っていてもアカウントが削除済みなら401を返す
func TestAuthMiddleware_DeletedAccount_Returns401(t *testing.T) {
	issuer := testIssuer()
	repo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return nil, nil
		},
	}

	mw := NewAuthMiddleware(issuer, repo)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: issuer.CookieName(), Value: issueProof(t, issuer, "deleted-user")})
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

// ユーザー取得のDB障害は401ではなく500を返す
func TestAuthMiddleware_RepoFailure_Returns500(t *testing.T) {
	issuer := testIssuer()
	repo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return nil, errors.New("connection refused")
		},
	}

	mw := NewAuthMiddleware(issuer, repo)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: issuer.CookieName(), Value: issueProof(t, issuer, "user-1")})
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}

	body := decodeEnvelope(t, rec)
	if body.Status != "error" {
		t.Errorf("status field = %q, want %q", body.Status, "error")
	}
}

// セッションストア障害（ErrInvalidProof以外のResolveエラー）は500を返す
func TestAuthMiddleware_StoreFailure_Returns500(t *testing.T) {
	store := &failingSessionStore{err: errors.New("redis down")}
	issuer := auth.NewSessionIssuer(store, 10*time.Minute)

	mw := NewAuthMiddleware(issuer, &mockUserRepo{})
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: issuer.CookieName(), Value: "some-session-key"})
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}

// failingSessionStore は常にエラーを返すSessionStore。
type failingSessionStore struct {
	err error
}

func (s *failingSessionStore) Get(ctx context.Context, key string) (map[string]string, error) {
	return nil, s.err
}

func (s *failingSessionStore) Set(ctx context.Context, key string, attrs map[string]string, ttl time.Duration) error {
	return s.err
}

func (s *failingSessionStore) Touch(ctx context.Context, key string, ttl time.Duration) error {
	return s.err
}

func (s *failingSessionStore) Delete(ctx context.Context, key string) error {
	return s.err
}

func TestUserFromContext_WithoutUser_ReturnsError(t *testing.T) {
	if _, err := UserFromContext(context.Background()); err == nil {
		t.Error("expected error for context without user")
	}
}

func TestContextWithUser_Roundtrip(t *testing.T) {
	want := &model.User{ID: "user-1", Username: "alice"}
	ctx := ContextWithUser(context.Background(), want)

	got, err := UserFromContext(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got.ID != want.ID {
		t.Errorf("user.ID = %q, want %q", got.ID, want.ID)
	}
}
