package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/North004/Server/internal/auth"
	"github.com/North004/Server/internal/config"
	"github.com/North004/Server/internal/metrics"
	"github.com/North004/Server/internal/middleware"
	"github.com/North004/Server/internal/model"
	"github.com/North004/Server/internal/post"
	"github.com/North004/Server/internal/repository"
	"github.com/North004/Server/internal/security"
	"github.com/North004/Server/internal/user"
)

// fakeStore は全リポジトリインターフェースを満たすインメモリ実装。
// ルーター経由の結合テストで使用する。
type fakeStore struct {
	mu        sync.Mutex
	users     map[string]*model.User    // key: user ID
	profiles  map[string]*model.Profile // key: user ID
	posts     map[string]*model.Post    // key: post ID
	reactions map[string]*model.Reaction
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:     make(map[string]*model.User),
		profiles:  make(map[string]*model.Profile),
		posts:     make(map[string]*model.Post),
		reactions: make(map[string]*model.Reaction),
	}
}

func (s *fakeStore) FindByID(ctx context.Context, id string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id], nil
}

func (s *fakeStore) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	u, _ := s.FindByUsername(ctx, username)
	return u != nil, nil
}

func (s *fakeStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) CreateWithProfile(ctx context.Context, u *model.User, p *model.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Username == u.Username {
			return repository.ErrDuplicateUsername
		}
		if existing.Email == u.Email {
			return repository.ErrDuplicateEmail
		}
	}
	s.users[u.ID] = u
	s.profiles[u.ID] = p
	return nil
}

func (s *fakeStore) ListAll(ctx context.Context) ([]*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make([]*model.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	return users, nil
}

func (s *fakeStore) FindByUserID(ctx context.Context, userID string) (*model.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profiles[userID], nil
}

func (s *fakeStore) Create(ctx context.Context, p *model.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts[p.ID] = p
	return nil
}

func (s *fakeStore) FindPostByID(ctx context.Context, id string) (*model.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.posts[id], nil
}

func (s *fakeStore) DeleteByID(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.posts, id)
	return nil
}

func (s *fakeStore) ListWithCounts(ctx context.Context) ([]model.PostWithCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []model.PostWithCounts
	for _, p := range s.posts {
		pwc := model.PostWithCounts{Post: *p}
		if u := s.users[p.UserID]; u != nil {
			pwc.Username = u.Username
		}
		for _, r := range s.reactions {
			if r.PostID != p.ID {
				continue
			}
			if r.IsLike {
				pwc.LikeCount++
			} else {
				pwc.DislikeCount++
			}
		}
		result = append(result, pwc)
	}
	return result, nil
}

func (s *fakeStore) Upsert(ctx context.Context, r *model.Reaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := r.PostID + "/" + r.UserID
	if existing, ok := s.reactions[key]; ok {
		existing.IsLike = r.IsLike
		existing.UpdatedAt = r.UpdatedAt
		return nil
	}
	s.reactions[key] = r
	return nil
}

func (s *fakeStore) CountByPost(ctx context.Context, postID string) (*model.ReactionCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := &model.ReactionCounts{PostID: postID}
	for _, r := range s.reactions {
		if r.PostID != postID {
			continue
		}
		if r.IsLike {
			counts.LikeCount++
		} else {
			counts.DislikeCount++
		}
	}
	return counts, nil
}

// postRepoAdapter はfakeStoreのFindPostByIDをPostRepositoryのFindByIDに合わせる。
type postRepoAdapter struct {
	*fakeStore
}

func (a postRepoAdapter) FindByID(ctx context.Context, id string) (*model.Post, error) {
	return a.FindPostByID(ctx, id)
}

// テスト用のargon2パラメータ（本番パラメータはテストには重い）
func lightHasher() *auth.PasswordHasher {
	return auth.NewPasswordHasher(auth.Argon2Params{
		Memory:      8 * 1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
}

func newTestRouter(t *testing.T, strategy config.AuthStrategy) (http.Handler, *fakeStore) {
	t.Helper()

	store := newFakeStore()

	var issuer auth.IdentityIssuer
	switch strategy {
	case config.AuthStrategySession:
		issuer = auth.NewSessionIssuer(newInMemorySessionStore(), 10*time.Minute)
	default:
		issuer = auth.NewTokenIssuer([]byte("test-secret-key-32-bytes-long!!!"), 60*time.Minute)
	}

	authSvc := auth.NewService(store, lightHasher(), issuer)
	postSvc := post.NewService(postRepoAdapter{store}, store, security.NewContentSanitizer())
	userSvc := user.NewService(store, store)

	rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		GeneralRate:     rate.Limit(1000),
		GeneralBurst:    1000,
		AuthRate:        rate.Limit(1000),
		AuthBurst:       1000,
		CleanupInterval: time.Hour,
	})
	t.Cleanup(rl.Stop)

	reg := prometheus.NewRegistry()

	router := NewRouter(&RouterDeps{
		Issuer:            issuer,
		UserRepo:          store,
		CORSAllowedOrigin: "http://localhost:5173",
		RateLimiter:       rl,
		Logger:            slog.New(slog.NewJSONHandler(io.Discard, nil)),
		AuthStrategy:      strategy,
		AuthService:       authSvc,
		AuthConfig:        AuthHandlerConfig{},
		PostService:       postSvc,
		UserService:       userSvc,
		Metrics:           metrics.NewCollector(reg),
		Gatherer:          reg,
	})

	return router, store
}

// inMemorySessionStore はauth.SessionStoreのテスト用インメモリ実装。
type inMemorySessionStore struct {
	mu      sync.Mutex
	entries map[string]map[string]string
}

func newInMemorySessionStore() *inMemorySessionStore {
	return &inMemorySessionStore{entries: make(map[string]map[string]string)}
}

func (s *inMemorySessionStore) Get(ctx context.Context, key string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[key], nil
}

func (s *inMemorySessionStore) Set(ctx context.Context, key string, attrs map[string]string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = attrs
	return nil
}

func (s *inMemorySessionStore) Touch(ctx context.Context, key string, ttl time.Duration) error {
	return nil
}

func (s *inMemorySessionStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func doJSON(t *testing.T, router http.Handler, method, target, body string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// 登録→ログイン→投稿→リアクションのエンドツーエンドシナリオ
func TestRouter_RegisterLoginReactScenario(t *testing.T) {
	router, _ := newTestRouter(t, config.AuthStrategyToken)

	// 1. 登録
	rec := doJSON(t, router, http.MethodPost, "/auth/register",
		`{"username":"alice123","email":"alice@example.com","password":"s3cret-password"}`, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}

	// 2. ログインしてCookieを取得
	rec = doJSON(t, router, http.MethodPost, "/auth/login",
		`{"username":"alice123","password":"s3cret-password"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("login should set a cookie")
	}

	// 3. 投稿を作成
	rec = doJSON(t, router, http.MethodPost, "/post",
		`{"title":"First post","content":"<p>hello</p>"}`, cookies)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create post status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	postData := env.Data.(map[string]any)
	postID := postData["id"].(string)

	// 4. likeリアクション
	rec = doJSON(t, router, http.MethodPost, fmt.Sprintf("/post/%s/react", postID),
		`{"is_like":true}`, cookies)
	if rec.Code != http.StatusOK {
		t.Fatalf("react status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	env = decodeEnvelope(t, rec)
	counts := env.Data.(map[string]any)
	if counts["likeCount"] != float64(1) || counts["dislikeCount"] != float64(0) {
		t.Errorf("counts = (%v, %v), want (1, 0)", counts["likeCount"], counts["dislikeCount"])
	}

	// 5. dislikeへ反転
	rec = doJSON(t, router, http.MethodPost, fmt.Sprintf("/post/%s/react", postID),
		`{"is_like":false}`, cookies)
	env = decodeEnvelope(t, rec)
	counts = env.Data.(map[string]any)
	if counts["likeCount"] != float64(0) || counts["dislikeCount"] != float64(1) {
		t.Errorf("after flip counts = (%v, %v), want (0, 1)", counts["likeCount"], counts["dislikeCount"])
	}

	// 6. 公開の投稿一覧に集計が反映される
	rec = doJSON(t, router, http.MethodGet, "/posts", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list posts status = %d, want %d", rec.Code, http.StatusOK)
	}
	env = decodeEnvelope(t, rec)
	items := env.Data.([]any)
	if len(items) != 1 {
		t.Fatalf("len(posts) = %d, want 1", len(items))
	}
	item := items[0].(map[string]any)
	if item["username"] != "alice123" {
		t.Errorf("username = %v, want alice123", item["username"])
	}
	if item["dislike_count"] != float64(1) {
		t.Errorf("dislike_count = %v, want 1", item["dislike_count"])
	}
}

func TestRouter_ProtectedRouteWithoutCookie_Returns401(t *testing.T) {
	router, _ := newTestRouter(t, config.AuthStrategyToken)

	rec := doJSON(t, router, http.MethodPost, "/post", `{"title":"x","content":"y"}`, nil)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}

	env := decodeEnvelope(t, rec)
	if env.Status != "fail" || env.Message != "user unauthorized" {
		t.Errorf("envelope = %+v, want fail/user unauthorized", env)
	}
}

func TestRouter_DuplicateRegistration_Returns400(t *testing.T) {
	router, _ := newTestRouter(t, config.AuthStrategyToken)

	body := `{"username":"alice123","email":"alice@example.com","password":"s3cret-password"}`
	if rec := doJSON(t, router, http.MethodPost, "/auth/register", body, nil); rec.Code != http.StatusCreated {
		t.Fatalf("first register status = %d, want %d", rec.Code, http.StatusCreated)
	}

	rec := doJSON(t, router, http.MethodPost, "/auth/register", body, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("second register status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	env := decodeEnvelope(t, rec)
	if env.Message != "Username already exists" {
		t.Errorf("message = %q, want %q", env.Message, "Username already exists")
	}
}

// セッション戦略ではログアウトが即時失効となる
func TestRouter_SessionStrategy_LogoutInvalidatesImmediately(t *testing.T) {
	router, _ := newTestRouter(t, config.AuthStrategySession)

	doJSON(t, router, http.MethodPost, "/auth/register",
		`{"username":"alice123","email":"alice@example.com","password":"s3cret-password"}`, nil)

	rec := doJSON(t, router, http.MethodPost, "/auth/login",
		`{"username":"alice123","password":"s3cret-password"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, want %d", rec.Code, http.StatusOK)
	}
	cookies := rec.Result().Cookies()

	// 保護ルートに到達できる
	rec = doJSON(t, router, http.MethodGet, "/users", "", cookies)
	if rec.Code != http.StatusOK {
		t.Fatalf("users status = %d, want %d", rec.Code, http.StatusOK)
	}

	// ログアウト（セッション戦略では保護ルート）
	rec = doJSON(t, router, http.MethodPost, "/auth/logout", "", cookies)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	// 同じCookieでの再アクセスは401
	rec = doJSON(t, router, http.MethodGet, "/users", "", cookies)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("after logout status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

// トークン戦略ではログアウトは公開ルートで、Cookieなしでも成功する
func TestRouter_TokenStrategy_LogoutIsPublic(t *testing.T) {
	router, _ := newTestRouter(t, config.AuthStrategyToken)

	rec := doJSON(t, router, http.MethodPost, "/auth/logout", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("logout status = %d, want %d", rec.Code, http.StatusOK)
	}
}

// is_logged_inは認証必須。証明がなければ401、あれば200を返す。
func TestRouter_IsLoggedIn_RequiresAuthentication(t *testing.T) {
	router, _ := newTestRouter(t, config.AuthStrategyToken)

	rec := doJSON(t, router, http.MethodGet, "/auth/is_logged_in", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("without cookie status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}

	rec = doJSON(t, router, http.MethodGet, "/auth/is_logged_in", "",
		[]*http.Cookie{{Name: "token", Value: "garbage"}})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("with invalid cookie status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}

	doJSON(t, router, http.MethodPost, "/auth/register",
		`{"username":"alice123","email":"alice@example.com","password":"s3cret-password"}`, nil)
	loginRec := doJSON(t, router, http.MethodPost, "/auth/login",
		`{"username":"alice123","password":"s3cret-password"}`, nil)

	rec = doJSON(t, router, http.MethodGet, "/auth/is_logged_in", "", loginRec.Result().Cookies())
	if rec.Code != http.StatusOK {
		t.Fatalf("with valid cookie status = %d, want %d", rec.Code, http.StatusOK)
	}
	env := decodeEnvelope(t, rec)
	if env.Data.(map[string]any)["logged_in"] != true {
		t.Error("logged_in should be true with valid cookie")
	}
}

// 有効な証明でもアカウントが削除済みなら401を返す
func TestRouter_IsLoggedIn_DeletedAccount_Returns401(t *testing.T) {
	router, store := newTestRouter(t, config.AuthStrategyToken)

	doJSON(t, router, http.MethodPost, "/auth/register",
		`{"username":"alice123","email":"alice@example.com","password":"s3cret-password"}`, nil)
	loginRec := doJSON(t, router, http.MethodPost, "/auth/login",
		`{"username":"alice123","password":"s3cret-password"}`, nil)
	cookies := loginRec.Result().Cookies()

	store.mu.Lock()
	for id := range store.users {
		delete(store.users, id)
	}
	store.mu.Unlock()

	rec := doJSON(t, router, http.MethodGet, "/auth/is_logged_in", "", cookies)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRouter_Health_ReturnsOK(t *testing.T) {
	router, _ := newTestRouter(t, config.AuthStrategyToken)

	rec := doJSON(t, router, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode health body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q, want ok", body["status"])
	}
}

func TestRouter_Metrics_ExposesPrometheusFormat(t *testing.T) {
	router, _ := newTestRouter(t, config.AuthStrategyToken)

	// 何かリクエストを流してからスクレイプ
	doJSON(t, router, http.MethodGet, "/health", "", nil)

	rec := doJSON(t, router, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), "server_http_status_total") {
		t.Error("metrics output should contain server_http_status_total")
	}
}

func TestRouter_SecurityAndCORSHeaders(t *testing.T) {
	router, _ := newTestRouter(t, config.AuthStrategyToken)

	rec := doJSON(t, router, http.MethodGet, "/health", "", nil)

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("Allow-Origin = %q, want http://localhost:5173", got)
	}
}
