package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/cafe-pos/api/internal/auth"
	"github.com/cafe-pos/api/internal/database"
	"github.com/cafe-pos/api/internal/enum"
	"github.com/cafe-pos/api/internal/handler"
	"github.com/cafe-pos/api/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"
)

// --- Mock stores ---

type mockUserStore struct {
	users map[uuid.UUID]database.User
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{users: map[uuid.UUID]database.User{}}
}

func (m *mockUserStore) addUser(t *testing.T, username, password, role string) database.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	u := database.User{
		ID:             uuid.New(),
		Username:       username,
		HashedPassword: string(hashed),
		FullName:       username,
		Role:           role,
		IsActive:       true,
		CreatedAt:      time.Now(),
	}
	m.users[u.ID] = u
	return u
}

func (m *mockUserStore) GetUserByUsername(ctx context.Context, username string) (database.User, error) {
	for _, u := range m.users {
		if u.Username == username && u.IsActive {
			return u, nil
		}
	}
	return database.User{}, pgx.ErrNoRows
}

func (m *mockUserStore) GetUserByID(ctx context.Context, id uuid.UUID) (database.User, error) {
	u, ok := m.users[id]
	if !ok || !u.IsActive {
		return database.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func (m *mockUserStore) ListUsers(ctx context.Context) ([]database.User, error) {
	out := []database.User{}
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

func (m *mockUserStore) CreateUser(ctx context.Context, arg database.CreateUserParams) (database.User, error) {
	for _, u := range m.users {
		if u.Username == arg.Username {
			return database.User{}, &pgconn.PgError{Code: "23505"}
		}
	}
	u := database.User{
		ID: uuid.New(), Username: arg.Username, HashedPassword: arg.HashedPassword,
		FullName: arg.FullName, Role: arg.Role, IsActive: true, CreatedAt: time.Now(),
	}
	m.users[u.ID] = u
	return u, nil
}

func (m *mockUserStore) UpdateUser(ctx context.Context, arg database.UpdateUserParams) (database.User, error) {
	u, ok := m.users[arg.ID]
	if !ok {
		return database.User{}, pgx.ErrNoRows
	}
	u.FullName = arg.FullName
	u.Role = arg.Role
	if arg.HashedPassword.Valid {
		u.HashedPassword = arg.HashedPassword.String
	}
	m.users[u.ID] = u
	return u, nil
}

func (m *mockUserStore) SoftDeleteUser(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	u, ok := m.users[id]
	if !ok {
		return uuid.Nil, pgx.ErrNoRows
	}
	u.IsActive = false
	m.users[id] = u
	return id, nil
}

func setupAuthRouter(store *mockUserStore) *chi.Mux {
	h := handler.NewAuthHandler(store, testJWTSecret)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(testJWTSecret))
		h.RegisterProtectedRoutes(r)
	})
	return r
}

// --- Login ---

func TestLogin_Success(t *testing.T) {
	store := newMockUserStore()
	user := store.addUser(t, "rami", "secret1", enum.UserRoleCashier)
	router := setupAuthRouter(store)

	rr := doRequest(t, router, "POST", "/auth/login", map[string]string{"username": "rami", "password": "secret1"})
	assertStatus(t, rr, http.StatusOK)

	resp := decodeMap(t, rr)
	access, _ := resp["access_token"].(string)
	claims, err := auth.ValidateToken(testJWTSecret, access)
	if err != nil {
		t.Fatalf("access token invalid: %v", err)
	}
	if claims.UserID != user.ID || claims.Role != enum.UserRoleCashier || claims.Username != "rami" {
		t.Errorf("claims = %+v", claims)
	}

	refresh, _ := resp["refresh_token"].(string)
	if id, err := auth.ValidateRefreshToken(testJWTSecret, refresh); err != nil || id != user.ID {
		t.Errorf("refresh token: id=%s err=%v", id, err)
	}

	u := resp["user"].(map[string]interface{})
	if u["username"] != "rami" || u["role"] != enum.UserRoleCashier {
		t.Errorf("user = %v", u)
	}
	if _, leaked := u["hashed_password"]; leaked {
		t.Error("password hash leaked in response")
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	store := newMockUserStore()
	store.addUser(t, "rami", "secret1", enum.UserRoleCashier)
	inactive := store.addUser(t, "old", "secret1", enum.UserRoleBarista)
	inactive.IsActive = false
	store.users[inactive.ID] = inactive
	router := setupAuthRouter(store)

	for _, body := range []map[string]string{
		{"username": "rami", "password": "wrong"},
		{"username": "nobody", "password": "secret1"},
		{"username": "old", "password": "secret1"},
	} {
		rr := doRequest(t, router, "POST", "/auth/login", body)
		assertStatus(t, rr, http.StatusUnauthorized)
		assertError(t, decodeMap(t, rr), "invalid credentials")
	}

	rr := doRequest(t, router, "POST", "/auth/login", map[string]string{"username": "rami"})
	assertStatus(t, rr, http.StatusBadRequest)
}

// --- Refresh ---

func TestRefresh(t *testing.T) {
	store := newMockUserStore()
	user := store.addUser(t, "maya", "secret1", enum.UserRoleManager)
	router := setupAuthRouter(store)

	refresh, err := auth.GenerateRefreshToken(testJWTSecret, user.ID)
	if err != nil {
		t.Fatalf("generate refresh token: %v", err)
	}

	rr := doRequest(t, router, "POST", "/auth/refresh", map[string]string{"refresh_token": refresh})
	assertStatus(t, rr, http.StatusOK)

	access, err := auth.GenerateToken(testJWTSecret, user.ID, user.Username, user.Role)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	rr = doRequest(t, router, "POST", "/auth/refresh", map[string]string{"refresh_token": access})
	assertStatus(t, rr, http.StatusUnauthorized)
	assertError(t, decodeMap(t, rr), "invalid refresh token")
}

// --- Me ---

func TestMe(t *testing.T) {
	store := newMockUserStore()
	user := store.addUser(t, "nour", "secret1", enum.UserRoleBarista)
	router := setupAuthRouter(store)

	rr := doAuthRequest(t, router, "GET", "/auth/me", nil, testUser{ID: user.ID, Username: user.Username, Role: user.Role})
	assertStatus(t, rr, http.StatusOK)
	if resp := decodeMap(t, rr); resp["id"] != user.ID.String() {
		t.Errorf("id = %v, want %s", resp["id"], user.ID)
	}

	rr = doRequest(t, router, "GET", "/auth/me", nil)
	assertStatus(t, rr, http.StatusUnauthorized)
}
