package auth

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"kasa-backend/internal/config"
	"kasa-backend/internal/database"
	"kasa-backend/internal/database/dbtest"
	"kasa-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-en-az-32-karakter-uzunlukta"

func newAuthApp(t *testing.T) *fiber.App {
	t.Helper()
	dbtest.New(t)
	cfg := &config.Config{JWTSecret: testSecret}

	app := fiber.New()
	app.Post("/auth/register-admin", RegisterAdminHandler())
	app.Post("/auth/login", LoginHandler(cfg))

	protected := app.Group("", JWTMiddleware(cfg))
	protected.Get("/auth/me", MeHandler())

	admin := protected.Group("/admin", RequireRole(models.RoleAdmin))
	admin.Post("/users", CreateUserHandler())
	admin.Get("/users", ListUsersHandler())
	return app
}

func call(t *testing.T, app *fiber.App, method, url, body, token string) (int, []byte) {
	t.Helper()
	req := httptest.NewRequest(method, url, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func login(t *testing.T, app *fiber.App, email, password string) string {
	t.Helper()
	status, out := call(t, app, "POST", "/auth/login", `{"email":"`+email+`","password":"`+password+`"}`, "")
	require.Equal(t, fiber.StatusOK, status, string(out))
	var res struct {
		Token string       `json:"token"`
		User  UserResponse `json:"user"`
	}
	require.NoError(t, json.Unmarshal(out, &res))
	require.NotEmpty(t, res.Token)
	return res.Token
}

func TestRegisterAdmin_OnlyFirst(t *testing.T) {
	app := newAuthApp(t)

	status, _ := call(t, app, "POST", "/auth/register-admin", `{"name":"Ayşe","email":"ayse@kasa.local","password":"kisa"}`, "")
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, out := call(t, app, "POST", "/auth/register-admin", `{"name":"Ayşe","email":" AYSE@kasa.local ","password":"gizli-sifre"}`, "")
	require.Equal(t, fiber.StatusCreated, status, string(out))
	var u UserResponse
	require.NoError(t, json.Unmarshal(out, &u))
	assert.Equal(t, "ayse@kasa.local", u.Email)
	assert.Equal(t, models.RoleAdmin, u.Role)

	status, _ = call(t, app, "POST", "/auth/register-admin", `{"name":"Mehmet","email":"mehmet@kasa.local","password":"gizli-sifre"}`, "")
	assert.Equal(t, fiber.StatusForbidden, status)
}

func TestLogin_AndMe(t *testing.T) {
	app := newAuthApp(t)
	status, _ := call(t, app, "POST", "/auth/register-admin", `{"name":"Ayşe","email":"ayse@kasa.local","password":"gizli-sifre"}`, "")
	require.Equal(t, fiber.StatusCreated, status)

	status, _ = call(t, app, "POST", "/auth/login", `{"email":"ayse@kasa.local","password":"yanlis-sifre"}`, "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
	status, _ = call(t, app, "POST", "/auth/login", `{"email":"yok@kasa.local","password":"gizli-sifre"}`, "")
	assert.Equal(t, fiber.StatusUnauthorized, status)

	token := login(t, app, "AYSE@kasa.local", "gizli-sifre")

	status, out := call(t, app, "GET", "/auth/me", "", token)
	require.Equal(t, fiber.StatusOK, status)
	var me UserResponse
	require.NoError(t, json.Unmarshal(out, &me))
	assert.Equal(t, "Ayşe", me.Name)
}

func TestJWTMiddleware_Rejects(t *testing.T) {
	app := newAuthApp(t)

	status, _ := call(t, app, "GET", "/auth/me", "", "")
	assert.Equal(t, fiber.StatusUnauthorized, status)

	req := httptest.NewRequest("GET", "/auth/me", nil)
	req.Header.Set("Authorization", "Token abc")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	forged, err := GenerateToken("baska-bir-secret", &models.User{ID: 1, Email: "x@kasa.local", Role: models.RoleAdmin})
	require.NoError(t, err)
	status, _ = call(t, app, "GET", "/auth/me", "", forged)
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestCreateUser_RolesAndDuplicates(t *testing.T) {
	app := newAuthApp(t)
	status, _ := call(t, app, "POST", "/auth/register-admin", `{"name":"Ayşe","email":"ayse@kasa.local","password":"gizli-sifre"}`, "")
	require.Equal(t, fiber.StatusCreated, status)
	admin := login(t, app, "ayse@kasa.local", "gizli-sifre")

	status, _ = call(t, app, "POST", "/admin/users", `{"name":"Veli","email":"veli@kasa.local","password":"gizli-sifre","role":"muhasebe"}`, admin)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, out := call(t, app, "POST", "/admin/users", `{"name":"Veli","email":"veli@kasa.local","password":"gizli-sifre"}`, admin)
	require.Equal(t, fiber.StatusCreated, status, string(out))
	var u UserResponse
	require.NoError(t, json.Unmarshal(out, &u))
	assert.Equal(t, models.RoleCashier, u.Role)

	status, _ = call(t, app, "POST", "/admin/users", `{"name":"Veli 2","email":"VELI@kasa.local","password":"gizli-sifre"}`, admin)
	assert.Equal(t, fiber.StatusConflict, status)

	status, out = call(t, app, "GET", "/admin/users", "", admin)
	require.Equal(t, fiber.StatusOK, status)
	var users []UserResponse
	require.NoError(t, json.Unmarshal(out, &users))
	require.Len(t, users, 2)
	assert.Equal(t, "Ayşe", users[0].Name)
}

func TestRequireRole_CashierBlocked(t *testing.T) {
	app := newAuthApp(t)
	status, _ := call(t, app, "POST", "/auth/register-admin", `{"name":"Ayşe","email":"ayse@kasa.local","password":"gizli-sifre"}`, "")
	require.Equal(t, fiber.StatusCreated, status)
	admin := login(t, app, "ayse@kasa.local", "gizli-sifre")

	status, _ = call(t, app, "POST", "/admin/users", `{"name":"Veli","email":"veli@kasa.local","password":"gizli-sifre","role":"cashier"}`, admin)
	require.Equal(t, fiber.StatusCreated, status)
	cashier := login(t, app, "veli@kasa.local", "gizli-sifre")

	status, _ = call(t, app, "GET", "/admin/users", "", cashier)
	assert.Equal(t, fiber.StatusForbidden, status)
	status, _ = call(t, app, "GET", "/auth/me", "", cashier)
	assert.Equal(t, fiber.StatusOK, status)
}

func TestRegisterAdmin_CountFailureIsServerError(t *testing.T) {
	app := newAuthApp(t)
	require.NoError(t, database.DB.Migrator().DropTable(&models.User{}))

	status, _ := call(t, app, "POST", "/auth/register-admin", `{"name":"Ayşe","email":"ayse@kasa.local","password":"gizli-sifre"}`, "")
	assert.Equal(t, fiber.StatusInternalServerError, status)
}
