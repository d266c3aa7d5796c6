package auth

import (
	"strings"

	"kasa-backend/internal/config"
	"kasa-backend/internal/database"
	"kasa-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type CreateUserRequest struct {
	Name     string          `json:"name"`
	Email    string          `json:"email"`
	Password string          `json:"password"`
	Role     models.UserRole `json:"role"`
}

type UserResponse struct {
	ID    uint            `json:"id"`
	Name  string          `json:"name"`
	Email string          `json:"email"`
	Role  models.UserRole `json:"role"`
}

func toUserResponse(u models.User) UserResponse {
	return UserResponse{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

func newUser(body CreateUserRequest) (models.User, error) {
	body.Name = strings.TrimSpace(body.Name)
	body.Email = strings.TrimSpace(strings.ToLower(body.Email))

	if body.Email == "" || body.Password == "" || body.Name == "" {
		return models.User{}, fiber.NewError(fiber.StatusBadRequest, "İsim, email ve şifre zorunlu")
	}
	if len(body.Password) < 8 {
		return models.User{}, fiber.NewError(fiber.StatusBadRequest, "Şifre en az 8 karakter olmalı")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, fiber.NewError(fiber.StatusInternalServerError, "Şifre hashlenemedi")
	}

	return models.User{
		Name:         body.Name,
		Email:        body.Email,
		PasswordHash: string(hash),
		Role:         body.Role,
	}, nil
}

// POST /api/auth/register-admin (sadece ilk admin)
func RegisterAdminHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body RegisterRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		var count int64
		if err := database.DB.Model(&models.User{}).
			Where("role = ?", models.RoleAdmin).
			Count(&count).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Kullanıcılar okunamadı")
		}
		if count > 0 {
			return fiber.NewError(fiber.StatusForbidden, "Zaten bir admin var")
		}

		user, err := newUser(CreateUserRequest{
			Name:     body.Name,
			Email:    body.Email,
			Password: body.Password,
			Role:     models.RoleAdmin,
		})
		if err != nil {
			return err
		}

		if err := database.DB.Create(&user).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Kullanıcı oluşturulamadı")
		}

		return c.Status(fiber.StatusCreated).JSON(toUserResponse(user))
	}
}

func LoginHandler(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body LoginRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		body.Email = strings.TrimSpace(strings.ToLower(body.Email))

		var user models.User
		if err := database.DB.Where("email = ?", body.Email).First(&user).Error; err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Email veya şifre hatalı")
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(body.Password)); err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Email veya şifre hatalı")
		}

		token, err := GenerateToken(cfg.JWTSecret, &user)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Token oluşturulamadı")
		}

		return c.JSON(fiber.Map{
			"token": token,
			"user":  toUserResponse(user),
		})
	}
}

func MeHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := c.Locals(CtxUserIDKey).(uint)
		if !ok {
			return fiber.NewError(fiber.StatusForbidden, "Kullanıcı bilgisi alınamadı")
		}

		var user models.User
		if err := database.DB.First(&user, userID).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Kullanıcı bulunamadı")
		}
		return c.JSON(toUserResponse(user))
	}
}

// POST /api/admin/users (sadece admin) - kasiyer veya admin ekler
func CreateUserHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateUserRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}
		if body.Role == "" {
			body.Role = models.RoleCashier
		}
		if body.Role != models.RoleAdmin && body.Role != models.RoleCashier {
			return fiber.NewError(fiber.StatusBadRequest, "Rol 'admin' veya 'cashier' olmalı")
		}

		user, err := newUser(body)
		if err != nil {
			return err
		}

		var existing int64
		if err := database.DB.Model(&models.User{}).Where("email = ?", user.Email).Count(&existing).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Kullanıcılar okunamadı")
		}
		if existing > 0 {
			return fiber.NewError(fiber.StatusConflict, "Bu email zaten kayıtlı")
		}

		if err := database.DB.Create(&user).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Kullanıcı oluşturulamadı")
		}
		return c.Status(fiber.StatusCreated).JSON(toUserResponse(user))
	}
}

// GET /api/admin/users
func ListUsersHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var users []models.User
		if err := database.DB.Order("name asc").Find(&users).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Kullanıcılar listelenemedi")
		}

		res := make([]UserResponse, 0, len(users))
		for _, u := range users {
			res = append(res, toUserResponse(u))
		}
		return c.JSON(res)
	}
}
