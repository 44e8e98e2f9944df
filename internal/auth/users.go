package auth

import (
	"errors"
	"fmt"
	"strings"

	"gestion-locative/internal/apperr"
	"gestion-locative/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var ErrBadCredentials = errors.New("email ou mot de passe incorrect")

// CreateUser hashes the password and stores an active user.
func CreateUser(db *gorm.DB, name, email, password string, role models.UserRole) (*models.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if name == "" || email == "" || len(password) < 8 {
		return nil, apperr.Validation(apperr.CodeInvalidInput, "nom, email et mot de passe (8 caractères min.) requis")
	}
	if role != models.RoleAdmin && role != models.RoleManager {
		return nil, apperr.Validation(apperr.CodeInvalidInput, "rôle %q inconnu", role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash mot de passe: %w", err)
	}
	user := models.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		Active:       true,
	}
	if err := db.Create(&user).Error; err != nil {
		if apperr.IsUniqueViolation(err) {
			return nil, apperr.Conflict(apperr.CodeInvalidInput, "un utilisateur %s existe déjà", email)
		}
		return nil, fmt.Errorf("création utilisateur: %w", err)
	}
	return &user, nil
}

// Authenticate checks the credentials of an active user.
func Authenticate(db *gorm.DB, email, password string) (*models.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	var user models.User
	if err := db.Where("email = ? AND active = ?", email, true).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBadCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrBadCredentials
	}
	return &user, nil
}
