package models

import (
	"context"
	"errors"
	"html"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pawnest/adoptions_backend/config"
	"github.com/pawnest/adoptions_backend/utils"
	"golang.org/x/crypto/bcrypt"
)

type User struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Username  string    `gorm:"size:100;not null;unique" json:"username" binding:"required"`
	Name      string    `gorm:"size:100;not null" json:"name" binding:"required"`
	Email     *string   `gorm:"size:100;unique" json:"email"`
	Phone     string    `gorm:"size:20" json:"phone"`
	Password  string    `gorm:"size:255;not null" json:"password"`
	IsActive  *bool     `gorm:"not null" json:"is_active"`
	Role      UserRole  `gorm:"type:enum('Applicant', 'ShelterStaff', 'Admin');default:'Applicant'" json:"role"`
	ShelterId *int      `gorm:"index" json:"shelter_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUser struct {
	Username  string   `json:"username" binding:"required"`
	Name      string   `json:"name" binding:"required"`
	Email     string   `json:"email"`
	Phone     string   `json:"phone"`
	Password  string   `json:"password" binding:"required"`
	IsActive  *bool    `json:"is_active" binding:"required"`
	Role      UserRole `json:"role" binding:"required"`
	ShelterId *int     `json:"shelter_id"`
}

/*
caches:
	User:$username
*/

func (user User) RemoveInstanceRedis() error {
	if err := config.RemoveRedisKey("User:" + user.Username); err != nil {
		return err
	}
	return nil
}

type LoginInfo struct {
	Token       string   `json:"token"`
	Name        string   `json:"name"`
	Role        UserRole `json:"role"`
	ShelterId   *int     `json:"shelter_id"`
	ShelterName string   `json:"shelter_name"`
}

func (result *User) PrepareGive() {
	result.Password = ""
}

// destroy current session
func Logout(ctx context.Context) (bool, error) {
	token, ok := utils.GetTokenFromContext(ctx)
	if !ok || token == "" {
		return false, errors.New("token is required")
	}
	if err := config.RemoveRedisKey("Token:" + token); err != nil {
		return false, nil
	}
	return true, nil
}

func ClearRedisCache(ctx context.Context) (string, error) {
	err := config.ClearRedis(ctx)
	if err != nil {
		return "Failed to clear redis", nil
	}
	return "OK", nil
}

func Login(ctx context.Context, username string, password string) (*LoginInfo, error) {

	db := config.GetDB()
	var err error
	var result LoginInfo

	user := User{}

	// get User info
	exists, err := config.GetRedisObject("User:"+username, &user)
	if err != nil {
		return &result, err
	}
	if !exists {
		err = db.WithContext(ctx).Model(&User{}).Where("username = ?", username).Take(&user).Error

		if err != nil {
			return &result, errors.New("invalid username or password")
		}
	}

	// check login credentials
	err = utils.ComparePassword(user.Password, password)

	if err != nil && err == bcrypt.ErrMismatchedHashAndPassword {
		return &result, errors.New("invalid username or password")
	}

	isActive := *user.IsActive
	if !isActive {
		return &result, errors.New("user is disabled")
	}

	// generate token & response
	token := uuid.New()
	result.Token = token.String()
	result.Name = user.Username
	result.Role = user.Role
	result.ShelterId = user.ShelterId
	if user.ShelterId != nil && *user.ShelterId > 0 {
		var shelter Shelter
		if err := db.WithContext(ctx).Model(&Shelter{}).Where("id = ?", *user.ShelterId).First(&shelter).Error; err != nil {
			return nil, err
		}
		result.ShelterName = shelter.Name
	}

	// store token in redis
	token_lifespan, err := strconv.Atoi(os.Getenv("TOKEN_HOUR_LIFESPAN"))
	if err != nil {
		return &result, err
	}

	if err := config.SetRedisValue("Token:"+token.String(), user.Username, time.Duration(token_lifespan)*time.Hour); err != nil {
		return &result, err
	}
	if !exists {
		if err := config.SetRedisObject("User:"+user.Username, &user, time.Duration(token_lifespan)*time.Hour); err != nil {
			return &result, err
		}
	}

	return &result, nil
}

func CreateUser(ctx context.Context, input *NewUser) (*User, error) {

	db := config.GetDB()

	if input.Email != "" && !utils.IsValidEmail(input.Email) {
		return &User{}, utils.NewValidationError("invalid email address", map[string]string{"email": "email"})
	}
	if input.Phone != "" {
		if err := utils.ValidatePhoneNumber(input.Phone, utils.CountryCode); err != nil {
			return &User{}, utils.NewValidationError("invalid phone number", map[string]string{"phone": "phone"})
		}
	}
	if input.Role == UserRoleShelterStaff {
		if input.ShelterId == nil {
			return &User{}, utils.NewValidationError("shelter id is required for shelter staff", map[string]string{"shelter_id": "required"})
		}
		if err := ValidateShelterId(ctx, *input.ShelterId); err != nil {
			return &User{}, err
		}
	}

	if err := utils.ValidateUnique[User](ctx, 0, "username", input.Username, 0); err != nil {
		return &User{}, err
	}
	if input.Email != "" {
		if err := utils.ValidateUnique[User](ctx, 0, "email", input.Email, 0); err != nil {
			return &User{}, err
		}
	}

	hashedPassword, err := utils.HashPassword(input.Password)
	if err != nil {
		return &User{}, err
	}
	input.Email = strings.ToLower(input.Email)

	user := User{
		Username:  html.EscapeString(strings.TrimSpace(input.Username)),
		Name:      input.Name,
		Email:     utils.NilIfEmpty(input.Email),
		Phone:     input.Phone,
		Password:  string(hashedPassword),
		IsActive:  input.IsActive,
		Role:      input.Role,
		ShelterId: input.ShelterId,
	}

	err = db.WithContext(ctx).Create(&user).Error
	if err != nil {
		return &User{}, err
	}
	user.Password = ""
	return &user, nil
}

func GetUser(ctx context.Context, id int) (*User, error) {

	db := config.GetDB()
	var result User

	err := db.WithContext(ctx).First(&result, id).Error

	if err != nil {
		return &result, utils.ErrorRecordNotFound
	}

	result.PrepareGive()

	return &result, nil
}

// GetUserByUsername resolves the session user, redis cache first.
func GetUserByUsername(ctx context.Context, username string) (*User, error) {

	db := config.GetDB()
	user := User{}

	exists, err := config.GetRedisObject("User:"+username, &user)
	if err != nil {
		return nil, err
	}
	if exists {
		return &user, nil
	}

	if err := db.WithContext(ctx).Model(&User{}).Where("username = ?", username).Take(&user).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &user, nil
}

func (input *User) ChangeUserPassword() (*User, error) {

	db := config.GetDB()
	hashedPassword, err := utils.HashPassword(input.Password)
	if err != nil {
		return &User{}, err
	}
	input.Password = string(hashedPassword)

	var existing User
	err = db.Model(&User{}).Where("id = ?", input.ID).First(&existing).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}

	err = db.Model(&existing).Update("password", input.Password).Error
	if err != nil {
		return &User{}, err
	}

	if err := existing.RemoveInstanceRedis(); err != nil {
		return &User{}, err
	}
	existing.PrepareGive()
	return &existing, nil
}
