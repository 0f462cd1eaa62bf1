// Package auth manages accounts: signing up, signing in, and changing passwords
package auth

import (
	"errors"
	"fmt"

	"github.com/jinzhu/gorm"
	"golang.org/x/crypto/bcrypt"

	"go.senan.xyz/crate/db"
	"go.senan.xyz/crate/validation"
)

var (
	ErrInvalidCredentials = errors.New("invalid email / password")
	ErrEmailTaken         = errors.New("an account with that email already exists")
	ErrPasswordsNotSame   = errors.New("passwords do not match")
)

type Credentials struct {
	Email    string `json:"email"    mapstructure:"email"    validate:"required,email,max=320"`
	Password string `json:"password" mapstructure:"password" validate:"required,min=6,max=72,maxbytes=72"`
}

type Authenticator struct {
	dbc  *db.DB
	cost int
}

func New(dbc *db.DB) *Authenticator {
	return NewCost(dbc, bcrypt.DefaultCost)
}

// NewCost is New with a custom bcrypt cost, tests use bcrypt.MinCost
func NewCost(dbc *db.DB, cost int) *Authenticator {
	return &Authenticator{dbc: dbc, cost: cost}
}

func (a *Authenticator) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// SignUp creates the user and their empty profile
func (a *Authenticator) SignUp(creds Credentials) (*db.User, error) {
	creds.Email = db.NormaliseEmail(creds.Email)
	if err := validation.Struct(creds); err != nil {
		return nil, err
	}
	switch _, err := a.dbc.GetUserByEmail(creds.Email); {
	case err == nil:
		return nil, ErrEmailTaken
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}
	hash, err := a.HashPassword(creds.Password)
	if err != nil {
		return nil, err
	}

	user := &db.User{
		Email:        creds.Email,
		PasswordHash: hash,
	}
	err = a.dbc.WithTx(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			if db.IsUniqueViolation(err) {
				// another sign up won since we checked
				return ErrEmailTaken
			}
			return fmt.Errorf("create user: %w", err)
		}
		if err := tx.Create(&db.Profile{ID: user.ID}).Error; err != nil {
			return fmt.Errorf("create profile: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (a *Authenticator) SignIn(email, password string) (*db.User, error) {
	user, err := a.dbc.GetUserByEmail(email)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, ErrInvalidCredentials
	case err != nil:
		return nil, err
	}
	if !CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (a *Authenticator) ChangePassword(user *db.User, passwordOne, passwordTwo string) error {
	if passwordOne != passwordTwo {
		return ErrPasswordsNotSame
	}
	if err := validation.Struct(Credentials{Email: user.Email, Password: passwordOne}); err != nil {
		return err
	}
	hash, err := a.HashPassword(passwordOne)
	if err != nil {
		return err
	}
	err = a.dbc.
		Model(user).
		Update("password_hash", hash).
		Error
	if err != nil {
		return fmt.Errorf("save password: %w", err)
	}
	return nil
}
