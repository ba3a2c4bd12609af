package usecases

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"zapdesk/internal/entities"
	"zapdesk/internal/repository"
)

type AuthUsecase struct {
	operatorRepo *repository.OperatorRepository
	jwtSecret    []byte
}

func NewAuthUsecase(repo *repository.OperatorRepository, secret string) *AuthUsecase {
	return &AuthUsecase{
		operatorRepo: repo,
		jwtSecret:    []byte(secret),
	}
}

func (uc *AuthUsecase) Register(ctx context.Context, username, password, name, role, instance string) error {
	existing, err := uc.operatorRepo.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if existing != nil {
		return errors.New("username already exists")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	op := &entities.Operator{
		Username:     username,
		PasswordHash: string(hashed),
		Name:         name,
		Role:         role,
		Instance:     instance,
	}
	return uc.operatorRepo.Create(ctx, op)
}

func (uc *AuthUsecase) Login(ctx context.Context, username, password string) (string, error) {
	op, err := uc.operatorRepo.GetByUsername(ctx, username)
	if err != nil {
		return "", err
	}
	if op == nil || !op.IsActive {
		return "", errors.New("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(password)); err != nil {
		return "", errors.New("invalid credentials")
	}

	claims := jwt.MapClaims{
		"operator_id": op.ID,
		"username":    op.Username,
		"role":        op.Role,
		"instance":    op.Instance,
		"exp":         time.Now().Add(24 * time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(uc.jwtSecret)
}

// EnsureAdmin seeds the bootstrap admin account on first start.
func (uc *AuthUsecase) EnsureAdmin(ctx context.Context, username, password string) error {
	existing, err := uc.operatorRepo.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	return uc.Register(ctx, username, password, "Administrator", "admin", "")
}
