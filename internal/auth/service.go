package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/khshop/livestore/internal/shop"
	"github.com/khshop/livestore/internal/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

type SellerStore interface {
	Create(ctx context.Context, email, name, shopName, passwordHash string) (shop.Seller, error)
	ByEmail(ctx context.Context, email string) (shop.Seller, error)
	ByID(ctx context.Context, id string) (shop.Seller, error)
}

type Service struct {
	Sellers SellerStore
	Secret  []byte
	TTL     time.Duration
}

func (s *Service) SignUp(ctx context.Context, email, name, shopName, password string) (shop.Seller, string, error) {
	if email == "" || name == "" || shopName == "" || len(password) < 8 {
		return shop.Seller{}, "", errors.New("email, name, shop name and a password of at least 8 characters are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return shop.Seller{}, "", err
	}
	seller, err := s.Sellers.Create(ctx, email, name, shopName, string(hash))
	if err != nil {
		return shop.Seller{}, "", fmt.Errorf("create seller: %w", err)
	}
	tok, err := s.token(seller.ID)
	return seller, tok, err
}

func (s *Service) SignIn(ctx context.Context, email, password string) (shop.Seller, string, error) {
	seller, err := s.Sellers.ByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return shop.Seller{}, "", ErrInvalidCredentials
	}
	if err != nil {
		return shop.Seller{}, "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(seller.PasswordHash), []byte(password)) != nil {
		return shop.Seller{}, "", ErrInvalidCredentials
	}
	tok, err := s.token(seller.ID)
	return seller, tok, err
}

// CurrentSeller resolves the session subject back to a seller row.
func (s *Service) CurrentSeller(ctx context.Context, sellerID string) (shop.Seller, error) {
	return s.Sellers.ByID(ctx, sellerID)
}

func (s *Service) token(sellerID string) (string, error) {
	now := time.Now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   sellerID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.TTL)),
	})
	return t.SignedString(s.Secret)
}

// Verify checks the signature and expiry and returns the seller id.
func (s *Service) Verify(tokenString string) (string, error) {
	t, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.Secret, nil
	})
	if err != nil || !t.Valid {
		return "", ErrInvalidToken
	}
	claims, ok := t.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
