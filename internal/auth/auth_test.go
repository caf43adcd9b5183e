package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khshop/livestore/internal/shop"
	"github.com/khshop/livestore/internal/store"
)

type memSellers struct {
	byID map[string]shop.Seller
}

func newMemSellers() *memSellers {
	return &memSellers{byID: make(map[string]shop.Seller)}
}

func (m *memSellers) Create(ctx context.Context, email, name, shopName, passwordHash string) (shop.Seller, error) {
	s := shop.Seller{ID: uuid.NewString(), Email: email, Name: name, ShopName: shopName, PasswordHash: passwordHash}
	m.byID[s.ID] = s
	return s, nil
}

func (m *memSellers) ByEmail(ctx context.Context, email string) (shop.Seller, error) {
	for _, s := range m.byID {
		if s.Email == email {
			return s, nil
		}
	}
	return shop.Seller{}, store.ErrNotFound
}

func (m *memSellers) ByID(ctx context.Context, id string) (shop.Seller, error) {
	s, ok := m.byID[id]
	if !ok {
		return shop.Seller{}, store.ErrNotFound
	}
	return s, nil
}

func newService() *Service {
	return &Service{Sellers: newMemSellers(), Secret: []byte("test-secret"), TTL: time.Hour}
}

func TestSignUpAndVerify(t *testing.T) {
	svc := newService()

	seller, tok, err := svc.SignUp(context.Background(), "kh@example.com", "KH", "KH Shop", "longenough")
	require.NoError(t, err)
	require.NotEmpty(t, tok)

	id, err := svc.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, seller.ID, id)
}

func TestSignUpRejectsShortPassword(t *testing.T) {
	svc := newService()
	_, _, err := svc.SignUp(context.Background(), "kh@example.com", "KH", "KH Shop", "short")
	assert.Error(t, err)
}

func TestSignIn(t *testing.T) {
	svc := newService()
	_, _, err := svc.SignUp(context.Background(), "kh@example.com", "KH", "KH Shop", "longenough")
	require.NoError(t, err)

	seller, tok, err := svc.SignIn(context.Background(), "kh@example.com", "longenough")
	require.NoError(t, err)
	assert.Equal(t, "kh@example.com", seller.Email)
	assert.NotEmpty(t, tok)

	_, _, err = svc.SignIn(context.Background(), "kh@example.com", "wrongpass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.SignIn(context.Background(), "nobody@example.com", "longenough")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	svc := newService()
	_, tok, err := svc.SignUp(context.Background(), "kh@example.com", "KH", "KH Shop", "longenough")
	require.NoError(t, err)

	_, err = svc.Verify("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := &Service{Sellers: newMemSellers(), Secret: []byte("other-secret"), TTL: time.Hour}
	_, err = other.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	svc := &Service{Sellers: newMemSellers(), Secret: []byte("test-secret"), TTL: -time.Minute}
	_, tok, err := svc.SignUp(context.Background(), "kh@example.com", "KH", "KH Shop", "longenough")
	require.NoError(t, err)

	_, err = svc.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
