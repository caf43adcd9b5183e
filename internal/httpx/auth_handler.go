package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/khshop/livestore/internal/auth"
	"github.com/khshop/livestore/internal/shop"
)

type AuthHandler struct {
	Auth *auth.Service
	Log  logrus.FieldLogger
}

type signUpReq struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	ShopName string `json:"shop_name"`
	Password string `json:"password"`
}

type signInReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResp struct {
	Token  string      `json:"token"`
	Seller shop.Seller `json:"seller"`
}

func (h *AuthHandler) Register(r *chi.Mux) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(15 * time.Second))
		r.Post("/auth/signup", h.signUp)
		r.Post("/auth/signin", h.signIn)
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(h.Auth))
			r.Get("/auth/me", h.me)
		})
	})
}

func (h *AuthHandler) signUp(w http.ResponseWriter, r *http.Request) {
	var req signUpReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	seller, tok, err := h.Auth.SignUp(r.Context(), req.Email, req.Name, req.ShopName, req.Password)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, sessionResp{Token: tok, Seller: seller})
}

func (h *AuthHandler) signIn(w http.ResponseWriter, r *http.Request) {
	var req signInReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	seller, tok, err := h.Auth.SignIn(r.Context(), req.Email, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if err != nil {
		h.Log.WithError(err).Error("sign in failed")
		writeError(w, http.StatusInternalServerError, "sign in failed")
		return
	}
	writeJSON(w, http.StatusOK, sessionResp{Token: tok, Seller: seller})
}

func (h *AuthHandler) me(w http.ResponseWriter, r *http.Request) {
	seller, err := h.Auth.CurrentSeller(r.Context(), auth.SellerID(r.Context()))
	if err != nil {
		writeError(w, http.StatusNotFound, "seller not found")
		return
	}
	writeJSON(w, http.StatusOK, seller)
}
