package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/volunteerhub/authcore"
)

type server struct {
	engine *authcore.Engine
}

type response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Token   string `json:"token,omitempty"`
	User    *user  `json:"user,omitempty"`
}

type user struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
	Role     string `json:"role"`
}

type identityKey struct{}

func writeJSON(w http.ResponseWriter, status int, resp response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("volunteerauthd: write response: %v", err)
	}
}

func writeErr(w http.ResponseWriter, err error) {
	var loginThrottled *authcore.LoginThrottledError
	if errors.As(err, &loginThrottled) {
		writeJSON(w, http.StatusTooManyRequests, response{
			Message: fmt.Sprintf("Too many login attempts from this IP. Try again in %d minutes.", loginThrottled.RetryMinutes()),
		})
		return
	}

	var throttled *authcore.ThrottledError
	if errors.As(err, &throttled) {
		writeJSON(w, http.StatusTooManyRequests, response{
			Message: fmt.Sprintf("Too many OTP requests. Try again in %d minutes.", throttled.RetryMinutes()),
		})
		return
	}

	var attempts *authcore.OTPAttemptsError
	if errors.As(err, &attempts) {
		writeJSON(w, http.StatusUnauthorized, response{
			Message: fmt.Sprintf("Invalid OTP. %d attempts remaining.", attempts.Remaining),
		})
		return
	}

	var (
		status  int
		message string
	)
	switch {
	case errors.Is(err, authcore.ErrInvalidCredentials):
		status, message = http.StatusUnauthorized, "Invalid credentials"
	case errors.Is(err, authcore.ErrAccountLocked):
		status, message = http.StatusLocked, "Account locked. Try again later."
	case errors.Is(err, authcore.ErrAccountNotFound):
		status, message = http.StatusNotFound, "User not found"
	case errors.Is(err, authcore.ErrOTPAttemptsExceeded):
		status, message = http.StatusTooManyRequests, "Too many incorrect attempts. Request a new OTP."
	case errors.Is(err, authcore.ErrOTPInvalid):
		status, message = http.StatusUnauthorized, "Invalid or expired OTP"
	case errors.Is(err, authcore.ErrEmailExists):
		status, message = http.StatusConflict, "Email already exists"
	case errors.Is(err, authcore.ErrUsernameExists):
		status, message = http.StatusConflict, "Username already exists"
	case errors.Is(err, authcore.ErrUsernamePolicy),
		errors.Is(err, authcore.ErrEmailInvalid),
		errors.Is(err, authcore.ErrPasswordPolicy),
		errors.Is(err, authcore.ErrPhonePolicy):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, authcore.ErrSessionExpired):
		status, message = http.StatusUnauthorized, "Session expired"
	case errors.Is(err, authcore.ErrSessionSignature), errors.Is(err, authcore.ErrSessionInvalid):
		status, message = http.StatusUnauthorized, "Invalid session"
	case errors.Is(err, authcore.ErrMailDispatchFailed):
		status, message = http.StatusBadGateway, "Could not send OTP email"
	default:
		log.Printf("volunteerauthd: internal error: %v", err)
		status, message = http.StatusInternalServerError, "Internal server error"
	}
	writeJSON(w, status, response{Message: message})
}

func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// requestCtx tags the request context with client metadata for the audit
// trail.
func requestCtx(r *http.Request) context.Context {
	ctx := authcore.WithClientIP(r.Context(), r.RemoteAddr)
	return authcore.WithUserAgent(ctx, r.UserAgent())
}

func (s *server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username    string `json:"username"`
		Email       string `json:"email"`
		Password    string `json:"password"`
		PhoneNumber string `json:"phoneNumber"`
	}
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{Message: "Invalid request body"})
		return
	}

	acct, err := s.engine.Register(requestCtx(r), authcore.RegisterInput{
		Username:    req.Username,
		Email:       req.Email,
		Password:    req.Password,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, response{
		Success: true,
		Message: "User registered successfully",
		User:    &user{ID: acct.ID, Username: acct.Username, Role: string(acct.Role)},
	})
}

func (s *server) handleCheckExisting(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
	}
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{Message: "Invalid request body"})
		return
	}

	ctx := requestCtx(r)
	if req.Email != "" {
		taken, err := s.engine.EmailExists(ctx, req.Email)
		if err != nil {
			writeErr(w, err)
			return
		}
		if taken {
			writeJSON(w, http.StatusConflict, response{Message: "Email already exists"})
			return
		}
	}
	if req.Username != "" {
		taken, err := s.engine.UsernameExists(ctx, req.Username)
		if err != nil {
			writeErr(w, err)
			return
		}
		if taken {
			writeJSON(w, http.StatusConflict, response{Message: "Username already exists"})
			return
		}
	}

	writeJSON(w, http.StatusOK, response{Success: true, Message: "Available"})
}

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{Message: "Invalid request body"})
		return
	}

	result, err := s.engine.Login(requestCtx(r), req.Email, req.Password)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, response{
		Success: true,
		Message: "Login successful",
		Token:   result.Token,
		User: &user{
			ID:       result.Identity.AccountID,
			Username: result.Identity.Username,
			Role:     string(result.Identity.Role),
		},
	})
}

func (s *server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{Message: "Invalid request body"})
		return
	}

	if err := s.engine.RequestPasswordReset(requestCtx(r), req.Email); err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Success: true, Message: "OTP sent to email"})
}

func (s *server) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email       string `json:"email"`
		OTP         string `json:"otp"`
		NewPassword string `json:"newPassword"`
	}
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{Message: "Invalid request body"})
		return
	}

	if err := s.engine.ConfirmPasswordReset(requestCtx(r), req.Email, req.OTP, req.NewPassword); err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Success: true, Message: "Password reset successful"})
}

// handleLogout is a client-side affair: session tokens are stateless and
// simply age out. The endpoint exists so clients have a uniform flow.
func (s *server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, response{Success: true, Message: "Logged out"})
}

func (s *server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if raw == "" || raw == r.Header.Get("Authorization") {
			writeJSON(w, http.StatusUnauthorized, response{Message: "Missing bearer token"})
			return
		}

		identity, err := s.engine.ValidateSession(r.Context(), raw)
		if err != nil {
			writeErr(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, identity)))
	})
}

func (s *server) handleMe(w http.ResponseWriter, r *http.Request) {
	identity, ok := r.Context().Value(identityKey{}).(authcore.Identity)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, response{Message: "Invalid session"})
		return
	}

	acct, err := s.engine.AccountByID(r.Context(), identity.AccountID)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, response{
		Success: true,
		User:    &user{ID: acct.ID, Username: acct.Username, Role: string(acct.Role)},
	})
}
