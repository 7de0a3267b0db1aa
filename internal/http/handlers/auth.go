package handlers

import (
	"net/http"
	"strings"

	"personastudio/internal/domain"
	"personastudio/internal/identity"
)

type credentialsRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	Name        string `json:"name"`
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type signInResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Session *identity.Session `json:"session"`
	User    domain.User       `json:"user"`
}

type meResponse struct {
	User       domain.User       `json:"user"`
	Privileges domain.Privileges `json:"privileges"`
	Usage      *monthlyUsage     `json:"usage,omitempty"`
}

type monthlyUsage struct {
	UsedThisMonth int `json:"used_this_month"`
	Remaining     int `json:"remaining"`
}

func (a *App) SignUp(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	res, err := a.Accounts.SignUp(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, map[string]any{
		"success":        true,
		"message":        res.Message,
		"user_sub":       res.UserSub,
		"user_confirmed": res.UserConfirmed,
	})
}

func (a *App) ConfirmSignUp(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	msg, err := a.Accounts.ConfirmSignUp(r.Context(), req.Email, req.Code)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, messageResponse{Success: true, Message: msg})
}

// SignIn exchanges credentials for tokens. The gateway keeps nothing; the
// caller presents the access token on later requests.
func (a *App) SignIn(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		a.fail(w, r, domain.Invalid("email", "email and password are required"))
		return
	}
	session, err := a.Accounts.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, signInResponse{
		Success: true,
		Message: identity.MessageSignedIn,
		Session: session,
		User:    session.User,
	})
}

func (a *App) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	msg, err := a.Accounts.ForgotPassword(r.Context(), req.Email)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, messageResponse{Success: true, Message: msg})
}

func (a *App) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	msg, err := a.Accounts.ConfirmPassword(r.Context(), req.Email, req.Code, req.NewPassword)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, messageResponse{Success: true, Message: msg})
}

// Me returns the caller, their privileges and, when runs are journaled, how
// much of the monthly allowance is left.
func (a *App) Me(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	priv := a.privilegesFor(r.Context(), user)
	resp := meResponse{User: *user, Privileges: priv}
	if used, ok := a.monthlyUsage(r, user); ok {
		remaining := domain.UnlimitedGenerations
		if priv.MaxGenerationsPerMonth != domain.UnlimitedGenerations {
			remaining = max(priv.MaxGenerationsPerMonth-used, 0)
		}
		resp.Usage = &monthlyUsage{UsedThisMonth: used, Remaining: remaining}
	}
	a.json(w, http.StatusOK, resp)
}
