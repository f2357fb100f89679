package rest

import (
	"net/http"

	wire "github.com/dmitrijs2005/capsulekeeper/internal/client/models"
	"github.com/dmitrijs2005/capsulekeeper/internal/server/services"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
}

type otpRequest struct {
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
}

type codeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type empty struct{}

func authResult(g *services.Grant) *wire.AuthResult {
	return &wire.AuthResult{
		AccessToken: g.AccessToken,
		TokenType:   "bearer",
		User:        g.User.Identity(),
	}
}

func (s *RESTServer) signup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	user, err := s.users.Signup(r.Context(), req.Email, req.Password, req.Username)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, struct {
		User *wire.Identity `json:"user"`
	}{User: user.Identity()})
}

func (s *RESTServer) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	g, err := s.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, authResult(g))
}

func (s *RESTServer) requestOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.users.RequestOTP(r.Context(), req.Email, req.Purpose); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, empty{})
}

func (s *RESTServer) verifyOTP(w http.ResponseWriter, r *http.Request) {
	var req wire.OtpChallenge
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	g, err := s.users.VerifyOTP(r.Context(), req.Email, string(req.Purpose), req.SubmittedCode, req.NewPassword)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	// recovery resets the password without signing in
	if g == nil {
		writeJSON(w, http.StatusOK, empty{})
		return
	}
	writeJSON(w, http.StatusOK, authResult(g))
}

func (s *RESTServer) verifyEmail(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.users.VerifyEmail(r.Context(), req.Email, req.Code); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, empty{})
}

func (s *RESTServer) resendVerification(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.users.ResendVerification(r.Context(), req.Email); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, empty{})
}

func (s *RESTServer) logout(w http.ResponseWriter, r *http.Request) {
	if err := s.users.Logout(r.Context(), claimsFrom(r.Context())); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, empty{})
}

func (s *RESTServer) me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userFrom(r.Context()).Identity())
}
