package http

import (
	"log/slog"
	"net/http"

	"bilancio/internal/auth"
)

type authPageData struct {
	Error string
	Email string
	Token string
	Info  string
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.render(w, r, "signup.html", authPageData{})
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			s.render(w, r, "signup.html", authPageData{Error: "Richiesta non valida"})
			return
		}
		email := sanitizeInput(r.Form.Get("email"))
		password := r.Form.Get("password")

		_, err := s.auth.SignUp(r.Context(), email, password)
		if err != nil {
			msg := "Registrazione non riuscita"
			switch {
			case errorsIs(err, auth.ErrInvalidEmail):
				msg = "Indirizzo email non valido"
			case errorsIs(err, auth.ErrWeakPassword):
				msg = "La password deve avere almeno 8 caratteri"
			case errorsIs(err, auth.ErrEmailTaken):
				msg = "Email già registrata"
			default:
				slog.ErrorContext(r.Context(), "Sign-up failed", "error", err)
			}
			w.WriteHeader(http.StatusUnprocessableEntity)
			s.render(w, r, "signup.html", authPageData{Error: msg, Email: email})
			return
		}

		// Open the session right away, registration doubles as login.
		token, err := s.auth.SignIn(r.Context(), email, password)
		if err != nil {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		s.setSessionCookie(w, token)
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.render(w, r, "login.html", authPageData{})
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			s.render(w, r, "login.html", authPageData{Error: "Richiesta non valida"})
			return
		}
		email := sanitizeInput(r.Form.Get("email"))
		password := r.Form.Get("password")

		token, err := s.auth.SignIn(r.Context(), email, password)
		if err != nil {
			if !errorsIs(err, auth.ErrInvalidCredentials) {
				slog.ErrorContext(r.Context(), "Sign-in failed", "error", err)
			}
			w.WriteHeader(http.StatusUnauthorized)
			s.render(w, r, "login.html", authPageData{Error: "Email o password errati", Email: email})
			return
		}
		s.setSessionCookie(w, token)
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if cookie, err := r.Cookie(sessionCookie); err == nil && cookie.Value != "" {
		if err := s.auth.SignOut(r.Context(), cookie.Value); err != nil {
			slog.ErrorContext(r.Context(), "Sign-out failed", "error", err)
		}
		s.staged.Delete(cookie.Value)
	}
	s.clearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) handlePasswordResetRequest(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.render(w, r, "reset_request.html", authPageData{})
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			s.render(w, r, "reset_request.html", authPageData{Error: "Richiesta non valida"})
			return
		}
		email := sanitizeInput(r.Form.Get("email"))
		if err := s.auth.RequestPasswordReset(r.Context(), email); err != nil {
			slog.ErrorContext(r.Context(), "Password reset request failed", "error", err)
		}
		// Same answer whether or not the account exists.
		s.render(w, r, "reset_request.html", authPageData{
			Info: "Se l'indirizzo è registrato riceverai un'email con le istruzioni",
		})
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handlePasswordResetConfirm(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		token := sanitizeInput(r.URL.Query().Get("token"))
		s.render(w, r, "reset_confirm.html", authPageData{Token: token})
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			s.render(w, r, "reset_confirm.html", authPageData{Error: "Richiesta non valida"})
			return
		}
		token := sanitizeInput(r.Form.Get("token"))
		password := r.Form.Get("password")

		if err := s.auth.ResetPassword(r.Context(), token, password); err != nil {
			msg := "Reimpostazione non riuscita"
			switch {
			case errorsIs(err, auth.ErrWeakPassword):
				msg = "La password deve avere almeno 8 caratteri"
			case errorsIs(err, auth.ErrInvalidCredentials):
				msg = "Token di reset non valido o scaduto"
			default:
				slog.ErrorContext(r.Context(), "Password reset failed", "error", err)
			}
			w.WriteHeader(http.StatusUnprocessableEntity)
			s.render(w, r, "reset_confirm.html", authPageData{Error: msg, Token: token})
			return
		}
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
