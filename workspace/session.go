package workspace

import (
	"context"
	"strings"

	"github.com/satishkumarchitti/AI-Chat-Bot/store"
)

const (
	msgLoginFailed    = "Login failed. Please try again."
	msgRegisterFailed = "Registration failed. Please try again."
)

// Login validates form and authenticates. A rejected login, 401 included,
// is an ordinary failure recorded on the session store.
func (w *Workspace) Login(ctx context.Context, form LoginForm) (*Pending, error) {
	form.Email = strings.TrimSpace(form.Email)
	if err := check(form); err != nil {
		return nil, err
	}
	t := w.session.BeginLogin()
	return w.run(ctx, keySession, func(ctx context.Context) error {
		resp, err := w.backend.Login(ctx, form.Email, form.Password)
		if err == nil && resp.Token == "" {
			err = errEmptyToken
		}
		if err != nil {
			w.log.Debug().Err(err).Msg("login failed")
			w.session.FailLogin(t, message(err, msgLoginFailed))
			return err
		}
		return superseded(w.session.CompleteLogin(t, resp.Token, toUser(resp.User)))
	}, func(error) { w.session.FailLogin(t, msgLoginFailed) }), nil
}

// Register validates form, creates the account and signs in with the
// returned token.
func (w *Workspace) Register(ctx context.Context, form RegisterForm) (*Pending, error) {
	form.Name = strings.TrimSpace(form.Name)
	form.Email = strings.TrimSpace(form.Email)
	if err := check(form); err != nil {
		return nil, err
	}
	t := w.session.BeginRegister()
	return w.run(ctx, keySession, func(ctx context.Context) error {
		resp, err := w.backend.Register(ctx, form.Name, form.Email, form.Password)
		if err == nil && resp.Token == "" {
			err = errEmptyToken
		}
		if err != nil {
			w.log.Debug().Err(err).Msg("register failed")
			w.session.FailRegister(t, message(err, msgRegisterFailed))
			return err
		}
		return superseded(w.session.CompleteRegister(t, resp.Token, toUser(resp.User)))
	}, func(error) { w.session.FailRegister(t, msgRegisterFailed) }), nil
}

// Logout signs out locally at once, then tells the backend with the token
// captured before the reset. The backend call is best effort; its failure
// is only logged.
func (w *Workspace) Logout(ctx context.Context) *Pending {
	token := w.session.Token()
	w.resetSession()
	if token == "" {
		return resolved(keySession, nil)
	}
	return w.run(ctx, keySession, func(ctx context.Context) error {
		if err := w.backend.Logout(ctx, token); err != nil {
			w.log.Debug().Err(err).Msg("backend logout failed")
		}
		return nil
	}, func(error) {})
}

// SetTheme selects a theme by name ("light" or "dark").
func (w *Workspace) SetTheme(mode string) error {
	m, err := store.ParseThemeMode(mode)
	if err != nil {
		return err
	}
	return w.theme.Set(m)
}

// ToggleTheme flips the theme and returns the new mode.
func (w *Workspace) ToggleTheme() store.ThemeMode { return w.theme.Toggle() }
