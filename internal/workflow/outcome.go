// Package workflow sequences storefront and back-office operations against
// the commerce API. Mutations never return errors: every failure is turned
// into an Outcome carrying a redirect and a user-facing flash. Page reads
// return errors for the HTTP layer to render.
package workflow

import (
	"log/slog"

	"market-web/internal/model"
	"market-web/internal/session"
)

// Outcome is where to send the browser next and what to tell the user.
type Outcome struct {
	Redirect string
	Flash    *session.Flash

	// SessionID, when set, replaces the browser's HTTP session id.
	SessionID string
}

func success(redirect, text string) Outcome {
	return Outcome{Redirect: redirect, Flash: &session.Flash{Kind: session.FlashSuccess, Text: text}}
}

// Failure is an Outcome carrying an error flash.
func Failure(redirect, text string) Outcome {
	return Outcome{Redirect: redirect, Flash: &session.Flash{Kind: session.FlashError, Text: text}}
}

func redirect(to string) Outcome {
	return Outcome{Redirect: to}
}

// backendAttrs renders a gateway error as log attributes.
func backendAttrs(err error) []any {
	attrs := []any{slog.String("error", err.Error())}
	if status := model.StatusCode(err); status != 0 {
		attrs = append(attrs, slog.Int("backend_status", status))
	}
	return attrs
}
