package status

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/bnema/sessionkit/internal/application"
	"github.com/bnema/sessionkit/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

// Session is everything `sk status` knows about the local session.
type Session struct {
	State   domain.SessionState
	Claims  *application.TokenClaims
	BaseURL string
	Storage string
}

type RenderOptions struct {
	Now time.Time
}

func renderView(session Session, opts RenderOptions, s styles) string {
	lines := []string{
		s.title.Render("Session"),
		s.header.Render(fmt.Sprintf("backend: %s  storage: %s", orNone(session.BaseURL), orNone(session.Storage))),
	}

	parts := []string{
		lipgloss.JoinHorizontal(lipgloss.Top, s.user.Render(userTitle(session.State.User)), " ", Badge(SessionStatus(session.State), "")),
		s.detail.Render(tokenLine(session)),
		expiryLine(session.Claims, opts.Now, s),
	}
	if session.State.Error != "" {
		parts = append(parts, s.warning.Render("error: "+session.State.Error))
	}
	if !session.State.HasToken() {
		parts = append(parts, s.empty.Render("Not logged in. Run `sk login` to start a session."))
	}

	lines = append(lines, s.section.Render(lipgloss.JoinVertical(lipgloss.Left, parts...)))
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// SessionStatus maps session state onto a badge status.
func SessionStatus(state domain.SessionState) string {
	switch {
	case state.Error != "":
		return "error"
	case state.IsLoading:
		return "pending"
	case state.IsAuthenticated:
		return "active"
	default:
		return "idle"
	}
}

func userTitle(user domain.User) string {
	if user == nil {
		return "User: not loaded"
	}
	name := strings.TrimSpace(user.DisplayName())
	if name == "" {
		return "User: (anonymous)"
	}
	if id := user.ID(); id != "" && id != name {
		return fmt.Sprintf("User: %s (%s)", name, id)
	}
	return "User: " + name
}

func tokenLine(session Session) string {
	if !session.State.HasToken() {
		return "token: none"
	}
	if session.Claims == nil {
		return "token: present (opaque)"
	}
	if session.Claims.Subject != "" {
		return fmt.Sprintf("token: present (sub %s)", session.Claims.Subject)
	}
	return "token: present"
}

func expiryLine(claims *application.TokenClaims, now time.Time, s styles) string {
	label := s.key.Render("expires:")
	if claims == nil || claims.ExpiresAt.IsZero() {
		return lipgloss.JoinHorizontal(lipgloss.Top, label, " ", s.detail.Render("n/a"))
	}

	expiry := lipgloss.NewStyle().Foreground(expiryColor(claims.ExpiresAt, now)).
		Render(formatExpiry(claims.ExpiresAt, now))

	if claims.IssuedAt.IsZero() || now.IsZero() {
		return lipgloss.JoinHorizontal(lipgloss.Top, label, " ", expiry)
	}

	left := lifetimeLeftPercent(claims.IssuedAt, claims.ExpiresAt, now)
	percent := lipgloss.NewStyle().Foreground(interpolateColor(left, 0, 100)).
		Render(fmt.Sprintf("%2.0f%% left", left))

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		label,
		" ",
		renderProgressBar(left, 24, s),
		" ",
		percent,
		" ",
		expiry,
	)
}

func lifetimeLeftPercent(issuedAt, expiresAt, now time.Time) float64 {
	lifetime := expiresAt.Sub(issuedAt)
	if lifetime <= 0 {
		return 0
	}
	return clampPercent(100 * expiresAt.Sub(now).Seconds() / lifetime.Seconds())
}

func renderProgressBar(leftPercent float64, width int, s styles) string {
	if width <= 0 {
		return ""
	}

	filled := int(math.Round(float64(width) * clampPercent(leftPercent) / 100.0))
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.barBracket.Render("["),
		s.barFill.Render(strings.Repeat("=", filled)),
		s.barEmpty.Render(strings.Repeat("-", width-filled)),
		s.barBracket.Render("]"),
	)
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func formatExpiryAt(expiresAt, now time.Time) string {
	if now.IsZero() {
		return expiresAt.Format(time.RFC3339)
	}

	yearA, monthA, dayA := now.Date()
	yearB, monthB, dayB := expiresAt.Date()
	if yearA == yearB && monthA == monthB && dayA == dayB {
		return expiresAt.Format("15:04")
	}

	return expiresAt.Format("15:04 on 02 Jan")
}

func formatExpiry(expiresAt, now time.Time) string {
	if now.IsZero() {
		return "at " + formatExpiryAt(expiresAt, now)
	}

	if !expiresAt.After(now) {
		return "expired " + formatExpiryAt(expiresAt, now)
	}

	remaining := expiresAt.Sub(now)
	if remaining < time.Hour {
		minutes := max(1, int(math.Ceil(remaining.Minutes())))
		return fmt.Sprintf("in %d %s (%s)", minutes, plural(minutes, "minute"), expiresAt.Format("15:04"))
	}
	if remaining < 24*time.Hour {
		hours := max(1, int(math.Ceil(remaining.Hours())))
		return fmt.Sprintf("in %d %s (%s)", hours, plural(hours, "hour"), expiresAt.Format("15:04"))
	}

	days := max(1, int(math.Ceil(remaining.Hours()/24)))
	return fmt.Sprintf("in %d %s (%s)", days, plural(days, "day"), expiresAt.Format("15:04 on 02 Jan"))
}

func plural(n int, unit string) string {
	if n == 1 {
		return unit
	}
	return unit + "s"
}

func orNone(value string) string {
	if strings.TrimSpace(value) == "" {
		return "none"
	}
	return value
}

func interpolateColor(value, min, max float64) lipgloss.Color {
	if max == min {
		return lipgloss.Color("255")
	}

	normalized := (value - min) / (max - min)
	if normalized < 0 {
		normalized = 0
	}
	if normalized > 1 {
		normalized = 1
	}

	// ANSI 256 greyscale ramp: 240 (faded) to 255 (bright white)
	baseColor := 240.0
	targetColor := 255.0

	colorCode := int(baseColor + (targetColor-baseColor)*normalized)
	return lipgloss.Color(fmt.Sprintf("%d", colorCode))
}

func expiryColor(expiresAt, now time.Time) lipgloss.Color {
	if now.IsZero() {
		return lipgloss.Color("255")
	}
	if !expiresAt.After(now) {
		return lipgloss.Color("203")
	}

	// Brightest with a day or more left, fading as expiry approaches.
	window := 24 * time.Hour
	return interpolateColor(expiresAt.Sub(now).Seconds(), 0, window.Seconds())
}
