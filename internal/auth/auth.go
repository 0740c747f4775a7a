package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/chromedp"
)

// loginPageMarker identifies the portal's sign-in form URL.
const loginPageMarker = "login.aspx"

// CheckLoginStatus reports whether the session has left the login page.
// Used after a failed run to tell rejected credentials from a broken page.
func CheckLoginStatus(ctx context.Context) (bool, error) {
	var url string
	if err := chromedp.Run(ctx, chromedp.Location(&url)); err != nil {
		return false, fmt.Errorf("could not get current URL: %w", err)
	}
	return !OnLoginPage(url), nil
}

// OnLoginPage reports whether url is the portal's sign-in page.
func OnLoginPage(url string) bool {
	return strings.Contains(strings.ToLower(url), loginPageMarker)
}
