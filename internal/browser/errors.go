package browser

import (
	"strings"
)

// closedPatterns are error fragments chromedp and the CDP transport produce
// once the browser process or its target is gone.
var closedPatterns = []string{
	"websocket: close",
	"target closed",
	"browser: not connected",
	"session closed",
	"page closed",
	"connection refused",
	"broken pipe",
	"invalid context",
}

// IsBrowserClosed checks if an error indicates the browser was closed or
// crashed underneath us, as opposed to a page element not showing up.
func IsBrowserClosed(err error) bool {
	if err == nil {
		return false
	}

	errMsg := strings.ToLower(err.Error())
	for _, pattern := range closedPatterns {
		if strings.Contains(errMsg, pattern) {
			return true
		}
	}

	return false
}
