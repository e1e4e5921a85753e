package linkedin

import (
	"net/url"
	"strings"
)

// Wall describes an interstitial served instead of the requested content.
type Wall string

const (
	WallNone       Wall = ""
	WallLogin      Wall = "login"
	WallCheckpoint Wall = "checkpoint"
	WallCaptcha    Wall = "captcha"
)

var authPathPrefixes = []string{
	"/login",
	"/authwall",
	"/uas/login",
	"/signup",
	"/checkpoint",
}

// IsAuthPath reports whether path is a login, signup or challenge route.
func IsAuthPath(path string) bool {
	p := strings.ToLower(path)
	for _, prefix := range authPathPrefixes {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

// DetectWall inspects the final URL and body of a page load for login walls
// and anti-bot challenges.
func DetectWall(finalURL, body string) Wall {
	if u, err := url.Parse(finalURL); err == nil && IsAuthPath(u.Path) {
		if strings.HasPrefix(strings.ToLower(u.Path), "/checkpoint") {
			return WallCheckpoint
		}
		return WallLogin
	}

	lower := strings.ToLower(body)

	// Challenge pages are served in place at the requested URL. Generic
	// captcha script tags are not enough: public pages embed them in the
	// signup modal.
	if strings.Contains(lower, "captcha-internal") ||
		strings.Contains(lower, `action="/checkpoint/challenge`) {
		return WallCaptcha
	}
	if strings.Contains(lower, "<title>security verification") {
		return WallCheckpoint
	}

	return WallNone
}
