// Package session manages the cookies of a net/http client.
package session

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
)

// UnmarshalCookies parses a raw "name=value; name2=value2" cookie string.
func UnmarshalCookies(rawCookies string) ([]*http.Cookie, error) {
	var cookies []*http.Cookie
	for _, cookie := range strings.Split(rawCookies, ";") {
		cookie = strings.TrimSpace(cookie)
		if cookie == "" {
			continue
		}
		parts := strings.SplitN(cookie, "=", 2)
		if len(parts) != 2 || parts[0] == "" {
			return nil, fmt.Errorf("session: invalid cookie: %v", cookie)
		}
		value := parts[1]
		// URL encode the cookie value if it contains an invalid character.
		if strings.Contains(value, "\"") {
			value = url.QueryEscape(value)
		}
		cookies = append(cookies, &http.Cookie{Name: parts[0], Value: value})
	}
	return cookies, nil
}

// MarshalCookies joins cookies into a raw cookie string.
func MarshalCookies(cookies []*http.Cookie) string {
	var rawCookies []string
	for _, cookie := range cookies {
		rawCookies = append(rawCookies, fmt.Sprintf("%s=%s", cookie.Name, cookie.Value))
	}
	return strings.Join(rawCookies, "; ")
}

// SetCookies stores rawCookies in the client jar for rawURL, creating the
// jar if needed.
func SetCookies(client *http.Client, rawURL, rawCookies string) error {
	if client.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return fmt.Errorf("session: couldn't create cookie jar: %w", err)
		}
		client.Jar = jar
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("session: invalid url: %v", rawURL)
	}
	cookies, err := UnmarshalCookies(rawCookies)
	if err != nil {
		return err
	}
	client.Jar.SetCookies(u, cookies)
	return nil
}

// GetCookies returns the raw cookies the client jar holds for rawURL.
func GetCookies(client *http.Client, rawURL string) (string, error) {
	if client.Jar == nil {
		return "", fmt.Errorf("session: missing cookie jar")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("session: invalid url: %v", rawURL)
	}
	return MarshalCookies(client.Jar.Cookies(u)), nil
}
