package storage

import (
	"context"
	"errors"
	"fmt"
)

// NewCookieStore returns a cookie store for an account. Until a cookie has
// been saved, fallback is returned.
func (s *Store) NewCookieStore(account, fallback string) *cookieStore {
	return &cookieStore{
		store:    s,
		account:  account,
		fallback: fallback,
	}
}

type cookieStore struct {
	store    *Store
	account  string
	fallback string
}

func (c *cookieStore) key() string {
	return fmt.Sprintf("suno/%s/cookie", c.account)
}

func (c *cookieStore) GetCookie(ctx context.Context) (string, error) {
	setting, err := c.store.GetSetting(ctx, c.key())
	if errors.Is(err, ErrNotFound) {
		return c.fallback, nil
	}
	if err != nil {
		return "", err
	}
	return setting.Value, nil
}

func (c *cookieStore) SetCookie(ctx context.Context, cookie string) error {
	return c.store.SetSetting(ctx, &Setting{
		ID:    c.key(),
		Value: cookie,
	})
}
