package kvstore

import (
	"context"
	"strings"
)

const MaxSearchHistory = 20

// PushSearchHistory records query as the most recent search, removing any
// earlier case-insensitive duplicate and keeping at most MaxSearchHistory entries.
func PushSearchHistory(ctx context.Context, s Store, query string) ([]string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return LoadSearchHistory(ctx, s)
	}

	history, err := LoadSearchHistory(ctx, s)
	if err != nil {
		return nil, err
	}

	next := make([]string, 0, len(history)+1)
	next = append(next, query)
	for _, h := range history {
		if !strings.EqualFold(h, query) {
			next = append(next, h)
		}
	}
	if len(next) > MaxSearchHistory {
		next = next[:MaxSearchHistory]
	}

	if err := SetJSON(ctx, s, KeySearchHistory, next); err != nil {
		return nil, err
	}
	return next, nil
}

// LoadSearchHistory returns the stored history, most recent first. Missing or
// corrupt history is empty.
func LoadSearchHistory(ctx context.Context, s Store) ([]string, error) {
	var history []string
	err := GetJSON(ctx, s, KeySearchHistory, &history)
	if IsAbsent(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return history, nil
}
