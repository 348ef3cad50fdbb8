package main

import (
	"strings"

	"quant-agent/internal/types"
)

type alias struct {
	symbol   string
	keywords []string
}

// aliases is checked in order; the first keyword found anywhere in the
// lowercased input wins.
var aliases = []alias{
	{"AAPL", []string{"애플", "apple", "아이폰", "iphone", "맥북", "macbook", "에플", "appl"}},
	{"TSLA", []string{"테슬라", "tesla", "일론", "elon", "머스크", "musk"}},
	{"GOOGL", []string{"구글", "google", "알파벳", "alphabet", "유튜브", "youtube"}},
	{"META", []string{"메타", "meta", "페이스북", "facebook", "인스타", "instagram"}},
}

// resolveSymbol maps free text to a ticker. Input matching no alias is taken
// as a ticker itself.
func resolveSymbol(input string) string {
	lower := strings.ToLower(strings.TrimSpace(input))
	for _, a := range aliases {
		for _, kw := range a.keywords {
			if strings.Contains(lower, kw) {
				return a.symbol
			}
		}
	}
	return types.CanonicalSymbol(input)
}
