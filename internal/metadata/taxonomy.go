package metadata

import "strings"

var categoryKeywords = map[Category][]string{
	CategoryPolitics: {
		"election", "elections", "president", "presidential", "senate", "senator", "congress",
		"governor", "democrat", "democrats", "democratic", "republican", "republicans", "gop",
		"vote", "votes", "primary", "nominee", "nomination", "parliament", "prime minister",
		"impeach", "impeached", "impeachment", "cabinet", "mayor", "supreme court", "white house",
		"trump", "biden", "harris", "vance", "electoral college", "speaker of the house",
	},
	CategoryEconomics: {
		"fed", "federal reserve", "interest rate", "interest rates", "rate cut", "rate cuts",
		"rate hike", "inflation", "cpi", "gdp", "recession", "unemployment", "jobs report",
		"fomc", "treasury", "tariff", "tariffs", "s p 500", "nasdaq", "dow jones", "stock",
		"earnings", "oil price", "basis points", "bps", "payrolls", "yield",
	},
	CategoryCrypto: {
		"bitcoin", "btc", "ethereum", "eth", "solana", "sol", "crypto", "cryptocurrency",
		"token", "defi", "nft", "stablecoin", "coinbase", "binance", "halving", "blockchain",
		"dogecoin", "doge", "xrp", "bitcoin etf", "ether",
	},
	CategorySports: {
		"nfl", "nba", "mlb", "nhl", "super bowl", "world series", "championship", "playoffs",
		"finals", "match", "game", "cup", "league", "mvp", "tournament", "olympics", "ufc",
		"fight", "wimbledon", "grand slam", "f1", "formula 1", "premier league",
		"champions league", "world cup", "stanley cup", "nba finals",
	},
	CategoryTech: {
		"ai", "openai", "gpt", "gpt 5", "apple", "iphone", "google", "microsoft", "nvidia",
		"tesla", "spacex", "launch", "release", "app", "chip", "chips", "twitter", "meta",
		"agi", "model", "starship", "anthropic", "artificial intelligence",
	},
	CategoryEntertainment: {
		"oscar", "oscars", "academy awards", "grammy", "grammys", "emmy", "emmys", "movie",
		"film", "box office", "album", "song", "netflix", "taylor swift", "billboard",
		"tv show", "celebrity", "eurovision", "spotify", "golden globes",
	},
	CategoryScience: {
		"nasa", "climate", "temperature", "hurricane", "earthquake", "vaccine", "covid",
		"pandemic", "asteroid", "mars", "moon landing", "fda", "virus", "outbreak",
		"global warming", "measles", "bird flu", "h5n1",
	},
}

// categoryPriority resolves equal keyword scores toward the narrower domain.
var categoryPriority = []Category{
	CategoryCrypto,
	CategorySports,
	CategoryScience,
	CategoryTech,
	CategoryEconomics,
	CategoryEntertainment,
	CategoryPolitics,
}

var platformCategoryHints = map[string]Category{
	"politics":               CategoryPolitics,
	"elections":              CategoryPolitics,
	"world":                  CategoryPolitics,
	"economics":              CategoryEconomics,
	"economy":                CategoryEconomics,
	"financials":             CategoryEconomics,
	"finance":                CategoryEconomics,
	"crypto":                 CategoryCrypto,
	"cryptocurrency":         CategoryCrypto,
	"sports":                 CategorySports,
	"tech":                   CategoryTech,
	"technology":             CategoryTech,
	"science and technology": CategoryTech,
	"entertainment":          CategoryEntertainment,
	"culture":                CategoryEntertainment,
	"pop culture":            CategoryEntertainment,
	"science":                CategoryScience,
	"climate and weather":    CategoryScience,
	"health":                 CategoryScience,
}

var subcategoryKeywords = map[Category][]struct {
	name     string
	keywords []string
}{
	CategoryPolitics: {
		{"us-presidential", []string{"president", "presidential", "electoral college", "white house"}},
		{"us-congress", []string{"senate", "senator", "congress", "house", "speaker of the house"}},
		{"us-state", []string{"governor", "mayor"}},
		{"international", []string{"prime minister", "parliament", "chancellor"}},
		{"judicial", []string{"supreme court", "impeach", "impeachment"}},
	},
	CategoryEconomics: {
		{"monetary-policy", []string{"fed", "federal reserve", "fomc", "rate cut", "rate hike", "interest rate", "interest rates"}},
		{"inflation", []string{"inflation", "cpi"}},
		{"labor", []string{"unemployment", "jobs report", "payrolls"}},
		{"growth", []string{"gdp", "recession"}},
		{"markets", []string{"s p 500", "nasdaq", "dow jones", "stock", "earnings", "yield"}},
		{"trade", []string{"tariff", "tariffs"}},
	},
	CategoryCrypto: {
		{"bitcoin", []string{"bitcoin", "btc"}},
		{"ethereum", []string{"ethereum", "eth", "ether"}},
		{"altcoins", []string{"solana", "sol", "dogecoin", "doge", "xrp"}},
		{"regulation", []string{"sec", "etf", "bitcoin etf", "stablecoin"}},
	},
	CategorySports: {
		{"football", []string{"nfl", "super bowl"}},
		{"basketball", []string{"nba", "nba finals"}},
		{"baseball", []string{"mlb", "world series"}},
		{"hockey", []string{"nhl", "stanley cup"}},
		{"soccer", []string{"world cup", "premier league", "champions league"}},
		{"combat", []string{"ufc", "fight"}},
		{"tennis", []string{"wimbledon", "grand slam"}},
		{"motorsport", []string{"f1", "formula 1"}},
	},
	CategoryTech: {
		{"ai", []string{"ai", "openai", "gpt", "agi", "anthropic", "artificial intelligence", "model"}},
		{"space", []string{"spacex", "starship", "launch"}},
		{"devices", []string{"apple", "iphone", "chip", "chips", "nvidia"}},
	},
	CategoryEntertainment: {
		{"awards", []string{"oscar", "oscars", "academy awards", "grammy", "grammys", "emmy", "emmys", "golden globes"}},
		{"film", []string{"movie", "film", "box office"}},
		{"music", []string{"album", "song", "billboard", "spotify", "taylor swift"}},
	},
	CategoryScience: {
		{"climate", []string{"climate", "temperature", "global warming", "hurricane"}},
		{"health", []string{"vaccine", "covid", "pandemic", "fda", "virus", "outbreak", "measles", "bird flu", "h5n1"}},
		{"space", []string{"nasa", "mars", "asteroid", "moon landing"}},
	},
}

// classify scores every category by matched keywords, weighting multi-word
// phrases by their word count. Equal scores fall back to categoryPriority.
func classify(norm, platformCategory string) (Category, string) {
	padded := pad(norm)
	scores := make(map[Category]int, len(categoryKeywords))
	for cat, keywords := range categoryKeywords {
		for _, kw := range keywords {
			if containsPhrase(padded, kw) {
				scores[cat] += len(strings.Fields(kw))
			}
		}
	}
	if hint, ok := platformCategoryHints[strings.ToLower(strings.TrimSpace(platformCategory))]; ok {
		scores[hint]++
	}

	best := CategoryOther
	bestScore := 0
	for _, cat := range categoryPriority {
		if s := scores[cat]; s > bestScore {
			best, bestScore = cat, s
		}
	}
	if best == CategoryOther {
		return best, ""
	}
	return best, subcategory(padded, best)
}

func subcategory(padded string, cat Category) string {
	bestName := ""
	bestScore := 0
	for _, sub := range subcategoryKeywords[cat] {
		score := 0
		for _, kw := range sub.keywords {
			if containsPhrase(padded, kw) {
				score += len(strings.Fields(kw))
			}
		}
		if score > bestScore {
			bestName, bestScore = sub.name, score
		}
	}
	return bestName
}
