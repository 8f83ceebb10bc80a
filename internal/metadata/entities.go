package metadata

import (
	"sort"
	"strings"
	"unicode"
)

// Lexicons map normalized aliases to canonical entity names.
var organizationLexicon = map[string]string{
	"fed":                "federal reserve",
	"federal reserve":    "federal reserve",
	"fomc":               "federal reserve",
	"sec":                "sec",
	"ecb":                "ecb",
	"bank of england":    "bank of england",
	"boe":                "bank of england",
	"bank of japan":      "bank of japan",
	"nato":               "nato",
	"united nations":     "united nations",
	"opec":               "opec",
	"imf":                "imf",
	"world bank":         "world bank",
	"openai":             "openai",
	"anthropic":          "anthropic",
	"google":             "google",
	"alphabet":           "google",
	"apple":              "apple",
	"microsoft":          "microsoft",
	"tesla":              "tesla",
	"nvidia":             "nvidia",
	"meta":               "meta",
	"amazon":             "amazon",
	"spacex":             "spacex",
	"twitter":            "twitter",
	"supreme court":      "supreme court",
	"congress":           "congress",
	"senate":             "senate",
	"democrats":          "democratic party",
	"democratic party":   "democratic party",
	"democrat":           "democratic party",
	"republicans":        "republican party",
	"republican party":   "republican party",
	"republican":         "republican party",
	"gop":                "republican party",
	"nfl":                "nfl",
	"nba":                "nba",
	"mlb":                "mlb",
	"nhl":                "nhl",
	"fifa":               "fifa",
	"uefa":               "uefa",
	"ufc":                "ufc",
	"coinbase":           "coinbase",
	"binance":            "binance",
	"bitcoin":            "bitcoin",
	"btc":                "bitcoin",
	"ethereum":           "ethereum",
	"eth":                "ethereum",
	"ether":              "ethereum",
	"solana":             "solana",
	"dogecoin":           "dogecoin",
	"doge":               "dogecoin",
	"xrp":                "xrp",
	"nasa":               "nasa",
	"fda":                "fda",
	"cdc":                "cdc",
	"world health org":   "world health organization",
	"kansas city chiefs": "kansas city chiefs",
	"chiefs":             "kansas city chiefs",
	"eagles":             "philadelphia eagles",
	"lakers":             "los angeles lakers",
	"celtics":            "boston celtics",
	"yankees":            "new york yankees",
	"dodgers":            "los angeles dodgers",
}

var locationLexicon = map[string]string{
	"united states":  "united states",
	"usa":            "united states",
	"u s":            "united states",
	"america":        "united states",
	"united kingdom": "united kingdom",
	"uk":             "united kingdom",
	"britain":        "united kingdom",
	"china":          "china",
	"russia":         "russia",
	"ukraine":        "ukraine",
	"israel":         "israel",
	"iran":           "iran",
	"gaza":           "gaza",
	"taiwan":         "taiwan",
	"india":          "india",
	"japan":          "japan",
	"germany":        "germany",
	"france":         "france",
	"canada":         "canada",
	"mexico":         "mexico",
	"brazil":         "brazil",
	"argentina":      "argentina",
	"venezuela":      "venezuela",
	"north korea":    "north korea",
	"south korea":    "south korea",
	"european union": "european union",
	"eu":             "european union",
	"california":     "california",
	"texas":          "texas",
	"florida":        "florida",
	"new york":       "new york",
	"new york city":  "new york city",
	"nyc":            "new york city",
	"pennsylvania":   "pennsylvania",
	"georgia":        "georgia",
	"arizona":        "arizona",
	"michigan":       "michigan",
	"wisconsin":      "wisconsin",
	"nevada":         "nevada",
	"north carolina": "north carolina",
	"ohio":           "ohio",
}

var peopleLexicon = map[string]string{
	"trump":          "trump",
	"donald trump":   "trump",
	"biden":          "biden",
	"joe biden":      "biden",
	"harris":         "harris",
	"kamala":         "harris",
	"kamala harris":  "harris",
	"vance":          "vance",
	"jd vance":       "vance",
	"newsom":         "newsom",
	"desantis":       "desantis",
	"musk":           "musk",
	"elon":           "musk",
	"elon musk":      "musk",
	"powell":         "powell",
	"jerome powell":  "powell",
	"putin":          "putin",
	"zelensky":       "zelensky",
	"zelenskyy":      "zelensky",
	"netanyahu":      "netanyahu",
	"xi":             "xi",
	"xi jinping":     "xi",
	"obama":          "obama",
	"altman":         "altman",
	"sam altman":     "altman",
	"modi":           "modi",
	"macron":         "macron",
	"starmer":        "starmer",
	"milei":          "milei",
	"aoc":            "ocasio-cortez",
	"ocasio cortez":  "ocasio-cortez",
	"rfk":            "kennedy",
	"taylor swift":   "swift",
	"swift":          "swift",
	"mahomes":        "mahomes",
	"lebron":         "james",
	"lebron james":   "james",
	"ohtani":         "ohtani",
	"saylor":         "saylor",
	"michael saylor": "saylor",
}

var eventLexicon = map[string]string{
	"super bowl":            "super bowl",
	"world series":          "world series",
	"nba finals":            "nba finals",
	"stanley cup":           "stanley cup",
	"world cup":             "world cup",
	"champions league":      "champions league",
	"olympics":              "olympics",
	"election":              "election",
	"presidential election": "presidential election",
	"midterms":              "midterm election",
	"midterm":               "midterm election",
	"primary":               "primary",
	"oscars":                "oscars",
	"oscar":                 "oscars",
	"academy awards":        "oscars",
	"grammys":               "grammys",
	"grammy":                "grammys",
	"emmys":                 "emmys",
	"recession":             "recession",
	"government shutdown":   "government shutdown",
	"shutdown":              "government shutdown",
	"ipo":                   "ipo",
	"rate cut":              "rate cut",
	"rate cuts":             "rate cut",
	"cut rates":             "rate cut",
	"cut interest rates":    "rate cut",
	"rate hike":             "rate hike",
	"raise rates":           "rate hike",
	"hike rates":            "rate hike",
	"impeachment":           "impeachment",
	"impeached":             "impeachment",
	"ceasefire":             "ceasefire",
	"halving":               "halving",
	"eurovision":            "eurovision",
	"wimbledon":             "wimbledon",
	"etf approval":          "etf approval",
	"indicted":              "indictment",
	"indictment":            "indictment",
	"pardon":                "pardon",
	"pardons":               "pardon",
	"resign":                "resignation",
	"resigns":               "resignation",
	"resignation":           "resignation",
	"debate":                "debate",
}

// capitalizedStop lists sentence words that start capitalized runs in titles
// without being part of a proper name.
var capitalizedStop = wordSet(
	"will", "the", "a", "an", "in", "on", "by", "of", "before", "after", "does", "is",
	"who", "what", "which", "when", "how", "yes", "no", "can", "should", "would", "are",
	"do", "at", "for", "to", "end", "q1", "q2", "q3", "q4",
)

var nonPersonTails = wordSet(
	"city", "state", "states", "county", "university", "party", "house", "court", "bowl",
	"cup", "league", "series", "awards", "reserve", "bank", "chair", "act", "bill", "index",
	"day", "game", "games", "open",
)

func extractEntities(title string) Entities {
	padded := pad(NormalizeTitle(title))
	ents := Entities{
		People:        lookupLexicon(padded, peopleLexicon),
		Organizations: lookupLexicon(padded, organizationLexicon),
		Locations:     lookupLexicon(padded, locationLexicon),
		Events:        lookupLexicon(padded, eventLexicon),
	}
	for _, name := range capitalizedNames(title) {
		ents.People = appendUnique(ents.People, name)
	}
	sort.Strings(ents.People)
	return ents
}

func lookupLexicon(padded string, lexicon map[string]string) []string {
	seen := make(map[string]bool)
	var out []string
	for alias, canonical := range lexicon {
		if seen[canonical] || !containsPhrase(padded, alias) {
			continue
		}
		seen[canonical] = true
		out = append(out, canonical)
	}
	sort.Strings(out)
	return out
}

// capitalizedNames returns surnames of two-word capitalized runs that no lexicon
// recognises, e.g. "Gavin Newsom" -> "newsom".
func capitalizedNames(title string) []string {
	var names []string
	var run []string
	flush := func() {
		if len(run) == 2 && !knownAlias(run) {
			last := strings.ToLower(run[1])
			if !nonPersonTails[last] {
				names = appendUnique(names, last)
			}
		}
		run = run[:0]
	}
	for _, raw := range strings.Fields(title) {
		word := strings.TrimFunc(raw, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) })
		endsClause := strings.ContainsAny(raw, ",?!:;")
		if word == "" || !isCapitalizedWord(word) || capitalizedStop[strings.ToLower(word)] || isMonth(strings.ToLower(word)) {
			flush()
			continue
		}
		run = append(run, word)
		if endsClause {
			flush()
		}
	}
	flush()
	return names
}

func isCapitalizedWord(w string) bool {
	runes := []rune(w)
	if len(runes) < 2 || !unicode.IsUpper(runes[0]) {
		return false
	}
	for _, r := range runes[1:] {
		if !unicode.IsLower(r) && r != '-' && r != '\'' {
			return false
		}
	}
	return true
}

func knownAlias(words []string) bool {
	for _, w := range words {
		lw := strings.ToLower(w)
		if _, ok := organizationLexicon[lw]; ok {
			return true
		}
		if _, ok := locationLexicon[lw]; ok {
			return true
		}
		if _, ok := eventLexicon[lw]; ok {
			return true
		}
	}
	phrase := strings.ToLower(strings.Join(words, " "))
	_, org := organizationLexicon[phrase]
	_, loc := locationLexicon[phrase]
	_, ev := eventLexicon[phrase]
	_, person := peopleLexicon[phrase]
	return org || loc || ev || person
}

func wordSet(words ...string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

var resolutionAuthorities = map[string]string{
	"associated press":           "associated press",
	"ap":                         "associated press",
	"fox news":                   "fox news",
	"cnn":                        "cnn",
	"nbc":                        "nbc",
	"reuters":                    "reuters",
	"bls":                        "bls",
	"bureau of labor statistics": "bls",
	"federal reserve":            "federal reserve",
	"coinbase":                   "coinbase",
	"binance":                    "binance",
	"coingecko":                  "coingecko",
	"coinmarketcap":              "coinmarketcap",
	"chainlink":                  "chainlink",
	"espn":                       "espn",
	"nasa":                       "nasa",
	"noaa":                       "noaa",
	"box office mojo":            "box office mojo",
	"bea":                        "bea",
}

// resolutionHint picks out a named resolution authority from free text.
func resolutionHint(text string) string {
	found := ResolutionAuthorities(text)
	return strings.Join(found, ", ")
}

// ResolutionAuthorities returns the canonical authorities named in s, sorted.
func ResolutionAuthorities(s string) []string {
	return lookupLexicon(pad(NormalizeTitle(s)), resolutionAuthorities)
}
