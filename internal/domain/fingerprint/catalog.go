package fingerprint

import "sort"

// Viewport is a page viewport size in CSS pixels
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// intRange is an inclusive interval used for hardware capability hints
type intRange struct {
	min, max int
}

// deviceVariant is one concrete device identity inside a catalog entry
type deviceVariant struct {
	name       string
	userAgent  string
	viewport   Viewport
	pixelRatio float64
}

// catalogEntry groups the variants of one desktop OS family or one device
// brand together with its hardware capability ranges
type catalogEntry struct {
	name                string
	userAgents          []string   // desktop entries: one of many UAs per OS
	viewports           []Viewport // desktop entries: independent viewport pick
	devices             []deviceVariant
	hardwareConcurrency intRange
	deviceMemory        intRange
}

var desktopCatalog = []catalogEntry{
	{
		name: "Windows",
		userAgents: []string{
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:127.0) Gecko/20100101 Firefox/127.0",
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36 Edg/125.0.0.0",
		},
		viewports: []Viewport{
			{Width: 1920, Height: 1080},
			{Width: 1536, Height: 864},
			{Width: 1366, Height: 768},
		},
		hardwareConcurrency: intRange{4, 16},
		deviceMemory:        intRange{4, 16},
	},
	{
		name: "macOS",
		userAgents: []string{
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:127.0) Gecko/20100101 Firefox/127.0",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/15.6.0 Safari/605.1.15",
		},
		viewports: []Viewport{
			{Width: 1440, Height: 900},
			{Width: 1920, Height: 1080},
			{Width: 2560, Height: 1440},
		},
		hardwareConcurrency: intRange{6, 16},
		deviceMemory:        intRange{8, 16},
	},
	{
		name: "Linux",
		userAgents: []string{
			"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
			"Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:127.0) Gecko/20100101 Firefox/127.0",
		},
		viewports: []Viewport{
			{Width: 1600, Height: 900},
			{Width: 1280, Height: 800},
		},
		hardwareConcurrency: intRange{2, 8},
		deviceMemory:        intRange{4, 8},
	},
}

var mobileCatalog = []catalogEntry{
	{
		name: "iPhone",
		devices: []deviceVariant{
			{
				name:       "iPhone 15 Pro Max",
				userAgent:  "Mozilla/5.0 (iPhone; CPU iPhone OS 17_5 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Mobile/15E148 Safari/604.1",
				viewport:   Viewport{Width: 430, Height: 932},
				pixelRatio: 3,
			},
			{
				name:       "iPhone 14",
				userAgent:  "Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1",
				viewport:   Viewport{Width: 390, Height: 844},
				pixelRatio: 3,
			},
		},
		hardwareConcurrency: intRange{4, 8},
		deviceMemory:        intRange{4, 8},
	},
	{
		name: "Android",
		devices: []deviceVariant{
			{
				name:       "Samsung Galaxy S24 Ultra",
				userAgent:  "Mozilla/5.0 (Linux; Android 14; SM-S928B) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Mobile Safari/537.36",
				viewport:   Viewport{Width: 412, Height: 915},
				pixelRatio: 3.5,
			},
			{
				name:       "Google Pixel 8",
				userAgent:  "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Mobile Safari/537.36",
				viewport:   Viewport{Width: 384, Height: 854},
				pixelRatio: 2.75,
			},
		},
		hardwareConcurrency: intRange{6, 8},
		deviceMemory:        intRange{6, 12},
	},
}

var tabletCatalog = []catalogEntry{
	{
		name: "iPad",
		devices: []deviceVariant{
			{
				name:       "iPad Pro 12.9",
				userAgent:  "Mozilla/5.0 (iPad; CPU OS 17_5 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Mobile/15E148 Safari/604.1",
				viewport:   Viewport{Width: 1024, Height: 1366},
				pixelRatio: 2,
			},
			{
				name:       "iPad Air",
				userAgent:  "Mozilla/5.0 (iPad; CPU OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1",
				viewport:   Viewport{Width: 820, Height: 1180},
				pixelRatio: 2,
			},
		},
		hardwareConcurrency: intRange{4, 8},
		deviceMemory:        intRange{4, 8},
	},
	{
		name: "Android Tablet",
		devices: []deviceVariant{
			{
				name:       "Samsung Galaxy Tab S9",
				userAgent:  "Mozilla/5.0 (Linux; Android 14; SM-X710) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
				viewport:   Viewport{Width: 800, Height: 1280},
				pixelRatio: 2,
			},
		},
		hardwareConcurrency: intRange{4, 8},
		deviceMemory:        intRange{4, 8},
	},
}

// countryEntry carries the locales, timezones and traffic weight of one
// catalog country
type countryEntry struct {
	locales   []string
	timezones []string
	weight    int
}

var countryCatalog = map[string]countryEntry{
	"United States":  {locales: []string{"en-US,en;q=0.9"}, timezones: []string{"America/New_York", "America/Chicago", "America/Denver", "America/Los_Angeles"}, weight: 20},
	"Indonesia":      {locales: []string{"id-ID,id;q=0.9,en;q=0.8"}, timezones: []string{"Asia/Jakarta", "Asia/Makassar", "Asia/Jayapura"}, weight: 15},
	"Japan":          {locales: []string{"ja-JP,ja;q=0.9,en;q=0.8"}, timezones: []string{"Asia/Tokyo"}, weight: 10},
	"Spain":          {locales: []string{"es-ES,es;q=0.9,en;q=0.8"}, timezones: []string{"Europe/Madrid"}, weight: 8},
	"France":         {locales: []string{"fr-FR,fr;q=0.9,en;q=0.8"}, timezones: []string{"Europe/Paris"}, weight: 8},
	"Germany":        {locales: []string{"de-DE,de;q=0.9,en;q=0.8"}, timezones: []string{"Europe/Berlin"}, weight: 10},
	"United Kingdom": {locales: []string{"en-GB,en;q=0.9"}, timezones: []string{"Europe/London"}, weight: 10},
	"Brazil":         {locales: []string{"pt-BR,pt;q=0.9,en;q=0.8"}, timezones: []string{"America/Sao_Paulo"}, weight: 8},
	"India":          {locales: []string{"en-IN,en;q=0.9", "hi-IN,hi;q=0.9,en;q=0.8"}, timezones: []string{"Asia/Kolkata"}, weight: 15},
	"Australia":      {locales: []string{"en-AU,en;q=0.9"}, timezones: []string{"Australia/Sydney", "Australia/Perth", "Australia/Melbourne"}, weight: 8},
	"Canada":         {locales: []string{"en-CA,en;q=0.9", "fr-CA,fr;q=0.9,en;q=0.8"}, timezones: []string{"America/Toronto", "America/Vancouver"}, weight: 8},
	"Mexico":         {locales: []string{"es-MX,es;q=0.9,en;q=0.8"}, timezones: []string{"America/Mexico_City"}, weight: 7},
	"Russia":         {locales: []string{"ru-RU,ru;q=0.9,en;q=0.8"}, timezones: []string{"Europe/Moscow"}, weight: 8},
	"China":          {locales: []string{"zh-CN,zh;q=0.9,en;q=0.8"}, timezones: []string{"Asia/Shanghai", "Asia/Hong_Kong"}, weight: 15},
	"South Korea":    {locales: []string{"ko-KR,ko;q=0.9,en;q=0.8"}, timezones: []string{"Asia/Seoul"}, weight: 8},
}

// DefaultLocale and DefaultTimezone are the fallbacks for countries the
// catalog does not know.
const (
	DefaultLocale   = "en-US,en;q=0.9"
	DefaultTimezone = "America/New_York"
)

var colorSchemes = []string{"light", "dark", "no-preference"}

var reducedMotionPreferences = []string{"no-preference", "reduce"}

// sortedCountryNames returns catalog countries in stable order so weighted
// draws reproduce under a fixed seed
func sortedCountryNames() []string {
	names := make([]string, 0, len(countryCatalog))
	for name := range countryCatalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CountryWeights returns the catalog country names and their traffic
// weights. Run configurations use this as the default country distribution.
func CountryWeights() map[string]int {
	weights := make(map[string]int, len(countryCatalog))
	for name, entry := range countryCatalog {
		weights[name] = entry.weight
	}
	return weights
}

// Countries returns the catalog country names in sorted order
func Countries() []string {
	return sortedCountryNames()
}
