package fingerprint

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/language"
)

// DeviceClass selects which device catalog a synthesized identity draws from
type DeviceClass string

const (
	DeviceDesktop DeviceClass = "Desktop"
	DeviceMobile  DeviceClass = "Mobile"
	DeviceTablet  DeviceClass = "Tablet"
)

// IsValid checks if the DeviceClass is a valid value
func (d DeviceClass) IsValid() bool {
	switch d {
	case DeviceDesktop, DeviceMobile, DeviceTablet:
		return true
	}
	return false
}

// String returns the string representation of DeviceClass
func (d DeviceClass) String() string {
	return string(d)
}

// AgeHint bounds the visitor age sampled into a fingerprint
type AgeHint struct {
	Min int
	Max int
}

// Fingerprint is a synthesized device/browser identity. It is generated
// fresh per session and never persisted independently of the visitor
// profile's storage snapshot.
type Fingerprint struct {
	DeviceName          string   `json:"device_name"`
	UserAgent           string   `json:"user_agent"`
	Viewport            Viewport `json:"viewport"`
	IsMobile            bool     `json:"is_mobile"`
	HasTouch            bool     `json:"has_touch"`
	DeviceScaleFactor   float64  `json:"device_scale_factor"`
	HardwareConcurrency int      `json:"hardware_concurrency"`
	DeviceMemory        int      `json:"device_memory"`
	Locale              string   `json:"locale"`
	Timezone            string   `json:"timezone_id"`
	Country             string   `json:"country"`
	ColorScheme         string   `json:"color_scheme"`
	ReducedMotion       string   `json:"reduced_motion"`
	Age                 int      `json:"age,omitempty"`
}

// PrimaryLanguage returns the canonical BCP-47 tag of the fingerprint's
// first locale, for capability layers that want a single language tag
// rather than a full Accept-Language value.
func (f Fingerprint) PrimaryLanguage() string {
	raw := f.Locale
	if i := strings.IndexByte(raw, ','); i >= 0 {
		raw = raw[:i]
	}
	tag, err := language.Parse(raw)
	if err != nil {
		return raw
	}
	return tag.String()
}

// Synthesizer draws fingerprints from the device and country catalogs.
// The random source is injected so tests can fix a seed; a nil source
// seeds from the clock. Synthesize is safe for concurrent use.
type Synthesizer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSynthesizer creates a synthesizer over the given random source
func NewSynthesizer(src rand.Source) *Synthesizer {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &Synthesizer{rng: rand.New(src)}
}

// Synthesize produces a fingerprint for the device class, resolving the
// country hint against the catalog (weighted draw when absent or unknown,
// default locale/timezone when the resolved country has no entry). It
// never fails.
func (s *Synthesizer) Synthesize(device DeviceClass, countryHint string, age *AgeHint) Fingerprint {
	s.mu.Lock()
	defer s.mu.Unlock()

	var fp Fingerprint
	switch device {
	case DeviceMobile:
		fp = s.fromDeviceCatalog(mobileCatalog)
	case DeviceTablet:
		fp = s.fromDeviceCatalog(tabletCatalog)
	default:
		fp = s.fromDesktopCatalog()
	}

	fp.Locale, fp.Timezone, fp.Country = s.countryData(countryHint)
	fp.ColorScheme = colorSchemes[s.rng.Intn(len(colorSchemes))]
	fp.ReducedMotion = reducedMotionPreferences[s.rng.Intn(len(reducedMotionPreferences))]
	if age != nil {
		fp.Age = sampleRange(s.rng, intRange{age.Min, age.Max})
	}
	return fp
}

func (s *Synthesizer) fromDesktopCatalog() Fingerprint {
	entry := desktopCatalog[s.rng.Intn(len(desktopCatalog))]
	return Fingerprint{
		DeviceName:          entry.name,
		UserAgent:           entry.userAgents[s.rng.Intn(len(entry.userAgents))],
		Viewport:            entry.viewports[s.rng.Intn(len(entry.viewports))],
		IsMobile:            false,
		HasTouch:            false,
		DeviceScaleFactor:   1,
		HardwareConcurrency: sampleRange(s.rng, entry.hardwareConcurrency),
		DeviceMemory:        sampleRange(s.rng, entry.deviceMemory),
	}
}

func (s *Synthesizer) fromDeviceCatalog(catalog []catalogEntry) Fingerprint {
	entry := catalog[s.rng.Intn(len(catalog))]
	device := entry.devices[s.rng.Intn(len(entry.devices))]
	return Fingerprint{
		DeviceName:          device.name,
		UserAgent:           device.userAgent,
		Viewport:            device.viewport,
		IsMobile:            true,
		HasTouch:            true,
		DeviceScaleFactor:   device.pixelRatio,
		HardwareConcurrency: sampleRange(s.rng, entry.hardwareConcurrency),
		DeviceMemory:        sampleRange(s.rng, entry.deviceMemory),
	}
}

// countryData resolves a known hint directly; otherwise it draws a country
// proportionally to the catalog weights. Locale and timezone are uniform
// picks among the country's variants.
func (s *Synthesizer) countryData(hint string) (locale, timezone, country string) {
	entry, ok := countryCatalog[hint]
	country = hint
	if !ok {
		country = s.weightedCountry()
		entry, ok = countryCatalog[country]
		if !ok {
			return DefaultLocale, DefaultTimezone, country
		}
	}
	locale = entry.locales[s.rng.Intn(len(entry.locales))]
	timezone = entry.timezones[s.rng.Intn(len(entry.timezones))]
	return locale, timezone, country
}

func (s *Synthesizer) weightedCountry() string {
	names := sortedCountryNames()
	total := 0
	for _, name := range names {
		total += countryCatalog[name].weight
	}
	n := s.rng.Intn(total)
	for _, name := range names {
		n -= countryCatalog[name].weight
		if n < 0 {
			return name
		}
	}
	return names[len(names)-1]
}

func sampleRange(rng *rand.Rand, r intRange) int {
	if r.max <= r.min {
		return r.min
	}
	return r.min + rng.Intn(r.max-r.min+1)
}
