package browser

import (
	"encoding/json"
	"strings"

	"github.com/trafficsim/backend/internal/domain/fingerprint"
)

// identityScript builds the document init script that aligns the page's
// JavaScript-visible identity with the fingerprint and restores any
// profile localStorage on matching origins. It runs before page scripts
// on every new document.
func identityScript(fp fingerprint.Fingerprint, origins []originStorage) string {
	var b strings.Builder
	b.WriteString("(() => {\n")
	b.WriteString("Object.defineProperty(navigator, 'webdriver', { get: () => undefined });\n")
	if fp.HardwareConcurrency > 0 {
		b.WriteString("Object.defineProperty(navigator, 'hardwareConcurrency', { get: () => ")
		b.WriteString(jsonString(fp.HardwareConcurrency))
		b.WriteString(" });\n")
	}
	if fp.DeviceMemory > 0 {
		b.WriteString("Object.defineProperty(navigator, 'deviceMemory', { get: () => ")
		b.WriteString(jsonString(fp.DeviceMemory))
		b.WriteString(" });\n")
	}
	if langs := languageTags(fp.Locale); len(langs) > 0 {
		b.WriteString("Object.defineProperty(navigator, 'languages', { get: () => ")
		b.WriteString(jsonString(langs))
		b.WriteString(" });\n")
	}
	for _, origin := range origins {
		if origin.Origin == "" || len(origin.Items) == 0 {
			continue
		}
		b.WriteString("if (window.location.origin === ")
		b.WriteString(jsonString(origin.Origin))
		b.WriteString(") {\n")
		b.WriteString("  const items = ")
		b.WriteString(jsonString(origin.Items))
		b.WriteString(";\n")
		b.WriteString("  for (const key of Object.keys(items)) {\n")
		b.WriteString("    try { window.localStorage.setItem(key, items[key]); } catch (e) {}\n")
		b.WriteString("  }\n")
		b.WriteString("}\n")
	}
	b.WriteString("})();")
	return b.String()
}

// languageTags extracts the plain language tags from an Accept-Language
// value such as "en-US,en;q=0.9".
func languageTags(locale string) []string {
	var tags []string
	for _, part := range strings.Split(locale, ",") {
		tag := strings.TrimSpace(part)
		if i := strings.IndexByte(tag, ';'); i >= 0 {
			tag = tag[:i]
		}
		if tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// jsonString renders v as a JavaScript literal
func jsonString(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(raw)
}
