package browser

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
)

// storageSnapshot is the serialized identity state of one browsing
// context: cookies plus per-origin localStorage. It is what a visitor
// profile stores between sessions.
type storageSnapshot struct {
	Cookies []*network.Cookie `json:"cookies,omitempty"`
	Origins []originStorage   `json:"origins,omitempty"`
}

// originStorage is one origin's localStorage content
type originStorage struct {
	Origin string            `json:"origin"`
	Items  map[string]string `json:"items"`
}

// localStorageDumpScript serializes the current origin's localStorage.
// Opaque origins throw on access; those yield null.
const localStorageDumpScript = `(() => {
	try {
		const items = {};
		for (let i = 0; i < window.localStorage.length; i++) {
			const key = window.localStorage.key(i);
			items[key] = window.localStorage.getItem(key);
		}
		return { origin: window.location.origin, items: items };
	} catch (e) {
		return null;
	}
})()`

// decodeStorageSnapshot tolerates a nil snapshot (fresh identity) but
// rejects malformed bytes so a corrupt profile surfaces instead of
// silently browsing without its state.
func decodeStorageSnapshot(raw []byte) (storageSnapshot, error) {
	var snap storageSnapshot
	if len(raw) == 0 {
		return snap, nil
	}
	if err := json.Unmarshal(raw, &snap); err != nil {
		return snap, fmt.Errorf("malformed storage snapshot: %w", err)
	}
	return snap, nil
}

// cookieParams converts captured cookies back into settable parameters
func cookieParams(cookies []*network.Cookie) []*network.CookieParam {
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		if c == nil || c.Name == "" {
			continue
		}
		p := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			SameSite: c.SameSite,
		}
		if c.Expires > 0 {
			sec := int64(c.Expires)
			nsec := int64((c.Expires - float64(sec)) * float64(time.Second))
			t := cdp.TimeSinceEpoch(time.Unix(sec, nsec))
			p.Expires = &t
		}
		params = append(params, p)
	}
	return params
}
