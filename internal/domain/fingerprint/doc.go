// Package fingerprint synthesizes device/browser identities for simulated
// sessions. It owns three disjoint device catalogs (desktop OS families,
// phone models, tablet models) and a weighted country catalog carrying
// locales and timezones. Synthesis is a pure function of catalog data plus
// an injected random source, so a fixed seed reproduces identities.
package fingerprint
