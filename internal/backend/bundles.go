package backend

import "strings"

// appMatcher decides whether an application belongs to a backend's ecosystem.
// Known bundle identifiers win; display-name matching is only used when the
// caller has no bundle id.
type appMatcher struct {
	any       bool
	bundleIDs map[string]bool
	contains  []string // lower-case substrings of the display name
	exact     []string // lower-case display names too short for substring matching
}

func (m appMatcher) match(app, bundleID string) bool {
	if m.any {
		return true
	}
	if bundleID != "" {
		return m.bundleIDs[strings.ToLower(bundleID)]
	}
	name := strings.ToLower(strings.TrimSpace(app))
	if name == "" {
		return false
	}
	for _, e := range m.exact {
		if name == e {
			return true
		}
	}
	for _, sub := range m.contains {
		if strings.Contains(name, sub) {
			return true
		}
	}
	return false
}

func set(ids ...string) map[string]bool {
	m := make(map[string]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}

var chromiumBundleIDs = []string{
	"com.google.chrome",
	"com.google.chrome.beta",
	"com.google.chrome.canary",
	"org.chromium.chromium",
	"com.brave.browser",
	"com.microsoft.edgemac",
	"company.thebrowser.browser",
	"com.vivaldi.vivaldi",
	"com.operasoftware.opera",
}

var electronBundleIDs = []string{
	"com.microsoft.vscode",
	"com.todesktop.230313mzl4w4u92",
	"com.tinyspeck.slackmacgap",
	"com.hnc.discord",
	"notion.id",
	"com.figma.desktop",
	"md.obsidian",
	"com.github.githubclient",
}

var chromiumNames = []string{"chrome", "chromium", "brave", "microsoft edge", "vivaldi", "opera"}

// devToolsApps are Chromium browsers and Electron apps that expose a remote
// debugging endpoint.
var devToolsApps = appMatcher{
	bundleIDs: set(append(append([]string{}, chromiumBundleIDs...), electronBundleIDs...)...),
	contains:  append(append([]string{}, chromiumNames...), "electron", "visual studio code", "slack", "discord", "notion", "cursor", "figma", "obsidian"),
	exact:     []string{"arc", "code"},
}

// scriptableBrowsers can run JavaScript in their active tab through OS scripting.
var scriptableBrowsers = appMatcher{
	bundleIDs: set(append([]string{"com.apple.safari", "com.apple.safaritechnologypreview"}, chromiumBundleIDs...)...),
	contains:  append([]string{"safari"}, chromiumNames...),
	exact:     []string{"arc"},
}

// browsers are every application whose UI is mostly web content.
var browsers = appMatcher{
	bundleIDs: set(append([]string{"com.apple.safari", "com.apple.safaritechnologypreview", "org.mozilla.firefox", "org.mozilla.firefoxdeveloperedition"}, chromiumBundleIDs...)...),
	contains:  append([]string{"safari", "firefox"}, chromiumNames...),
	exact:     []string{"arc"},
}

// IsBrowser reports whether the application is a web browser.
func IsBrowser(app, bundleID string) bool {
	return browsers.match(app, bundleID)
}

// isSafari reports whether the application speaks Safari's scripting dialect.
func isSafari(app, bundleID string) bool {
	if bundleID != "" {
		return strings.HasPrefix(strings.ToLower(bundleID), "com.apple.safari")
	}
	return strings.Contains(strings.ToLower(app), "safari")
}
