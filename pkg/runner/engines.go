package runner

import (
	"fmt"
	"strings"

	"github.com/guldbach/google-ads-builder-sub001/pkg/browser"
	"github.com/guldbach/google-ads-builder-sub001/pkg/browser/cdpdriver"
	"github.com/guldbach/google-ads-builder-sub001/pkg/browser/rodriver"
)

// Engines lists the names accepted by LauncherFor.
var Engines = []string{"rod", "chromedp"}

// LauncherFor returns the launcher of the named engine. An empty name
// selects rod.
func LauncherFor(engine string) (browser.Launcher, error) {
	switch strings.ToLower(strings.TrimSpace(engine)) {
	case "", "rod":
		return rodriver.Launcher{}, nil
	case "chromedp", "cdp":
		return cdpdriver.Launcher{}, nil
	}
	return nil, fmt.Errorf("unknown engine %q, expected one of %s", engine, strings.Join(Engines, ", "))
}
