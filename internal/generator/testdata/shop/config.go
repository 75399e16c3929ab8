package shop

import (
	"time"

	"github.com/guldbach/google-ads-builder-sub001/pkg/harness"
)

func Config() *harness.Config {
	return &harness.Config{BaseURL: "http://localhost:8000", ElementTimeout: 2 * time.Second}
}

func ConfigFor(env string) *harness.Config {
	return &harness.Config{BaseURL: "http://" + env}
}

type Settings struct{}

func (Settings) Config() *harness.Config {
	return nil
}
