package shop_test

import "github.com/guldbach/google-ads-builder-sub001/pkg/harness"

func Config() *harness.Config {
	return nil
}
