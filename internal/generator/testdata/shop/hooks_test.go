package shop

import ui "github.com/guldbach/google-ads-builder-sub001/pkg/harness"

func hooks() *ui.Hooks {
	return &ui.Hooks{}
}

func slowConfig() *ui.Config {
	return &ui.Config{ElementTimeout: 10e9}
}
