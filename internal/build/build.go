package build

import "strings"

var (
	Version = "dev"
	AppName = "Alger"
	Slug    = ""
)

func init() {
	if Slug == "" {
		Slug = strings.ToLower(AppName)
	}
}
