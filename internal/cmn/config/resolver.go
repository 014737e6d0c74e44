package config

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/alger-org/alger/internal/build"
)

// PathResolver determines the directories the application uses for
// configuration, data, logs and artifacts. The locations are derived from
// the application home environment variable when set, falling back to
// XDG-compliant defaults otherwise.
type PathResolver struct {
	ConfigDir    string
	DataDir      string
	LogDir       string
	ArtifactsDir string
	DBFile       string
}

// XDGConfig contains the standard XDG directories used as a fallback.
type XDGConfig struct {
	DataHome   string
	ConfigHome string
}

// DefaultXDGConfig returns the XDG directories for the current user.
func DefaultXDGConfig(homeDir string) XDGConfig {
	return XDGConfig{
		DataHome:   xdg.DataHome,
		ConfigHome: filepath.Join(homeDir, ".config"),
	}
}

// NewResolver instantiates a PathResolver. When the application home
// environment variable is set, all paths are placed under that directory;
// otherwise the XDG data and config homes are used.
func NewResolver(appHomeEnv string, xdgCfg XDGConfig) PathResolver {
	var r PathResolver
	if appHome := os.Getenv(appHomeEnv); appHome != "" {
		r.ConfigDir = appHome
		r.DataDir = filepath.Join(appHome, "data")
		r.LogDir = filepath.Join(appHome, "logs")
		r.ArtifactsDir = filepath.Join(appHome, "artifacts")
	} else {
		r.ConfigDir = filepath.Join(xdgCfg.ConfigHome, build.Slug)
		r.DataDir = filepath.Join(xdgCfg.DataHome, build.Slug, "data")
		r.LogDir = filepath.Join(xdgCfg.DataHome, build.Slug, "logs")
		r.ArtifactsDir = filepath.Join(xdgCfg.DataHome, build.Slug, "artifacts")
	}
	r.DBFile = filepath.Join(r.DataDir, build.Slug+".db")
	return r
}
