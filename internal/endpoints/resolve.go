// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package endpoints

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/adobe-helper/internal/logging"
)

const (
	// EnvEndpointsFile names an explicit discovery file.
	EnvEndpointsFile = "ADOBE_HELPER_ENDPOINTS_FILE"

	// DiscoveryFilename is looked up in the working directory, next to the
	// executable, and in the session directory.
	DiscoveryFilename = "discovered_endpoints.json"

	// SessionDir is the per-user state directory under $HOME.
	SessionDir = ".adobe-helper"
)

// Key names one of the document API endpoints.
type Key string

const (
	KeyUpload     Key = "upload"
	KeyConversion Key = "conversion"
	KeyStatus     Key = "status"
	KeyDownload   Key = "download"
)

// Keys lists endpoint keys in resolution order.
var Keys = []Key{KeyUpload, KeyConversion, KeyStatus, KeyDownload}

var envOverrides = map[Key]string{
	KeyUpload:     "ADOBE_HELPER_UPLOAD_URL",
	KeyConversion: "ADOBE_HELPER_CONVERSION_URL",
	KeyStatus:     "ADOBE_HELPER_STATUS_URL",
	KeyDownload:   "ADOBE_HELPER_DOWNLOAD_URL",
}

// EnvVar returns the override variable for k.
func EnvVar(k Key) string { return envOverrides[k] }

// Source records where a resolved endpoint came from.
type Source string

const (
	SourceDefault Source = "default"
	SourceFile    Source = "file"
	SourceEnv     Source = "env"
)

// Endpoints are the document API URLs used by the converter.
type Endpoints struct {
	Upload     string `json:"upload" yaml:"upload"`
	Conversion string `json:"conversion" yaml:"conversion"`
	Status     string `json:"status" yaml:"status"`
	Download   string `json:"download" yaml:"download"`
}

// Defaults returns the built-in endpoints.
func Defaults() Endpoints {
	return Endpoints{
		Upload:     APIUpload,
		Conversion: APIConvert,
		Status:     APIStatus,
		Download:   APIDownload,
	}
}

// Get returns the URL for k.
func (e Endpoints) Get(k Key) string {
	switch k {
	case KeyUpload:
		return e.Upload
	case KeyConversion:
		return e.Conversion
	case KeyStatus:
		return e.Status
	case KeyDownload:
		return e.Download
	}
	return ""
}

func (e *Endpoints) set(k Key, url string) {
	switch k {
	case KeyUpload:
		e.Upload = url
	case KeyConversion:
		e.Conversion = url
	case KeyStatus:
		e.Status = url
	case KeyDownload:
		e.Download = url
	}
}

// Resolution is the outcome of Resolve.
type Resolution struct {
	Endpoints `yaml:",inline"`

	// File is the discovery file that contributed endpoints, if any.
	File string `json:"file,omitempty" yaml:"file,omitempty"`

	// Sources maps each key to the layer that supplied its value.
	Sources map[Key]Source `json:"sources" yaml:"sources"`
}

// Resolve layers the defaults, the first candidate discovery file that yields
// at least one endpoint, and environment overrides, in that order.
func Resolve(explicitPath string) Resolution {
	return defaultEnv().resolve(explicitPath)
}

// environment isolates process lookups so tests can substitute them.
type environment struct {
	getenv     func(string) string
	getwd      func() (string, error)
	homeDir    func() (string, error)
	executable func() (string, error)
}

func defaultEnv() environment {
	return environment{
		getenv:     os.Getenv,
		getwd:      os.Getwd,
		homeDir:    os.UserHomeDir,
		executable: os.Executable,
	}
}

func (env environment) resolve(explicitPath string) Resolution {
	res := Resolution{
		Endpoints: Defaults(),
		Sources:   make(map[Key]Source, len(Keys)),
	}
	for _, k := range Keys {
		res.Sources[k] = SourceDefault
	}

	for _, candidate := range env.candidates(explicitPath) {
		info, err := os.Stat(candidate)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		loaded := loadFile(candidate)
		if len(loaded) == 0 {
			continue
		}
		for k, url := range loaded {
			res.set(k, url)
			res.Sources[k] = SourceFile
		}
		res.File = candidate
		break
	}

	overridden := false
	for _, k := range Keys {
		if v := strings.TrimSpace(env.getenv(envOverrides[k])); v != "" {
			res.set(k, v)
			res.Sources[k] = SourceEnv
			overridden = true
		}
	}
	if overridden {
		logging.Info("loaded API endpoint overrides from environment variables")
	}

	return res
}

// Candidates returns the discovery file paths Resolve would try, in order.
func Candidates(explicitPath string) []string {
	return defaultEnv().candidates(explicitPath)
}

func (env environment) candidates(explicitPath string) []string {
	var paths []string
	if explicitPath != "" {
		paths = append(paths, env.expandHome(explicitPath))
	}
	if p := env.getenv(EnvEndpointsFile); p != "" {
		paths = append(paths, env.expandHome(p))
	}
	if wd, err := env.getwd(); err == nil {
		paths = append(paths, filepath.Join(wd, DiscoveryFilename))
	}
	if exe, err := env.executable(); err == nil {
		paths = append(paths, filepath.Join(filepath.Dir(exe), DiscoveryFilename))
	}
	if home, err := env.homeDir(); err == nil {
		paths = append(paths, filepath.Join(home, SessionDir, DiscoveryFilename))
	}

	seen := make(map[string]bool, len(paths))
	unique := paths[:0]
	for _, p := range paths {
		key := canonical(p)
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, p)
	}
	return unique
}

func (env environment) expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := env.homeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

func canonical(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		return real
	}
	return abs
}

// loadFile reads endpoint URLs from a discovery file. Read and parse failures
// are logged and yield an empty map.
func loadFile(path string) map[Key]string {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logging.Debug("endpoint discovery file not found", "path", path)
		} else {
			logging.Warn("failed to read endpoint discovery file", "path", path, "error", err)
		}
		return nil
	}

	var raw any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	default:
		err = json.Unmarshal(data, &raw)
	}
	if err != nil {
		logging.Warn("failed to parse endpoint discovery file", "path", path, "error", err)
		return nil
	}

	top, ok := raw.(map[string]any)
	var section map[string]any
	if ok {
		section, ok = top["endpoints"].(map[string]any)
	}
	if !ok {
		logging.Warn("endpoint discovery file does not contain an 'endpoints' mapping", "path", path)
		return nil
	}

	loaded := make(map[Key]string)
	for _, k := range Keys {
		if url := extractURL(section[string(k)]); url != "" {
			loaded[k] = url
		}
	}
	if len(loaded) > 0 {
		logging.Info("loaded API endpoints", "path", path, "count", len(loaded))
	}
	return loaded
}

func extractURL(entry any) string {
	switch v := entry.(type) {
	case string:
		return strings.TrimSpace(v)
	case map[string]any:
		if s, ok := v["url"].(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}
