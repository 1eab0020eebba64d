// Package config loads the launcher configuration.
//
// Values are layered, later layers winning:
//  1. Built-in defaults (Default), which reproduce the classic layout of the
//     crop-disease project: disease_requirements.txt, models/, utils/,
//     templates/ and a server on 0.0.0.0:5000 with debug enabled.
//  2. An optional config file in the base directory
//     (disease-launcher.yaml / .yml / .jsonc / .json) or given with --config.
//     JSON files may contain comments; they are stripped with
//     github.com/tidwall/jsonc before parsing.
//  3. A .env file in the base directory and DISEASE_* environment variables.
//  4. Command-line flags (applied by the cli package).
//
// Every relative path is resolved against an explicit base directory rather
// than the process working directory.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/shinji-kodama/disease-launcher/internal/model"
	"github.com/shinji-kodama/disease-launcher/internal/pyenv"
)

// Default values for the crop-disease project layout.
const (
	DefaultPython    = "python3"
	DefaultMinPython = "3.7"
	DefaultManifest  = "disease_requirements.txt"
	DefaultModelFile = "models/plant_disease_model.pth"
	DefaultAppModule = "disease_detection_app"
	DefaultAppObject = "app"
	DefaultHost      = "0.0.0.0"
	DefaultPort      = 5000
	DefaultImage     = "python:3.11-slim"
)

// ConfigFileNames lists the config file names searched in the base
// directory, in priority order.
var ConfigFileNames = []string{
	"disease-launcher.yaml",
	"disease-launcher.yml",
	"disease-launcher.jsonc",
	"disease-launcher.json",
}

// Environment variable names read by ApplyEnv.
const (
	EnvPython      = "DISEASE_PYTHON"
	EnvHost        = "DISEASE_HOST"
	EnvPort        = "DISEASE_PORT"
	EnvDebug       = "DISEASE_DEBUG"
	EnvSkipInstall = "DISEASE_SKIP_INSTALL"
	EnvRuntime     = "DISEASE_RUNTIME"
	EnvImage       = "DISEASE_IMAGE"
)

// Config holds every knob of the launcher.
//
// BaseDir is never read from a config file: it decides where the
// config file is looked up, so it can only come from the command line.
type Config struct {
	BaseDir string `json:"-" yaml:"-"`

	// Python is the interpreter name or path used for the version check,
	// the installer and the local runtime.
	Python string `json:"python" yaml:"python"`

	// MinPython is the minimum interpreter version, "major.minor[.patch]".
	MinPython string `json:"minPython" yaml:"min_python"`

	// Manifest is the requirements file passed to pip install -r.
	Manifest string `json:"manifest" yaml:"manifest"`

	// SkipInstall disables the installer step.
	SkipInstall bool `json:"skipInstall" yaml:"skip_install"`

	// ModelFile is the trained-network weights file.
	ModelFile string `json:"modelFile" yaml:"model_file"`

	// UtilFiles are the helper modules the application imports.
	UtilFiles []string `json:"utilFiles" yaml:"util_files"`

	// Templates are the HTML templates the application renders.
	Templates []string `json:"templates" yaml:"templates"`

	// AppModule and AppObject name the object imported and run
	// ("from <AppModule> import <AppObject>").
	AppModule string `json:"appModule" yaml:"app_module"`
	AppObject string `json:"appObject" yaml:"app_object"`

	Host  string `json:"host" yaml:"host"`
	Port  int    `json:"port" yaml:"port"`
	Debug bool   `json:"debug" yaml:"debug"`

	Runtime model.RuntimeKind `json:"runtime" yaml:"runtime"`
	Docker  DockerConfig      `json:"docker" yaml:"docker"`
}

// DockerConfig holds settings for the docker runtime.
type DockerConfig struct {
	// Image is the Python image the application runs in.
	Image string `json:"image" yaml:"image"`

	// ContainerName overrides the generated container name.
	ContainerName string `json:"containerName,omitempty" yaml:"container_name,omitempty"`

	// Detach returns as soon as the container has started.
	Detach bool `json:"detach" yaml:"detach"`
}

// Default returns the configuration for the standard project layout
// rooted at baseDir.
func Default(baseDir string) *Config {
	return &Config{
		BaseDir:   baseDir,
		Python:    DefaultPython,
		MinPython: DefaultMinPython,
		Manifest:  DefaultManifest,
		ModelFile: DefaultModelFile,
		UtilFiles: []string{
			"utils/model.py",
			"utils/disease.py",
		},
		Templates: []string{
			"templates/index_disease.html",
			"templates/disease.html",
			"templates/disease_result_simple.html",
		},
		AppModule: DefaultAppModule,
		AppObject: DefaultAppObject,
		Host:      DefaultHost,
		Port:      DefaultPort,
		Debug:     true,
		Runtime:   model.RuntimeLocal,
		Docker: DockerConfig{
			Image: DefaultImage,
		},
	}
}

// Load builds the configuration for baseDir: defaults, then the config file
// (explicitPath, or the first of ConfigFileNames found in baseDir), then the
// .env file and environment variables. It returns the config and the path
// of the file that was loaded ("" if none).
//
// Load does not validate; callers apply flag overrides first and then call
// Validate.
func Load(baseDir, explicitPath string) (*Config, string, error) {
	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, "", fmt.Errorf("failed to resolve base directory %q: %w", baseDir, err)
	}
	info, err := os.Stat(absBase)
	if err != nil {
		return nil, "", fmt.Errorf("base directory %s: %w", absBase, err)
	}
	if !info.IsDir() {
		return nil, "", fmt.Errorf("base directory %s is not a directory", absBase)
	}

	cfg := Default(absBase)

	path := explicitPath
	if path == "" {
		path = FindConfigFile(absBase)
	}
	if path != "" {
		if err := LoadFile(path, cfg); err != nil {
			return nil, "", err
		}
	}

	if _, err := LoadDotEnv(absBase); err != nil {
		return nil, "", err
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, "", err
	}

	return cfg, path, nil
}

// FindConfigFile returns the first config file from ConfigFileNames that
// exists in baseDir, or "" if there is none. A missing config file is not
// an error: the defaults describe the standard layout.
func FindConfigFile(baseDir string) string {
	for _, name := range ConfigFileNames {
		path := filepath.Join(baseDir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// LoadFile reads a YAML or JSON(C) config file and overlays its values onto
// cfg. Fields absent from the file keep their current values.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	case ".json", ".jsonc":
		// Comments and trailing commas are allowed in both extensions.
		if err := json.Unmarshal(jsonc.ToJSON(data), cfg); err != nil {
			return fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config file extension %q (use .yaml, .yml, .json or .jsonc)", filepath.Ext(path))
	}
	return nil
}

// LoadDotEnv loads baseDir/.env into the process environment without
// overriding variables that are already set. It reports whether a file
// was loaded.
func LoadDotEnv(baseDir string) (bool, error) {
	path := filepath.Join(baseDir, ".env")
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return false, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return true, nil
}

// ApplyEnv overrides cfg with DISEASE_* environment variables.
// Malformed numeric or boolean values are errors rather than being ignored.
func ApplyEnv(cfg *Config) error {
	if v, ok := os.LookupEnv(EnvPython); ok && v != "" {
		cfg.Python = v
	}
	if v, ok := os.LookupEnv(EnvHost); ok && v != "" {
		cfg.Host = v
	}
	if v, ok := os.LookupEnv(EnvPort); ok && v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s=%q: %w", EnvPort, v, err)
		}
		cfg.Port = p
	}
	if v, ok := os.LookupEnv(EnvDebug); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s=%q: %w", EnvDebug, v, err)
		}
		cfg.Debug = b
	}
	if v, ok := os.LookupEnv(EnvSkipInstall); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s=%q: %w", EnvSkipInstall, v, err)
		}
		cfg.SkipInstall = b
	}
	if v, ok := os.LookupEnv(EnvRuntime); ok && v != "" {
		cfg.Runtime = model.RuntimeKind(strings.ToLower(v))
	}
	if v, ok := os.LookupEnv(EnvImage); ok && v != "" {
		cfg.Docker.Image = v
	}
	return nil
}

// ValidationError describes one invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

var (
	// modulePattern accepts dotted Python module paths.
	modulePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

	// identifierPattern accepts a single Python identifier.
	identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// Validate checks the configuration and returns every problem found,
// joined with errors.Join, or nil.
//
// AppModule and AppObject are interpolated into the bootstrap program,
// so they must be plain Python identifiers.
func (c *Config) Validate() error {
	var errs []error
	add := func(field, format string, args ...any) {
		errs = append(errs, &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if c.BaseDir == "" {
		add("baseDir", "must not be empty")
	}
	if strings.TrimSpace(c.Python) == "" {
		add("python", "must not be empty")
	}
	if _, err := pyenv.ParseVersion(c.MinPython); err != nil {
		add("minPython", "%v", err)
	}
	if c.Manifest == "" {
		add("manifest", "must not be empty")
	}
	if c.ModelFile == "" {
		add("modelFile", "must not be empty")
	}
	for i, f := range c.UtilFiles {
		if strings.TrimSpace(f) == "" {
			add(fmt.Sprintf("utilFiles[%d]", i), "must not be empty")
		}
	}
	for i, f := range c.Templates {
		if strings.TrimSpace(f) == "" {
			add(fmt.Sprintf("templates[%d]", i), "must not be empty")
		}
	}
	if !modulePattern.MatchString(c.AppModule) {
		add("appModule", "%q is not a Python module path", c.AppModule)
	}
	if !identifierPattern.MatchString(c.AppObject) {
		add("appObject", "%q is not a Python identifier", c.AppObject)
	}
	if c.Host == "" {
		add("host", "must not be empty")
	}
	// Port 0 asks the launcher to pick a free port.
	if c.Port < 0 || c.Port > 65535 {
		add("port", "%d out of range (0-65535)", c.Port)
	}
	if !c.Runtime.IsValid() {
		add("runtime", "%q is not a valid runtime (valid: local, docker)", c.Runtime)
	}
	if c.Runtime == model.RuntimeDocker && c.Docker.Image == "" {
		add("docker.image", "must not be empty when runtime is docker")
	}

	return errors.Join(errs...)
}

// Resolve returns path resolved against the base directory. Absolute
// paths are returned unchanged.
func (c *Config) Resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.BaseDir, filepath.FromSlash(path))
}

// Address returns the host:port the server binds to.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// BrowserURL returns the URL printed for the user. Wildcard bind
// addresses are shown as localhost.
func (c *Config) BrowserURL() string {
	host := c.Host
	switch host {
	case "", "0.0.0.0", "::", "[::]":
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(c.Port))
}

// MinVersion returns the parsed minimum interpreter version.
func (c *Config) MinVersion() (pyenv.Version, error) {
	return pyenv.ParseVersion(c.MinPython)
}
