package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Built-in defaults, matching the federation's standard local layout.
const (
	defaultHost            = "0.0.0.0"
	defaultPort            = 1488
	defaultControllerBase  = "http://127.0.0.1:8021"
	defaultControllerModel = "controller-3b"
	defaultWarpWailsURL    = "http://127.0.0.1:8009"
	defaultSTTBase         = "http://127.0.0.1:8010"
	defaultSpeaker         = "kseniya"
	defaultModel7B         = "shushu-7b"
	defaultModel20B        = "shushu-20b"
)

// Load reads the YAML configuration file at path (skipped when path is empty
// or the file does not exist), overlays environment variables, applies
// defaults, and validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		f, err := os.Open(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// Env-only deployment; fall through to the overlay.
		case err != nil:
			return nil, fmt.Errorf("config: open %q: %w", path, err)
		default:
			defer f.Close()
			cfg, err = parse(f)
			if err != nil {
				return nil, fmt.Errorf("config: parse %q: %w", path, err)
			}
		}
	}

	ApplyEnv(cfg)
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, overlays environment variables
// and defaults, and validates the result. Useful in tests where configs are
// constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg, err := parse(r)
	if err != nil {
		return nil, err
	}
	ApplyEnv(cfg)
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parse strictly decodes YAML from r.
func parse(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overlays the environment variables the deployment scripts export.
// Set variables always override file values.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv("EYE_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("EYE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("VLLM_MODEL"); v != "" {
		cfg.Controller.Model = v
	}
	if v := os.Getenv("WARPWAILS_URL"); v != "" {
		cfg.Tools.WarpWailsURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("STT_BASE"); v != "" {
		cfg.Tools.STTBase = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("TTS_DEFAULT_SPK"); v != "" {
		cfg.Tools.DefaultSpeaker = v
	}

	// MODEL_7B_BASE doubles as the controller base: the 7B endpoint hosts the
	// controller in the standard deployment.
	if v := os.Getenv("MODEL_7B_BASE"); v != "" {
		base := strings.TrimRight(v, "/")
		cfg.Controller.Base = base
		setRouteBase(cfg, "7b", base)
	}
	if v := os.Getenv("MODEL_20B_BASE"); v != "" {
		setRouteBase(cfg, "20b", strings.TrimRight(v, "/"))
	}
}

// setRouteBase updates (or creates) the named route, preserving a configured
// model id.
func setRouteBase(cfg *Config, name, base string) {
	if cfg.Routes == nil {
		cfg.Routes = make(map[string]RouteEntry)
	}
	e := cfg.Routes[name]
	e.Base = base
	cfg.Routes[name] = e
}

// applyDefaults fills in anything neither the file nor the environment set.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = defaultHost
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaultPort
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Controller.Base == "" {
		cfg.Controller.Base = defaultControllerBase
	}
	if cfg.Controller.Model == "" {
		cfg.Controller.Model = defaultControllerModel
	}
	if cfg.Tools.WarpWailsURL == "" {
		cfg.Tools.WarpWailsURL = defaultWarpWailsURL
	}
	if cfg.Tools.STTBase == "" {
		cfg.Tools.STTBase = defaultSTTBase
	}
	if cfg.Tools.DefaultSpeaker == "" {
		cfg.Tools.DefaultSpeaker = defaultSpeaker
	}

	if cfg.Routes == nil {
		cfg.Routes = make(map[string]RouteEntry)
	}
	if e, ok := cfg.Routes["7b"]; !ok || e.Base == "" {
		e.Base = cfg.Controller.Base
		cfg.Routes["7b"] = e
	}
	if e := cfg.Routes["7b"]; e.Model == "" {
		e.Model = defaultModel7B
		cfg.Routes["7b"] = e
	}
	if e, ok := cfg.Routes["20b"]; ok && e.Model == "" {
		e.Model = defaultModel20B
		cfg.Routes["20b"] = e
	}
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d is out of range [0, 65535]", cfg.Server.Port))
	}
	for name, e := range cfg.Routes {
		if e.Base == "" {
			errs = append(errs, fmt.Errorf("routes.%s.base is required", name))
		}
		if e.Model == "" {
			errs = append(errs, fmt.Errorf("routes.%s.model is required", name))
		}
	}
	if !cfg.Controller.Disabled && cfg.Controller.Base == "" {
		errs = append(errs, errors.New("controller.base is required unless controller.disabled is set"))
	}

	return errors.Join(errs...)
}
