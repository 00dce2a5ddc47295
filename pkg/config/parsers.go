package config

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
)

const envPrefix = "P2PMESSAGE_"

// holds parsed command-line flag values and which were set
type Flags struct {
	Addr     string
	DB       string
	Config   string
	Set      map[string]bool
	Validate bool
}

// holds the results of applying environment overrides
type EnvResult struct {
	EnvUsed bool
	Keys    []string
}

// holds the result of LoadEffectiveConfig
type EffectiveConfigResult struct {
	Config *Config
	Addr   string
	DBPath string
	Source string // "flags", "env", "config" or "defaults"
}

// parses command-line flags from args
func ParseConfigFlags(args []string) (Flags, error) {
	fs := flag.NewFlagSet("p2pmessage", flag.ContinueOnError)
	addrPtr := fs.String("addr", "", "HTTP listen address (host:port)")
	dbPtr := fs.String("db", "", "data directory")
	cfgPtr := fs.String("config", "./config.yaml", "Path to config file")
	validatePtr := fs.Bool("validate", false, "validate config and exit")
	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}

	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })

	return Flags{Addr: *addrPtr, DB: *dbPtr, Config: *cfgPtr, Set: setFlags, Validate: *validatePtr}, nil
}

// loads config from file, returns config, found bool, and error
func ParseConfigFile(flags Flags) (*Config, bool, error) {
	cfgPath := ResolveConfigPath(flags.Config, flags.Set["config"])
	cfg, err := LoadConfigFile(cfgPath)
	if err != nil {
		if isNotExist(err) {
			return &Config{}, false, nil
		}
		return nil, false, err
	}
	return cfg, true, nil
}

// ApplyEnvs overlays P2PMESSAGE_* variables onto cfg using lookup (os.LookupEnv in production).
func ApplyEnvs(cfg *Config, lookup func(string) (string, bool)) (EnvResult, error) {
	var res EnvResult
	get := func(name string) string {
		v, ok := lookup(envPrefix + name)
		if !ok || strings.TrimSpace(v) == "" {
			return ""
		}
		res.EnvUsed = true
		res.Keys = append(res.Keys, envPrefix+name)
		return strings.TrimSpace(v)
	}
	var errs []string
	fail := func(name string, err error) {
		errs = append(errs, fmt.Sprintf("%s%s: %v", envPrefix, name, err))
	}

	if v := get("ADDR"); v != "" {
		if h, p, err := net.SplitHostPort(v); err == nil {
			cfg.Server.Address = h
			if pi, err := strconv.Atoi(p); err == nil {
				cfg.Server.Port = pi
			}
		} else {
			cfg.Server.Address = v
		}
	}
	if v := get("PORT"); v != "" {
		if pi, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = pi
		} else {
			fail("PORT", err)
		}
	}
	if v := get("DB_PATH"); v != "" {
		cfg.Server.DBPath = v
	}
	if v := get("MAX_REQUEST_BODY"); v != "" {
		if s, err := ParseSizeBytes(v); err == nil {
			cfg.Server.MaxRequestBody = s
		} else {
			fail("MAX_REQUEST_BODY", err)
		}
	}
	if c := get("TLS_CERT"); c != "" {
		cfg.Server.TLS.CertFile = c
	}
	if k := get("TLS_KEY"); k != "" {
		cfg.Server.TLS.KeyFile = k
	}

	if v := get("AGENT_KEY"); v != "" {
		cfg.Node.AgentKey = v
	}
	if v := get("NODE_NAME"); v != "" {
		cfg.Node.Name = v
	}

	if v := get("STORE_DSN"); v != "" {
		cfg.Store.DSN = v
	}
	if v := get("STORE_SYNC_WRITES"); v != "" {
		b := parseBool(v)
		cfg.Store.SyncWrites = &b
	}
	if v := get("STORE_CACHE_SIZE"); v != "" {
		if s, err := ParseSizeBytes(v); err == nil {
			cfg.Store.CacheSize = s
		} else {
			fail("STORE_CACHE_SIZE", err)
		}
	}

	if v := get("TRANSPORT_TIMEOUT"); v != "" {
		if d, err := ParseDuration(v); err == nil {
			cfg.Transport.Timeout = d
		} else {
			fail("TRANSPORT_TIMEOUT", err)
		}
	}
	// agent=url pairs, comma separated
	if v := get("PEERS"); v != "" {
		peers, err := parsePeers(v)
		if err != nil {
			fail("PEERS", err)
		} else {
			cfg.Transport.Peers = peers
		}
	}

	if v := get("API_KEYS"); v != "" {
		cfg.Security.APIKeys = parseList(v)
	}
	if v := get("RATE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Security.RateLimit.RPS = f
		} else {
			fail("RATE_RPS", err)
		}
	}
	if v := get("RATE_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Security.RateLimit.Burst = n
		} else {
			fail("RATE_BURST", err)
		}
	}

	if v := get("EVENTS_ENABLED"); v != "" {
		cfg.Events.Enabled = parseBool(v)
	}
	if v := get("EVENTS_ADDR"); v != "" {
		cfg.Events.Address = v
	}

	if v := get("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := get("MAINTENANCE_ENABLED"); v != "" {
		cfg.Maintenance.Enabled = parseBool(v)
	}
	if v := get("MAINTENANCE_CRON"); v != "" {
		cfg.Maintenance.Cron = v
	}

	if v := get("SENSOR_POLL_INTERVAL"); v != "" {
		if d, err := ParseDuration(v); err == nil {
			cfg.Sensor.PollInterval = d
		} else {
			fail("SENSOR_POLL_INTERVAL", err)
		}
	}
	if v := get("SENSOR_DISK_HIGH_PCT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Sensor.DiskHighPct = n
		} else {
			fail("SENSOR_DISK_HIGH_PCT", err)
		}
	}

	if v := get("TELEMETRY_ENABLED"); v != "" {
		cfg.Telemetry.Enabled = parseBool(v)
	}

	if len(errs) > 0 {
		return res, fmt.Errorf("invalid environment: %s", strings.Join(errs, "; "))
	}
	return res, nil
}

// LoadEffectiveConfig layers defaults < config file < env < flags.
func LoadEffectiveConfig(flags Flags, fileCfg *Config, fileExists bool, lookup func(string) (string, bool)) (EffectiveConfigResult, error) {
	var res EffectiveConfigResult

	if flags.Set["config"] && !fileExists {
		return res, fmt.Errorf("config file %s not found", flags.Config)
	}
	cfg := &Config{}
	if fileExists && fileCfg != nil {
		cp := *fileCfg
		cfg = &cp
	}
	res.Source = "defaults"
	if fileExists {
		res.Source = "config"
	}

	envRes, err := ApplyEnvs(cfg, lookup)
	if err != nil {
		return res, err
	}
	if envRes.EnvUsed {
		res.Source = "env"
	}

	if flags.Set["addr"] {
		if h, _, err := net.SplitHostPort(flags.Addr); err == nil {
			cfg.Server.Address = h
			cfg.Server.Port = parsePortFromAddr(flags.Addr)
		} else {
			cfg.Server.Address = flags.Addr
			cfg.Server.Port = 0
		}
		res.Source = "flags"
	}
	if flags.Set["db"] {
		cfg.Server.DBPath = flags.DB
		res.Source = "flags"
	}

	cfg.ApplyDefaults()
	res.Config = cfg
	res.Addr = cfg.Addr()
	res.DBPath = cfg.Server.DBPath
	return res, nil
}

// LoadFromOS runs the whole flag, file and env pipeline against the process environment.
func LoadFromOS(args []string) (EffectiveConfigResult, Flags, error) {
	flags, err := ParseConfigFlags(args)
	if err != nil {
		return EffectiveConfigResult{}, flags, err
	}
	fileCfg, found, err := ParseConfigFile(flags)
	if err != nil {
		return EffectiveConfigResult{}, flags, err
	}
	eff, err := LoadEffectiveConfig(flags, fileCfg, found, os.LookupEnv)
	return eff, flags, err
}

func parseList(v string) []string {
	if v == "" {
		return nil
	}
	parts := []string{}
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			parts = append(parts, s)
		}
	}
	return parts
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

func parsePeers(v string) ([]PeerConfig, error) {
	var out []PeerConfig
	for _, item := range parseList(v) {
		agent, url, ok := strings.Cut(item, "=")
		if !ok || strings.TrimSpace(agent) == "" || strings.TrimSpace(url) == "" {
			return nil, fmt.Errorf("peer entry %q is not agent=url", item)
		}
		out = append(out, PeerConfig{Agent: strings.TrimSpace(agent), URL: strings.TrimSpace(url)})
	}
	return out, nil
}

// extracts port integer from host:port string
func parsePortFromAddr(a string) int {
	if a == "" {
		return 0
	}
	if _, p, err := net.SplitHostPort(a); err == nil {
		if pi, err := strconv.Atoi(p); err == nil {
			return pi
		}
	}
	return 0
}
