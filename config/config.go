// Package config loads the dashboard configuration from YAML and command line flags.
package config

import (
	"flag"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/walletdash/internal/domain"
)

const (
	DefaultAddr                = "127.0.0.1:8080"
	DefaultPrivateKeysEnv      = "WALLET_PRIVATE_KEYS"
	DefaultKeystorePasswordEnv = "WALLET_KEYSTORE_PASSWORD"
	DefaultSnapshotsDir        = "./wal/balance"
	DefaultJournalPath         = "./data/transfers.db"
	DefaultCertCache           = "cert-cache"
	DefaultReceiptTimeout      = 2 * time.Minute
	DefaultLogLimit            = 500
)

// Config typed dashboard configuration.
type Config struct {
	Addr         string
	TLSDomains   []string
	CertCacheDir string
	// AllowRemote permits a non-loopback listen address and ACME TLS.
	AllowRemote    bool
	TrustedOrigins []string

	Networks       []domain.Network
	DefaultNetwork string

	PrivateKeysEnv      string
	KeystorePath        string
	KeystorePasswordEnv string

	Tokens []domain.Token

	SnapshotsDir string
	JournalPath  string

	ReceiptTimeout time.Duration
	LogLimit       int
}

// ConfigTmp raw YAML document.
type ConfigTmp struct {
	Dashboard      DashboardTmp  `yaml:"dashboard"`
	Networks       []NetworkTmp  `yaml:"networks"`
	DefaultNetwork string        `yaml:"default_network,omitempty"`
	Wallet         WalletTmp     `yaml:"wallet"`
	Tokens         []TokenTmp    `yaml:"tokens,omitempty"`
	Storage        StorageTmp    `yaml:"storage,omitempty"`
	ReceiptTimeout time.Duration `yaml:"receipt_timeout,omitempty"`
	LogLimit       int           `yaml:"log_limit,omitempty"`
}

type DashboardTmp struct {
	Addr           string   `yaml:"addr,omitempty"`
	TLSDomains     []string `yaml:"tls_domains,omitempty"`
	CertCache      string   `yaml:"cert_cache,omitempty"`
	AllowRemote    bool     `yaml:"allow_remote,omitempty"`
	TrustedOrigins []string `yaml:"trusted_origins,omitempty"`
}

type NetworkTmp struct {
	Name    string `yaml:"name"`
	ChainID uint64 `yaml:"chain_id,omitempty"`
	RPCURL  string `yaml:"rpc_url"`
}

type WalletTmp struct {
	PrivateKeysEnv      string `yaml:"private_keys_env,omitempty"`
	Keystore            string `yaml:"keystore,omitempty"`
	KeystorePasswordEnv string `yaml:"keystore_password_env,omitempty"`
}

type TokenTmp struct {
	Symbol   string `yaml:"symbol"`
	Address  string `yaml:"address"`
	Decimals int    `yaml:"decimals"`
}

type StorageTmp struct {
	SnapshotsDir string `yaml:"snapshots_dir,omitempty"`
	JournalPath  string `yaml:"journal_path,omitempty"`
}

// Flags command line options.
type Flags struct {
	ConfigPath string
	Setup      bool
}

// ParseFlags parses args (without the program name).
func ParseFlags(args []string) (Flags, error) {
	var f Flags
	fs := flag.NewFlagSet("walletdash", flag.ContinueOnError)
	fs.StringVar(&f.ConfigPath, "config", "", "path to yaml config")
	fs.BoolVar(&f.Setup, "setup", false, "run the interactive configuration wizard")
	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}
	if !f.Setup && f.ConfigPath == "" {
		return Flags{}, fmt.Errorf("either --config or --setup is required")
	}
	return f, nil
}

// Load reads and validates the YAML file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(data)
}

// Parse validates a YAML document and applies defaults.
func Parse(data []byte) (Config, error) {
	var tmp ConfigTmp
	if err := yaml.Unmarshal(data, &tmp); err != nil {
		return Config{}, fmt.Errorf("decode yaml config: %w", err)
	}
	return tmp.toConfig()
}

func (c ConfigTmp) toConfig() (Config, error) {
	cfg := Config{
		Addr:                orDefault(c.Dashboard.Addr, DefaultAddr),
		TLSDomains:          c.Dashboard.TLSDomains,
		CertCacheDir:        orDefault(c.Dashboard.CertCache, DefaultCertCache),
		AllowRemote:         c.Dashboard.AllowRemote,
		PrivateKeysEnv:      orDefault(c.Wallet.PrivateKeysEnv, DefaultPrivateKeysEnv),
		KeystorePath:        strings.TrimSpace(c.Wallet.Keystore),
		KeystorePasswordEnv: orDefault(c.Wallet.KeystorePasswordEnv, DefaultKeystorePasswordEnv),
		SnapshotsDir:        orDefault(c.Storage.SnapshotsDir, DefaultSnapshotsDir),
		JournalPath:         orDefault(c.Storage.JournalPath, DefaultJournalPath),
		ReceiptTimeout:      c.ReceiptTimeout,
		LogLimit:            c.LogLimit,
	}

	if err := cfg.validateExposure(c.Dashboard.TrustedOrigins); err != nil {
		return Config{}, err
	}

	if len(c.Networks) == 0 {
		return Config{}, fmt.Errorf("at least one entry in 'networks' is required")
	}
	seen := make(map[string]struct{}, len(c.Networks))
	for i, n := range c.Networks {
		name := strings.TrimSpace(n.Name)
		if name == "" {
			return Config{}, fmt.Errorf("incorrect 'networks[%d].name' param in yaml config: empty", i)
		}
		if _, dup := seen[name]; dup {
			return Config{}, fmt.Errorf("duplicate network %q in yaml config", name)
		}
		seen[name] = struct{}{}
		if err := ValidateRPCURL(n.RPCURL); err != nil {
			return Config{}, fmt.Errorf("incorrect 'rpc_url' param for network %s in yaml config, error: %w", name, err)
		}
		cfg.Networks = append(cfg.Networks, domain.Network{Name: name, ChainID: n.ChainID, RPCURL: strings.TrimSpace(n.RPCURL)})
	}

	cfg.DefaultNetwork = strings.TrimSpace(c.DefaultNetwork)
	if cfg.DefaultNetwork == "" {
		cfg.DefaultNetwork = cfg.Networks[0].Name
	}
	if _, ok := seen[cfg.DefaultNetwork]; !ok {
		return Config{}, fmt.Errorf("incorrect 'default_network' param in yaml config: %q is not in 'networks'", cfg.DefaultNetwork)
	}

	tokens, err := parseTokens(c.Tokens)
	if err != nil {
		return Config{}, err
	}
	cfg.Tokens = tokens

	if cfg.ReceiptTimeout < 0 {
		return Config{}, fmt.Errorf("incorrect 'receipt_timeout' param in yaml config: must be positive")
	}
	if cfg.ReceiptTimeout == 0 {
		cfg.ReceiptTimeout = DefaultReceiptTimeout
	}
	if cfg.LogLimit < 0 {
		return Config{}, fmt.Errorf("incorrect 'log_limit' param in yaml config: must be positive")
	}
	if cfg.LogLimit == 0 {
		cfg.LogLimit = DefaultLogLimit
	}

	return cfg, nil
}

func (c *Config) validateExposure(origins []string) error {
	if !c.AllowRemote {
		if len(c.TLSDomains) > 0 {
			return fmt.Errorf("'dashboard.tls_domains' serves the wallet publicly and requires 'dashboard.allow_remote: true'")
		}
		if !IsLoopbackAddr(c.Addr) {
			return fmt.Errorf("incorrect 'dashboard.addr' param in yaml config: %q is reachable from other hosts, bind a loopback address or set 'dashboard.allow_remote: true'", c.Addr)
		}
	}
	for i, raw := range origins {
		origin := strings.TrimSpace(raw)
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" || (u.Path != "" && u.Path != "/") {
			return fmt.Errorf("incorrect 'dashboard.trusted_origins[%d]' param in yaml config: %q is not scheme://host[:port]", i, raw)
		}
		c.TrustedOrigins = append(c.TrustedOrigins, strings.TrimSuffix(origin, "/"))
	}
	return nil
}

// IsLoopbackAddr reports whether a listen address only accepts local connections.
// An empty host (":8080") listens on every interface.
func IsLoopbackAddr(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func parseTokens(raw []TokenTmp) ([]domain.Token, error) {
	if len(raw) == 0 {
		return domain.DefaultTokens(), nil
	}

	tokens := make([]domain.Token, 0, len(raw))
	seen := make(map[common.Address]string, len(raw))
	for i, t := range raw {
		token, err := ParseToken(t.Symbol, t.Address, t.Decimals)
		if err != nil {
			return nil, fmt.Errorf("incorrect 'tokens[%d]' param in yaml config, error: %w", i, err)
		}
		if !token.IsPlaceholder() {
			addr := token.ContractAddress()
			if prev, dup := seen[addr]; dup {
				return nil, fmt.Errorf("tokens %s and %s share contract %s", prev, token.Symbol, addr.Hex())
			}
			seen[addr] = token.Symbol
		}
		tokens = append(tokens, token)
	}
	return tokens, nil
}

// ParseToken validates one token descriptor. An empty or all-zero address
// yields a placeholder token.
func ParseToken(symbol, address string, decimals int) (domain.Token, error) {
	symbol = strings.TrimSpace(symbol)
	address = strings.TrimSpace(address)
	if symbol == "" {
		return domain.Token{}, fmt.Errorf("symbol is required")
	}
	if address != "" && !common.IsHexAddress(address) {
		return domain.Token{}, fmt.Errorf("%s: invalid address %q", symbol, address)
	}
	if decimals < 0 || decimals > domain.MaxTokenDecimals {
		return domain.Token{}, fmt.Errorf("%s: decimals must be between 0 and %d", symbol, domain.MaxTokenDecimals)
	}
	return domain.Token{Symbol: symbol, Address: address, Decimals: uint8(decimals)}, nil
}

// ValidateRPCURL accepts http(s) and ws(s) endpoints.
func ValidateRPCURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("rpc url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("host is required")
	}
	return nil
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}
