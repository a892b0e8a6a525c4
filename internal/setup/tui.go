package setup

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/walletdash/config"
)

// GeneratedConfigFile file written by the wizard.
const GeneratedConfigFile = "config.gen.yaml"

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

type networkPreset struct {
	name    string
	chainID uint64
	rpcURL  string
}

var presets = map[string]networkPreset{
	"sepolia":  {name: "sepolia", chainID: 11155111, rpcURL: "https://ethereum-sepolia-rpc.publicnode.com"},
	"ethereum": {name: "ethereum", chainID: 1, rpcURL: "https://ethereum-rpc.publicnode.com"},
	"polygon":  {name: "polygon", chainID: 137, rpcURL: "https://polygon-rpc.com"},
	"local":    {name: "local", chainID: 31337, rpcURL: "http://127.0.0.1:8545"},
}

// answers collected by the wizard.
type answers struct {
	preset         string
	networkName    string
	rpcURL         string
	chainID        string
	addr           string
	keySource      string
	keysEnv        string
	keystore       string
	passwordEnv    string
	tokens         string
	receiptTimeout string
	allowRemote    bool
}

// RunTUI launches the terminal configuration wizard and returns the path of the written config.
func RunTUI() (string, error) {
	a := answers{
		preset:         "sepolia",
		addr:           config.DefaultAddr,
		keySource:      "env",
		keysEnv:        config.DefaultPrivateKeysEnv,
		passwordEnv:    config.DefaultKeystorePasswordEnv,
		receiptTimeout: config.DefaultReceiptTimeout.String(),
	}
	var confirm bool

	header := func(step string) {
		fmt.Print("\033[H\033[2J")
		fmt.Println(headerStyle.Render("WALLETDASH CONFIG WIZARD"))
		fmt.Println(stepStyle.Render(step))
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("WALLETDASH CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Point the dashboard at a chain and a wallet.\n"))

	fmt.Println(stepStyle.Render("STEP 1: NETWORK"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Choose the network").
				Options(
					huh.NewOption("Sepolia testnet", "sepolia"),
					huh.NewOption("Ethereum mainnet", "ethereum"),
					huh.NewOption("Polygon", "polygon"),
					huh.NewOption("Local node (anvil/hardhat)", "local"),
					huh.NewOption("Custom", "custom"),
				).
				Value(&a.preset),
		),
	).Run()
	if err != nil {
		return "", err
	}

	if p, ok := presets[a.preset]; ok {
		a.networkName = p.name
		a.rpcURL = p.rpcURL
		a.chainID = strconv.FormatUint(p.chainID, 10)
	}

	header("STEP 2: RPC ENDPOINT")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Network name").
				Value(&a.networkName).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("name cannot be empty")
					}
					return nil
				}),
			huh.NewInput().
				Title("RPC URL").
				Description("http(s) or ws(s) endpoint").
				Value(&a.rpcURL).
				Validate(config.ValidateRPCURL),
			huh.NewInput().
				Title("Chain ID").
				Description("Leave empty to read it from the node").
				Value(&a.chainID).
				Validate(validateChainID),
		),
	).Run()
	if err != nil {
		return "", err
	}

	header("STEP 3: WALLET")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Where are the signing keys?").
				Options(
					huh.NewOption("Hex private keys in an environment variable", "env"),
					huh.NewOption("Encrypted keystore file", "keystore"),
				).
				Value(&a.keySource),
		),
	).Run()
	if err != nil {
		return "", err
	}

	var walletFields []huh.Field
	if a.keySource == "keystore" {
		walletFields = append(walletFields,
			huh.NewInput().
				Title("Keystore file").
				Value(&a.keystore).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("keystore path cannot be empty")
					}
					return nil
				}),
			huh.NewInput().
				Title("Password environment variable").
				Value(&a.passwordEnv),
		)
	} else {
		walletFields = append(walletFields,
			huh.NewInput().
				Title("Private keys environment variable").
				Description("Comma separated hex keys are read from it at startup").
				Value(&a.keysEnv),
		)
	}
	if err = huh.NewForm(huh.NewGroup(walletFields...)).Run(); err != nil {
		return "", err
	}

	header("STEP 4: TOKENS & DASHBOARD")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewText().
				Title("ERC-20 tokens").
				Description("One per line: SYMBOL:ADDRESS:DECIMALS. Empty keeps the default placeholders").
				Value(&a.tokens).
				Validate(func(s string) error {
					_, err := parseTokenList(s)
					return err
				}),
			huh.NewInput().
				Title("Dashboard listen address").
				Value(&a.addr),
			huh.NewInput().
				Title("Receipt timeout").
				Description("Duration string (e.g. 90s, 2m)").
				Value(&a.receiptTimeout).
				Validate(validateTimeout),
		),
	).Run()
	if err != nil {
		return "", err
	}

	if !config.IsLoopbackAddr(strings.TrimSpace(a.addr)) {
		header("STEP 5: REMOTE ACCESS")
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title(fmt.Sprintf("%s is reachable from other hosts. Expose the wallet there?", a.addr)).
					Description("Anyone who can reach it can sign transfers with the loaded keys").
					Affirmative("Yes, expose it").
					Negative("No, listen on " + config.DefaultAddr).
					Value(&a.allowRemote),
			),
		).Run()
		if err != nil {
			return "", err
		}
		if !a.allowRemote {
			a.addr = config.DefaultAddr
		}
	}

	header("FINAL CONFIRMATION")
	summary := fmt.Sprintf(
		"Network: %s (%s)\nRPC: %s\nKeys: %s\nDashboard: %s\n",
		a.networkName, a.chainID, a.rpcURL, a.keySource, a.addr,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save and start").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return "", err
	}
	if !confirm {
		return "", fmt.Errorf("setup cancelled by user")
	}

	cfgTmp, err := buildConfig(a)
	if err != nil {
		return "", err
	}
	if err := writeConfig(GeneratedConfigFile, cfgTmp); err != nil {
		return "", err
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s\nStarting dashboard...", GeneratedConfigFile)))
	time.Sleep(1500 * time.Millisecond)
	return GeneratedConfigFile, nil
}

func buildConfig(a answers) (config.ConfigTmp, error) {
	tokens, err := parseTokenList(a.tokens)
	if err != nil {
		return config.ConfigTmp{}, err
	}
	timeout, err := time.ParseDuration(strings.TrimSpace(a.receiptTimeout))
	if err != nil {
		return config.ConfigTmp{}, fmt.Errorf("receipt timeout: %w", err)
	}

	network := config.NetworkTmp{Name: strings.TrimSpace(a.networkName), RPCURL: strings.TrimSpace(a.rpcURL)}
	if id := strings.TrimSpace(a.chainID); id != "" {
		network.ChainID, err = strconv.ParseUint(id, 10, 64)
		if err != nil {
			return config.ConfigTmp{}, fmt.Errorf("chain id: %w", err)
		}
	}

	cfgTmp := config.ConfigTmp{
		Dashboard:      config.DashboardTmp{Addr: strings.TrimSpace(a.addr), AllowRemote: a.allowRemote},
		Networks:       []config.NetworkTmp{network},
		DefaultNetwork: network.Name,
		Tokens:         tokens,
		ReceiptTimeout: timeout,
	}
	if a.keySource == "keystore" {
		cfgTmp.Wallet = config.WalletTmp{Keystore: strings.TrimSpace(a.keystore), KeystorePasswordEnv: strings.TrimSpace(a.passwordEnv)}
	} else {
		cfgTmp.Wallet = config.WalletTmp{PrivateKeysEnv: strings.TrimSpace(a.keysEnv)}
	}
	return cfgTmp, nil
}

func writeConfig(filename string, cfgTmp config.ConfigTmp) error {
	data, err := yaml.Marshal(cfgTmp)
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}
	if _, err := config.Parse(data); err != nil {
		return fmt.Errorf("generated config is invalid: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o600); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}
	return nil
}

// parseTokenList reads SYMBOL:ADDRESS:DECIMALS lines.
func parseTokenList(s string) ([]config.TokenTmp, error) {
	var tokens []config.TokenTmp
	for i, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.Split(line, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("line %d: expected SYMBOL:ADDRESS:DECIMALS", i+1)
		}
		decimals, err := strconv.Atoi(strings.TrimSpace(parts[2]))
		if err != nil {
			return nil, fmt.Errorf("line %d: decimals must be a number", i+1)
		}
		if _, err := config.ParseToken(parts[0], parts[1], decimals); err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		tokens = append(tokens, config.TokenTmp{
			Symbol:   strings.TrimSpace(parts[0]),
			Address:  strings.TrimSpace(parts[1]),
			Decimals: decimals,
		})
	}
	return tokens, nil
}

func validateChainID(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return fmt.Errorf("must be a positive integer")
	}
	return nil
}

func validateTimeout(s string) error {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("must be a duration like 90s or 2m")
	}
	if d <= 0 {
		return fmt.Errorf("must be positive")
	}
	return nil
}
