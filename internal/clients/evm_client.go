package clients

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/walletdash/pkg/retrier"
)

// Signer private key with its derived account address.
type Signer struct {
	Key     *ecdsa.PrivateKey
	Address common.Address
}

// ParsePrivateKey parses a hex encoded secp256k1 key, with or without 0x prefix.
func ParsePrivateKey(privateKeyHex string) (Signer, error) {
	key := strings.TrimSpace(privateKeyHex)
	if len(key) >= 2 && (key[:2] == "0x" || key[:2] == "0X") {
		key = key[2:]
	}
	if key == "" {
		return Signer{}, errors.New("empty private key")
	}

	privateKey, err := crypto.HexToECDSA(key)
	if err != nil {
		return Signer{}, errors.Wrap(err, "parse private key")
	}

	pub, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return Signer{}, errors.New("error casting public key to ECDSA")
	}

	return Signer{Key: privateKey, Address: crypto.PubkeyToAddress(*pub)}, nil
}

// ParsePrivateKeys parses a comma separated key list, skipping blanks and duplicates.
func ParsePrivateKeys(list string) ([]Signer, error) {
	var signers []Signer
	seen := make(map[common.Address]struct{})
	for i, raw := range strings.Split(list, ",") {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		s, err := ParsePrivateKey(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "key #%d", i)
		}
		if _, dup := seen[s.Address]; dup {
			continue
		}
		seen[s.Address] = struct{}{}
		signers = append(signers, s)
	}
	return signers, nil
}

// LoadKeystore decrypts a go-ethereum / web3 secret storage JSON file.
func LoadKeystore(path, password string) (Signer, error) {
	keyJSON, err := os.ReadFile(path)
	if err != nil {
		return Signer{}, errors.Wrapf(err, "read keystore %s", path)
	}
	key, err := keystore.DecryptKey(keyJSON, password)
	if err != nil {
		return Signer{}, errors.Wrapf(err, "decrypt keystore %s", path)
	}
	return Signer{Key: key.PrivateKey, Address: key.Address}, nil
}

// DialEVM connects to a JSON-RPC endpoint and probes its chain id,
// retrying transient failures with backoff.
func DialEVM(ctx context.Context, url string, logger *zap.Logger) (*ethclient.Client, *big.Int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(url) == "" {
		return nil, nil, errors.New("rpc url is empty")
	}

	r := retrier.New(
		retrier.WithRetryIf(isTransientDialError),
		retrier.WithOnRetry(func(attempt int, err error, wait time.Duration) {
			logger.Warn("rpc dial failed, retrying",
				zap.String("rpc", url),
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(err))
		}),
	)

	client, err := retrier.DoWithData(r, ctx, func(ctx context.Context) (*ethclient.Client, error) {
		return ethclient.DialContext(ctx, url)
	})
	if err != nil {
		return nil, nil, errors.Wrapf(err, "dial %s", url)
	}

	chainID, err := retrier.DoWithData(r, ctx, func(ctx context.Context) (*big.Int, error) {
		return client.ChainID(ctx)
	})
	if err != nil {
		client.Close()
		return nil, nil, errors.Wrapf(err, "chain id of %s", url)
	}

	return client, chainID, nil
}

// isTransientDialError rejects failures that another attempt cannot fix.
func isTransientDialError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return !strings.Contains(err.Error(), "no known transport")
}
