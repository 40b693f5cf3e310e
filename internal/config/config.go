// Package config loads process configuration from the environment. A
// missing or unparsable signing key is a startup failure, never a
// per-request one.
package config

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// Config holds everything the daemon needs at startup.
type Config struct {
	ListenAddr  string
	RedisURL    string
	DatabaseURL string

	// VerifyURL is the absolute /auth/verify URL embedded in QR payloads.
	VerifyURL string

	Network *chaincfg.Params

	TestMode      bool
	TestSessionID string

	PoolFee     float64
	StratumPort int

	SigningKey *ecdsa.PrivateKey
}

// Load reads configuration from the environment, loading a local .env
// file first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ListenAddr:  getEnv("POOLAUTH_LISTEN", ":9000"),
		RedisURL:    os.Getenv("REDIS_URL"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		VerifyURL:   getEnv("POOLAUTH_VERIFY_URL", "http://localhost:9000/auth/verify"),
		PoolFee:     2.0,
		StratumPort: 3333,
	}

	if fee := os.Getenv("POOLAUTH_POOL_FEE"); fee != "" {
		f, err := strconv.ParseFloat(fee, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid POOLAUTH_POOL_FEE: %w", err)
		}
		cfg.PoolFee = f
	}
	if port := os.Getenv("POOLAUTH_STRATUM_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid POOLAUTH_STRATUM_PORT: %w", err)
		}
		cfg.StratumPort = p
	}

	switch getEnv("POOLAUTH_NETWORK", "mainnet") {
	case "mainnet":
		cfg.Network = &chaincfg.MainNetParams
	case "testnet", "testnet3":
		cfg.Network = &chaincfg.TestNet3Params
	case "regtest":
		cfg.Network = &chaincfg.RegressionNetParams
	default:
		return nil, fmt.Errorf("unknown POOLAUTH_NETWORK %q", os.Getenv("POOLAUTH_NETWORK"))
	}

	cfg.TestMode = getEnv("POOLAUTH_TEST_MODE", "false") == "true"
	if cfg.TestMode {
		// Session id convention: test_<yyyymmdd>_<uuid8>, one per process.
		cfg.TestSessionID = fmt.Sprintf("test_%s_%s",
			time.Now().UTC().Format("20060102"),
			uuid.New().String()[:8])
	}

	key, err := loadSigningKey()
	if err != nil {
		return nil, err
	}
	cfg.SigningKey = key

	return cfg, nil
}

// loadSigningKey reads the ES256 signing key from POOLAUTH_SIGNING_KEY
// (inline PEM) or POOLAUTH_SIGNING_KEY_FILE. The key is mandatory.
func loadSigningKey() (*ecdsa.PrivateKey, error) {
	pemData := os.Getenv("POOLAUTH_SIGNING_KEY")
	if pemData == "" {
		path := os.Getenv("POOLAUTH_SIGNING_KEY_FILE")
		if path == "" {
			return nil, errors.New("signing key unavailable: set POOLAUTH_SIGNING_KEY or POOLAUTH_SIGNING_KEY_FILE")
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("signing key unavailable: %w", err)
		}
		pemData = string(data)
	}

	return ParseSigningKey([]byte(pemData))
}

// ParseSigningKey parses a PEM-encoded ECDSA private key in either SEC1
// or PKCS#8 form.
func ParseSigningKey(pemData []byte) (*ecdsa.PrivateKey, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, errors.New("signing key unavailable: no PEM block found")
	}

	if key, err := x509.ParseECPrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("signing key unavailable: %w", err)
	}
	key, ok := parsed.(*ecdsa.PrivateKey)
	if !ok {
		return nil, errors.New("signing key unavailable: not an ECDSA key")
	}
	return key, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
