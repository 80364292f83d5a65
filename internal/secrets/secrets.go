// Package secrets resolves the Token Codec's signing secret, optionally
// from Vault, grounded in internal/security's vaultAPI.KVv2(...).Get pattern.
package secrets

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"strings"

	"github.com/hashicorp/vault/api"
	"golang.org/x/crypto/hkdf"
)

// VaultRef is a parsed "vault://mount/path#field" secret reference.
type VaultRef struct {
	Mount string
	Path  string
	Field string
}

// ParseVaultRef parses a raw SECRET_KEY value that points at Vault. ok is
// false for a plain (non-Vault) secret value, which callers should use
// as-is.
func ParseVaultRef(raw string) (ref VaultRef, ok bool) {
	if !strings.HasPrefix(raw, "vault://") {
		return VaultRef{}, false
	}
	rest := strings.TrimPrefix(raw, "vault://")
	pathPart, field, hasField := strings.Cut(rest, "#")
	if !hasField {
		field = "value"
	}
	mount, path, hasMount := strings.Cut(pathPart, "/")
	if !hasMount {
		return VaultRef{}, false
	}
	return VaultRef{Mount: mount, Path: path, Field: field}, true
}

// Resolver resolves a raw SECRET_KEY configuration value (plain or
// vault://...) into the bytes the Token Codec signs with.
type Resolver struct {
	vault *api.Client
}

// NewResolver builds a Resolver. vaultAddr may be empty if no Vault-backed
// secret will ever be resolved; the client is then never dialed.
func NewResolver(vaultAddr string) (*Resolver, error) {
	if vaultAddr == "" {
		return &Resolver{}, nil
	}
	cfg := api.DefaultConfig()
	cfg.Address = vaultAddr
	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("secrets: new vault client: %w", err)
	}
	return &Resolver{vault: client}, nil
}

// Resolve returns the signing secret for raw, fetching from Vault when raw
// is a vault:// reference. An empty raw value is a startup fault the caller
// must check for (spec: "missing secret -> fail startup").
func (r *Resolver) Resolve(ctx context.Context, raw string) ([]byte, error) {
	if raw == "" {
		return nil, fmt.Errorf("secrets: SECRET_KEY is not configured")
	}

	ref, isVault := ParseVaultRef(raw)
	if !isVault {
		return []byte(raw), nil
	}
	if r.vault == nil {
		return nil, fmt.Errorf("secrets: SECRET_KEY references vault but no vault address configured")
	}

	secret, err := r.vault.KVv2(ref.Mount).Get(ctx, ref.Path)
	if err != nil {
		return nil, fmt.Errorf("secrets: vault read %s/%s: %w", ref.Mount, ref.Path, err)
	}
	value, ok := secret.Data[ref.Field].(string)
	if !ok {
		return nil, fmt.Errorf("secrets: vault secret %s/%s missing field %q", ref.Mount, ref.Path, ref.Field)
	}
	return []byte(value), nil
}

// DeriveKey stretches a raw secret into a fixed-length signing key via
// HKDF-SHA256, so an operator-supplied passphrase of any length produces a
// uniformly distributed HMAC key rather than being used directly.
func DeriveKey(raw []byte, info string, length int) ([]byte, error) {
	h := hkdf.New(sha256.New, raw, nil, []byte(info))
	out := make([]byte, length)
	if _, err := io.ReadFull(h, out); err != nil {
		return nil, fmt.Errorf("secrets: derive key: %w", err)
	}
	return out, nil
}
