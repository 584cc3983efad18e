// Package providers defines the external-collaborator contracts for the
// analyzer's provider fan-out (verification, labels, metadata, proxy
// detection, protocol registry, token security) and the concurrent,
// time-budgeted policy that drives them.
package providers

import (
	"context"

	"github.com/txguard/scanner/internal/chain"
)

// VerificationResult is what the verification provider returns for a
// contract address; a nil result means the address has no verified source.
type VerificationResult struct {
	Verified bool
	Name     string
	ABI      string
}

// VerificationProvider confirms contract source verification and supplies
// the ABI JSON that feeds Stage C of the decoder.
type VerificationProvider interface {
	Verify(ctx context.Context, ch chain.Chain, address string) (*VerificationResult, error)
}

// LabelsProvider returns phishing/sanction tags attached to an address.
type LabelsProvider interface {
	Labels(ctx context.Context, ch chain.Chain, address string) ([]string, error)
}

// MetadataResult is the etherscan-style age/activity/creator summary.
type MetadataResult struct {
	AgeDays *int
	TxCount *int64
	Creator string
}

// MetadataProvider reports contract age and activity; its absence is
// surfaced as "metadata unavailable" rather than an error.
type MetadataProvider interface {
	Metadata(ctx context.Context, ch chain.Chain, address string) (*MetadataResult, error)
}

// ProxyType closed-enumerates the proxy patterns proxy-detect recognizes.
type ProxyType string

const (
	ProxyEIP1967 ProxyType = "eip1967"
	ProxyUUPS    ProxyType = "uups"
	ProxyBeacon  ProxyType = "beacon"
	ProxyMinimal ProxyType = "minimal"
	ProxyUnknown ProxyType = "unknown"
)

// ProxyDetectResult reports whether an address is a proxy and, if so, the
// implementation/beacon addresses it points at.
type ProxyDetectResult struct {
	IsProxy        bool
	ProxyType      ProxyType
	Implementation string
	Beacon         string
}

// ProxyDetectProvider inspects an address's storage slots for known proxy
// patterns (EIP-1967, UUPS, beacon, minimal/EIP-1167 clone).
type ProxyDetectProvider interface {
	DetectProxy(ctx context.Context, ch chain.Chain, address string) (*ProxyDetectResult, error)
}

// ProtocolMatch is the result of the two-tier protocol-registry lookup.
type ProtocolMatch struct {
	Name string
	Slug string
}

// ProtocolRegistryProvider performs the closed canonical-address lookup
// first, falling back to a name-based heuristic over implementation/proxy
// names when the address isn't in the built-in table.
type ProtocolRegistryProvider interface {
	LookupByAddress(ctx context.Context, ch chain.Chain, address string) (*ProtocolMatch, error)
	LookupByName(ctx context.Context, name string) (*ProtocolMatch, error)
}

// TokenSecurityResult mirrors the boolean-flag contract token-security
// providers (e.g. GoPlus-style scanners) return; each true flag yields its
// own finding code in the analyzer.
type TokenSecurityResult struct {
	IsHoneypot            bool
	IsMintable            bool
	CanTakeBackOwnership  bool
	HiddenOwner           bool
	Selfdestruct          bool
	IsBlacklisted         bool
	OwnerCanChangeBalance bool
	BuyTaxBps             int
	SellTaxBps            int
}

// TokenSecurityProvider reports token-contract security flags.
type TokenSecurityProvider interface {
	TokenSecurity(ctx context.Context, ch chain.Chain, address string) (*TokenSecurityResult, error)
}

// ImplementationProvider is the shape shared by impl-sourcify and
// impl-protocol: secondary lookups run against contract.implementation
// once proxy-detect has resolved it.
type ImplementationProvider interface {
	Implementation(ctx context.Context, ch chain.Chain, address string) (*VerificationResult, error)
}
