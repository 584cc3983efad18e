package providers

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/txguard/scanner/internal/chain"
)

// tracer emits one span per scheduled provider call. No SDK/exporter is
// installed here, so this is a no-op tracer unless the embedding binary
// configures one via otel.SetTracerProvider.
var tracer = otel.Tracer("github.com/txguard/scanner/internal/providers")

// Policy selects which providers run and the budget they run under.
type Policy string

const (
	// PolicyDefault runs every provider with a generous per-call timeout and
	// no overall budget.
	PolicyDefault Policy = "default"
	// PolicyWallet is the tight, interactive-signing budget: a smaller
	// provider set and an overall 3s deadline on top of per-provider ones.
	PolicyWallet Policy = "wallet"
)

// name is the closed set of provider identifiers the fan-out schedules.
type name string

const (
	nameRPC           name = "rpc"
	nameSourcify      name = "sourcify"
	nameLabels        name = "labels"
	nameEtherscan     name = "etherscan"
	nameProxyDetect   name = "proxy-detect"
	nameProtocol      name = "protocol-registry"
	nameImplSourcify  name = "impl-sourcify"
	nameImplProtocol  name = "impl-protocol"
	nameTokenSecurity name = "token-security"
)

// walletBudget is the overall deadline spec §4.3 assigns the wallet policy.
const walletBudget = 3000 * time.Millisecond

// timeouts maps (policy, provider) to its per-call timeout. A provider
// absent from a policy's row is not scheduled under that policy.
var timeouts = map[Policy]map[name]time.Duration{
	PolicyDefault: {
		nameRPC:           10000 * time.Millisecond,
		nameSourcify:      10000 * time.Millisecond,
		nameLabels:        10000 * time.Millisecond,
		nameEtherscan:     10000 * time.Millisecond,
		nameProxyDetect:   10000 * time.Millisecond,
		nameProtocol:      10000 * time.Millisecond,
		nameImplSourcify:  10000 * time.Millisecond,
		nameImplProtocol:  10000 * time.Millisecond,
		nameTokenSecurity: 10000 * time.Millisecond,
	},
	PolicyWallet: {
		nameRPC:          800 * time.Millisecond,
		nameSourcify:     1600 * time.Millisecond,
		nameProxyDetect:  800 * time.Millisecond,
		nameProtocol:     250 * time.Millisecond,
		nameImplSourcify: 1000 * time.Millisecond,
		nameImplProtocol: 200 * time.Millisecond,
	},
}

// ProgressEvent is an optional observability sink event. A scheduled
// provider emits "started" and then one outcome event; a skipped provider
// emits a single "skipped" event.
type ProgressEvent struct {
	Provider string
	Status   string // "started", "ok", "error", "skipped", "timeout"
	Err      error
}

// ProgressSink receives fan-out progress events; nil is a valid no-op sink.
type ProgressSink func(ProgressEvent)

func (s ProgressSink) emit(ev ProgressEvent) {
	if s != nil {
		s(ev)
	}
}

// Set bundles every provider the fan-out may call. A nil field means that
// provider isn't wired in this deployment and is always skipped.
type Set struct {
	Verification  VerificationProvider
	Sourcify      VerificationProvider
	Labels        LabelsProvider
	Etherscan     MetadataProvider
	ProxyDetect   ProxyDetectProvider
	Protocol      ProtocolRegistryProvider
	ImplSourcify  ImplementationProvider
	ImplProtocol  ImplementationProvider
	TokenSecurity TokenSecurityProvider
}

// Results collects whatever each scheduled provider returned; a nil field
// means the provider was disabled, skipped, timed out, or errored.
type Results struct {
	Verification  *VerificationResult
	Sourcify      *VerificationResult
	Labels        []string
	Metadata      *MetadataResult
	ProxyDetect   *ProxyDetectResult
	Protocol      *ProtocolMatch
	ImplSourcify  *VerificationResult
	ImplProtocol  *VerificationResult
	TokenSecurity *TokenSecurityResult
}

// Run executes the fan-out for policy against address on ch, honoring each
// provider's independent timeout and (for PolicyWallet) the overall budget.
// Every enabled provider is isolated: a failure or timeout in one never
// cancels the others. Results merge in arbitrary completion order; ordering
// for presentation is the analyzer's job, not the fan-out's.
func Run(ctx context.Context, set Set, policy Policy, ch chain.Chain, address string, sink ProgressSink) Results {
	row := timeouts[policy]
	if policy == PolicyWallet {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, walletBudget)
		defer cancel()
	}

	var results Results
	g, gctx := errgroup.WithContext(ctx)

	call := func(n name, enabled bool, fn func(context.Context) error) {
		if !enabled {
			sink.emit(ProgressEvent{Provider: string(n), Status: "skipped"})
			return
		}
		timeout, ok := row[n]
		if !ok {
			sink.emit(ProgressEvent{Provider: string(n), Status: "skipped"})
			return
		}
		g.Go(func() error {
			sink.emit(ProgressEvent{Provider: string(n), Status: "started"})
			callCtx, cancel := context.WithTimeout(gctx, timeout)
			defer cancel()
			spanCtx, span := tracer.Start(callCtx, string(n), trace.WithAttributes(attribute.String("provider", string(n))))
			defer span.End()
			err := fn(spanCtx)
			if err != nil {
				status := "error"
				if callCtx.Err() == context.DeadlineExceeded {
					status = "timeout"
				}
				span.SetStatus(codes.Error, status)
				span.RecordError(err)
				sink.emit(ProgressEvent{Provider: string(n), Status: status, Err: err})
				// A provider failure is isolated: swallow it here so a
				// single slow/broken provider never cancels its siblings
				// via errgroup's shared context.
				return nil
			}
			span.SetStatus(codes.Ok, "")
			sink.emit(ProgressEvent{Provider: string(n), Status: "ok"})
			return nil
		})
	}

	call(nameRPC, set.Verification != nil, func(c context.Context) error {
		r, err := set.Verification.Verify(c, ch, address)
		if err != nil {
			return err
		}
		results.Verification = r
		return nil
	})
	call(nameSourcify, set.Sourcify != nil, func(c context.Context) error {
		r, err := set.Sourcify.Verify(c, ch, address)
		if err != nil {
			return err
		}
		results.Sourcify = r
		return nil
	})
	call(nameLabels, policy == PolicyDefault && set.Labels != nil, func(c context.Context) error {
		r, err := set.Labels.Labels(c, ch, address)
		if err != nil {
			return err
		}
		results.Labels = r
		return nil
	})
	call(nameEtherscan, policy == PolicyDefault && set.Etherscan != nil, func(c context.Context) error {
		r, err := set.Etherscan.Metadata(c, ch, address)
		if err != nil {
			return err
		}
		results.Metadata = r
		return nil
	})
	call(nameProxyDetect, set.ProxyDetect != nil, func(c context.Context) error {
		r, err := set.ProxyDetect.DetectProxy(c, ch, address)
		if err != nil {
			return err
		}
		results.ProxyDetect = r
		return nil
	})
	call(nameProtocol, set.Protocol != nil, func(c context.Context) error {
		r, err := set.Protocol.LookupByAddress(c, ch, address)
		if err != nil {
			return err
		}
		results.Protocol = r
		return nil
	})
	call(nameImplSourcify, set.ImplSourcify != nil, func(c context.Context) error {
		r, err := set.ImplSourcify.Implementation(c, ch, address)
		if err != nil {
			return err
		}
		results.ImplSourcify = r
		return nil
	})
	call(nameImplProtocol, set.ImplProtocol != nil, func(c context.Context) error {
		r, err := set.ImplProtocol.Implementation(c, ch, address)
		if err != nil {
			return err
		}
		results.ImplProtocol = r
		return nil
	})
	call(nameTokenSecurity, policy == PolicyDefault && set.TokenSecurity != nil, func(c context.Context) error {
		r, err := set.TokenSecurity.TokenSecurity(c, ch, address)
		if err != nil {
			return err
		}
		results.TokenSecurity = r
		return nil
	})

	_ = g.Wait()
	return results
}
