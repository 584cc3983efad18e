// Package intent renders a DecodedCall into a single English sentence
// describing what a transaction does, using a closed table of templates
// keyed by (standard, functionName) plus a handful of predicate-gated
// special cases (plain ETH transfer, Universal Router command plans).
package intent

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/txguard/scanner/internal/evmtypes"
)

// TokenMetadata is looked up by address to render amount-with-token
// arguments ("100.5 USDC" instead of a raw integer). A miss degrades to
// the raw decimal amount.
type TokenMetadata struct {
	Symbol   string
	Decimals int
}

// TokenLookup resolves known ERC-20 metadata by address. The caller of
// Build (via analyzer.Analyze's tokens argument) supplies it.
type TokenLookup interface {
	Token(address string) (TokenMetadata, bool)
}

// renderCtx carries the token lookup plus the contract address a call was
// sent to, which is what amount-with-token formatting keys its lookup on.
type renderCtx struct {
	tokens        TokenLookup
	tokenAddress  string
}

// Build renders call into an intent sentence. input carries the plain
// ETH-transfer special case (empty calldata + nonzero value), which is
// detected before any template is consulted. tokens may be nil, in which
// case amount-with-token arguments fall back to raw decimal rendering.
func Build(input *evmtypes.CalldataInput, call *evmtypes.DecodedCall, tokens TokenLookup) string {
	if input != nil && input.IsPlainTransfer() {
		return fmt.Sprintf("Send %s ETH to %s", formatEther(input.Value), formatAddress(input.To.Hex()))
	}
	if call == nil {
		return ""
	}
	if call.FunctionName == "execute" && len(call.CommandsDecoded) > 0 {
		return renderCommandPlan(call)
	}
	ctx := renderCtx{tokens: tokens}
	if input != nil {
		ctx.tokenAddress = strings.ToLower(input.To.Hex())
	}
	if tpl, ok := lookupTemplate(call); ok {
		return tpl.render(call, ctx)
	}
	if call.Signature != "" {
		return call.Signature
	}
	return call.FunctionName
}

// renderCommandPlan renders a Universal Router execute() call as its
// arrow-joined command labels, e.g. "WRAP_ETH -> V4_SWAP -> SWEEP".
func renderCommandPlan(call *evmtypes.DecodedCall) string {
	labels := make([]string, len(call.CommandsDecoded))
	for i, step := range call.CommandsDecoded {
		labels[i] = step.Command
	}
	return strings.Join(labels, " -> ")
}

// template declares which arguments a given (standard, functionName) call
// reads and how render turns them into a sentence.
type template struct {
	standard     evmtypes.Standard
	functionName string
	predicate    func(call *evmtypes.DecodedCall) bool
	render       func(call *evmtypes.DecodedCall, ctx renderCtx) string
}

var templates []template

func register(t template) {
	templates = append(templates, t)
}

func lookupTemplate(call *evmtypes.DecodedCall) (template, bool) {
	for _, t := range templates {
		if t.standard != call.Standard || t.functionName != call.FunctionName {
			continue
		}
		if t.predicate != nil && !t.predicate(call) {
			continue
		}
		return t, true
	}
	return template{}, false
}

func init() {
	register(template{
		standard: evmtypes.StandardERC20, functionName: "approve",
		render: func(call *evmtypes.DecodedCall, ctx renderCtx) string {
			spender, amount := argAddress(call, "spender"), argInt(call, "amount")
			if isMaxUint256(amount) {
				return fmt.Sprintf("Approve unlimited spending to %s", formatAddress(spender))
			}
			return fmt.Sprintf("Approve %s to spend %s", formatAddress(spender), formatAmount(call, "amount", ctx))
		},
	})
	register(template{
		standard: evmtypes.StandardERC20, functionName: "transfer",
		render: func(call *evmtypes.DecodedCall, ctx renderCtx) string {
			return fmt.Sprintf("Transfer %s to %s", formatAmount(call, "amount", ctx), formatAddress(argAddress(call, "recipient")))
		},
	})
	register(template{
		standard: evmtypes.StandardERC20, functionName: "transferFrom",
		render: func(call *evmtypes.DecodedCall, ctx renderCtx) string {
			return fmt.Sprintf("Transfer %s from %s to %s", formatAmount(call, "amount", ctx),
				formatAddress(argAddress(call, "sender")), formatAddress(argAddress(call, "recipient")))
		},
	})
	register(template{
		standard: evmtypes.StandardEIP2612, functionName: "permit",
		render: func(call *evmtypes.DecodedCall, ctx renderCtx) string {
			value := argInt(call, "value")
			if isMaxUint256(value) {
				return fmt.Sprintf("Sign unlimited permit allowing %s to spend your tokens", formatAddress(argAddress(call, "spender")))
			}
			return fmt.Sprintf("Sign permit allowing %s to spend %s", formatAddress(argAddress(call, "spender")), formatAmount(call, "value", ctx))
		},
	})

	register(template{
		functionName: "safeTransferFrom",
		render: func(call *evmtypes.DecodedCall, ctx renderCtx) string {
			return fmt.Sprintf("Transfer NFT #%s from %s to %s", argInt(call, "tokenId"),
				formatAddress(argAddress(call, "from")), formatAddress(argAddress(call, "to")))
		},
	})
	register(template{
		functionName: "setApprovalForAll",
		render: func(call *evmtypes.DecodedCall, ctx renderCtx) string {
			operator := argAddress(call, "operator")
			if argBool(call, "approved") {
				return fmt.Sprintf("Approve %s to manage all your NFTs in this collection", formatAddress(operator))
			}
			return fmt.Sprintf("Revoke %s's approval to manage your NFTs", formatAddress(operator))
		},
	})

	register(template{
		functionName: "borrow",
		render: func(call *evmtypes.DecodedCall, ctx renderCtx) string {
			return fmt.Sprintf("Borrow %s", formatAmount(call, "amount", ctx))
		},
	})
	register(template{
		functionName: "repay",
		render: func(call *evmtypes.DecodedCall, ctx renderCtx) string {
			return fmt.Sprintf("Repay %s", formatAmount(call, "amount", ctx))
		},
	})
	register(template{
		functionName: "supply",
		render: func(call *evmtypes.DecodedCall, ctx renderCtx) string {
			return fmt.Sprintf("Supply %s", formatAmount(call, "amount", ctx))
		},
	})
	register(template{
		functionName: "withdraw",
		render: func(call *evmtypes.DecodedCall, ctx renderCtx) string {
			if call.Args.Len() == 0 {
				return "Withdraw wrapped ETH"
			}
			return fmt.Sprintf("Withdraw %s", formatAmount(call, "amount", ctx))
		},
	})

	register(template{
		functionName: "swapExactTokensForTokens",
		render:       renderSwap("amountIn", "amountOutMin", "path"),
	})
	register(template{
		functionName: "swapTokensForExactTokens",
		render:       renderSwap("amountInMax", "amountOut", "path"),
	})
	register(template{
		functionName: "swapExactETHForTokens",
		render: func(call *evmtypes.DecodedCall, ctx renderCtx) string {
			return fmt.Sprintf("Swap ETH for tokens via %s", pathSummary(call))
		},
	})
	register(template{
		functionName: "swapETHForExactTokens",
		render: func(call *evmtypes.DecodedCall, ctx renderCtx) string {
			return fmt.Sprintf("Swap ETH for an exact amount of tokens via %s", pathSummary(call))
		},
	})
	register(template{
		functionName: "swapExactTokensForETH",
		render: func(call *evmtypes.DecodedCall, ctx renderCtx) string {
			return fmt.Sprintf("Swap tokens for ETH via %s", pathSummary(call))
		},
	})
	register(template{
		functionName: "swapTokensForExactETH",
		render: func(call *evmtypes.DecodedCall, ctx renderCtx) string {
			return fmt.Sprintf("Swap tokens for an exact amount of ETH via %s", pathSummary(call))
		},
	})

	register(template{
		functionName: "exactInputSingle",
		render: func(call *evmtypes.DecodedCall, ctx renderCtx) string {
			return "Swap tokens (exact input, single pool)"
		},
	})
	register(template{
		functionName: "exactOutputSingle",
		render: func(call *evmtypes.DecodedCall, ctx renderCtx) string {
			return "Swap tokens (exact output, single pool)"
		},
	})
	register(template{
		functionName: "exactInput",
		render: func(call *evmtypes.DecodedCall, ctx renderCtx) string {
			return fmt.Sprintf("Swap tokens (exact input) via %s", v3PathSummary(call))
		},
	})
	register(template{
		functionName: "exactOutput",
		render: func(call *evmtypes.DecodedCall, ctx renderCtx) string {
			return fmt.Sprintf("Swap tokens (exact output) via %s", v3PathSummary(call))
		},
	})

	register(template{
		functionName: "permit",
		predicate:    func(call *evmtypes.DecodedCall) bool { return call.Standard != evmtypes.StandardEIP2612 },
		render: func(call *evmtypes.DecodedCall, ctx renderCtx) string {
			return "Sign Permit2 approval"
		},
	})
	register(template{
		functionName: "permitTransferFrom",
		render: func(call *evmtypes.DecodedCall, ctx renderCtx) string {
			return "Sign Permit2 transfer authorization"
		},
	})
}

func renderSwap(inName, outName, pathName string) func(*evmtypes.DecodedCall, renderCtx) string {
	return func(call *evmtypes.DecodedCall, ctx renderCtx) string {
		return fmt.Sprintf("Swap via %s", pathSummary(call))
	}
}

func pathSummary(call *evmtypes.DecodedCall) string {
	path, ok := call.Args.ByName("path")
	if !ok || path.Kind != evmtypes.KindList || len(path.List) < 2 {
		return "router"
	}
	first := path.List[0]
	last := path.List[len(path.List)-1]
	return fmt.Sprintf("%s -> %s", formatAddress(first.Addr), formatAddress(last.Addr))
}

func v3PathSummary(call *evmtypes.DecodedCall) string {
	return "an encoded V3 route"
}

func argAddress(call *evmtypes.DecodedCall, name string) string {
	v, ok := call.Args.ByName(name)
	if !ok || v.Kind != evmtypes.KindAddress {
		return ""
	}
	return v.Addr
}

func argBool(call *evmtypes.DecodedCall, name string) bool {
	v, ok := call.Args.ByName(name)
	return ok && v.Scalar == "true"
}

func argInt(call *evmtypes.DecodedCall, name string) string {
	v, ok := call.Args.ByName(name)
	if !ok {
		return "0"
	}
	return v.Scalar
}

func isMaxUint256(decimal string) bool {
	v, ok := new(big.Int).SetString(decimal, 10)
	if !ok {
		return false
	}
	max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	return v.Cmp(max) == 0
}

func formatAddress(addr string) string {
	return strings.ToLower(addr)
}

func formatAmount(call *evmtypes.DecodedCall, argName string, ctx renderCtx) string {
	raw := argInt(call, argName)
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return raw
	}
	if ctx.tokens != nil && ctx.tokenAddress != "" {
		if meta, ok := ctx.tokens.Token(ctx.tokenAddress); ok {
			return fmt.Sprintf("%s %s", formatDecimal(amount, meta.Decimals), meta.Symbol)
		}
	}
	return amount.String()
}

func formatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return formatDecimal(wei, 18)
}

// formatDecimal renders amount (an integer in the token's base unit) as a
// decimal string with decimals fractional digits, trimming trailing zeros.
func formatDecimal(amount *big.Int, decimals int) string {
	if decimals <= 0 {
		return amount.String()
	}
	neg := amount.Sign() < 0
	abs := new(big.Int).Abs(amount)
	divisor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole := new(big.Int).Div(abs, divisor)
	frac := new(big.Int).Mod(abs, divisor)

	fracStr := fmt.Sprintf("%0*s", decimals, frac.String())
	fracStr = strings.TrimRight(fracStr, "0")

	out := whole.String()
	if fracStr != "" {
		out = out + "." + fracStr
	}
	if neg {
		out = "-" + out
	}
	return out
}
