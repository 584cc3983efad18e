package evmtypes

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/txguard/scanner/internal/chain"
)

// Authorization is one entry of an EIP-7702-style authorizationList carried
// by a wallet-shaped calldata payload.
type Authorization struct {
	Address string
	ChainID int64
	Nonce   uint64
}

// CalldataInput is the validated, normalized candidate transaction the rest
// of the pipeline operates on. `To` and `Data` are validated before any
// decoding is attempted; `Value` is parsed as an arbitrary-precision
// integer.
type CalldataInput struct {
	To    common.Address
	From  *common.Address
	Data  []byte
	Value *big.Int
	Chain chain.Chain

	AuthorizationList []Authorization
}

// NewCalldataInput validates and normalizes raw fields into a CalldataInput.
// to is required; data, from, and value are optional ("" / nil treated as
// absent, zero respectively).
func NewCalldataInput(to, from, data, value, chainID string) (*CalldataInput, error) {
	if strings.TrimSpace(to) == "" {
		return nil, fmt.Errorf("calldata: \"to\" is required")
	}
	if !common.IsHexAddress(to) {
		return nil, fmt.Errorf("calldata: %q is not a valid address", to)
	}

	ci := &CalldataInput{
		To: common.HexToAddress(to),
	}

	if from != "" {
		if !common.IsHexAddress(from) {
			return nil, fmt.Errorf("calldata: %q is not a valid address", from)
		}
		f := common.HexToAddress(from)
		ci.From = &f
	}

	dataBytes, err := decodeCalldataHex(data)
	if err != nil {
		return nil, fmt.Errorf("calldata: %w", err)
	}
	ci.Data = dataBytes

	v, err := parseBigInt(value)
	if err != nil {
		return nil, fmt.Errorf("calldata: invalid value %q: %w", value, err)
	}
	ci.Value = v

	if chainID != "" {
		c, err := chain.Parse(chainID)
		if err != nil {
			return nil, fmt.Errorf("calldata: %w", err)
		}
		ci.Chain = c
	}

	return ci, nil
}

// decodeCalldataHex accepts "", "0x", and 0x-prefixed or bare hex strings.
func decodeCalldataHex(data string) ([]byte, error) {
	if data == "" || data == "0x" {
		return nil, nil
	}
	if !strings.HasPrefix(data, "0x") {
		data = "0x" + data
	}
	b, err := hexutil.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("malformed hex calldata: %w", err)
	}
	return b, nil
}

// parseBigInt accepts a decimal string, a 0x-prefixed hex quantity, or "".
func parseBigInt(s string) (*big.Int, error) {
	if s == "" {
		return big.NewInt(0), nil
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err := hexutil.DecodeBig(s)
		if err != nil {
			return nil, err
		}
		return v, nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("not an integer")
	}
	return v, nil
}

// Selector returns the 4-byte selector of Data, or nil if Data is too
// short to contain one.
func (c *CalldataInput) Selector() []byte {
	if len(c.Data) < 4 {
		return nil
	}
	return c.Data[:4]
}

// IsPlainTransfer reports whether this input is a bare ETH transfer: empty
// calldata and a non-zero value.
func (c *CalldataInput) IsPlainTransfer() bool {
	return len(c.Data) == 0 && c.Value != nil && c.Value.Sign() > 0
}
