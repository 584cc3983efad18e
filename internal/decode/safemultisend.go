package decode

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/txguard/scanner/internal/evmtypes"
)

// Safe MultiSend wire-format limits. These are hard safety bounds on the
// parser itself, independent of what the transaction's own gas limit would
// allow — a crafted batch cannot force unbounded work or memory.
const (
	MultiSendMaxRecords = 250
	MultiSendMaxBytes   = 2_000_000
)

// ErrMultiSendTooLarge marks a batch whose total byte length exceeds
// MultiSendMaxBytes.
var ErrMultiSendTooLarge = errors.New("decode: multisend batch too large")

// MultiSendOp is the per-record operation byte: 0 = CALL, 1 = DELEGATECALL.
type MultiSendOp byte

const (
	MultiSendCall         MultiSendOp = 0
	MultiSendDelegateCall MultiSendOp = 1
)

// MultiSendRecord is one decoded entry of a Safe MultiSend transactions
// blob: [1 byte op][20 bytes to][32 bytes value][32 bytes dataLen][dataLen
// bytes data].
type MultiSendRecord struct {
	Operation MultiSendOp
	To        common.Address
	Value     *big.Int
	Data      []byte
	Call      *evmtypes.DecodedCall
}

// MultiSendResult is the outcome of parsing a MultiSend transactions blob.
// Truncated reports a header/length/size violation that stopped parsing
// before the blob was fully consumed; TooLarge reports that the whole blob
// exceeded MultiSendMaxBytes and was rejected outright.
type MultiSendResult struct {
	Records   []MultiSendRecord
	Truncated bool
	TooLarge  bool
}

// DecodeMultiSend parses a Safe MultiSend `transactions` byte stream,
// recursing the decoder into each record's inner call data (subject to the
// shared recursion bound). It never panics or returns an error for
// malformed input: truncation and size violations are reported as flags on
// the result instead, per the "decoding never throws" principle.
func DecodeMultiSend(ctx DecodeContext, transactions []byte) MultiSendResult {
	if len(transactions) > MultiSendMaxBytes {
		return MultiSendResult{TooLarge: true}
	}

	var result MultiSendResult
	child := ctx.Child()

	offset := 0
	for len(result.Records) < MultiSendMaxRecords {
		if offset >= len(transactions) {
			break
		}
		// Fixed header: 1 + 20 + 32 + 32 = 85 bytes.
		if offset+85 > len(transactions) {
			result.Truncated = true
			break
		}

		op := MultiSendOp(transactions[offset])
		to := common.BytesToAddress(transactions[offset+1 : offset+21])
		value := new(big.Int).SetBytes(transactions[offset+21 : offset+53])

		dataLenBig := new(big.Int).SetBytes(transactions[offset+53 : offset+85])
		if !dataLenBig.IsUint64() || dataLenBig.Uint64() > (1<<53-1) {
			result.Truncated = true
			break
		}
		dataLen := dataLenBig.Uint64()

		recordStart := offset + 85
		recordEnd := recordStart + int(dataLen)
		if dataLen > uint64(len(transactions)) || recordEnd < recordStart || recordEnd > len(transactions) {
			result.Truncated = true
			break
		}

		data := transactions[recordStart:recordEnd]
		record := MultiSendRecord{
			Operation: op,
			To:        to,
			Value:     value,
			Data:      append([]byte(nil), data...),
		}

		if !child.ExceedsLimit() {
			if dc, err := Decode(child, data); err == nil && dc != nil {
				record.Call = dc
			}
		}

		result.Records = append(result.Records, record)
		offset = recordEnd
	}

	if len(result.Records) >= MultiSendMaxRecords && offset < len(transactions) {
		result.Truncated = true
	}

	return result
}

// unpackMultiSendPayload strips the multiSend(bytes) ABI envelope and
// returns the raw transactions blob.
func unpackMultiSendPayload(data []byte) ([]byte, error) {
	args, err := buildArguments([]string{"bytes"})
	if err != nil {
		return nil, err
	}
	vals, err := args.Unpack(data[4:])
	if err != nil || len(vals) != 1 {
		return nil, ErrUnresolvedSelector
	}
	raw, ok := vals[0].([]byte)
	if !ok {
		return nil, ErrUnresolvedSelector
	}
	return raw, nil
}
