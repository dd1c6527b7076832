package event

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/nadscan/tradeledger/internal/domain/model"
)

// Envelope is the wire form events travel in between the subscription
// collaborator and this process. Amounts are decimal strings so that
// 256-bit values survive JSON without precision loss.
type Envelope struct {
	Kind        Kind            `json:"kind"`
	TxHash      string          `json:"tx_hash"`
	LogIndex    int             `json:"log_index"`
	BlockNumber int64           `json:"block_number"`
	BlockTime   time.Time       `json:"block_time"`
	Payload     json.RawMessage `json:"payload"`
}

type marketCreatedPayload struct {
	Creator      string `json:"creator"`
	TokenAddress string `json:"token_address"`
	Name         string `json:"name"`
	Symbol       string `json:"symbol"`
	PoolAddress  string `json:"pool_address,omitempty"`
	TotalSupply  string `json:"total_supply"`
}

type curveTradePayload struct {
	Source       model.TradeSource    `json:"source"`
	Direction    model.TradeDirection `json:"direction"`
	Sender       string               `json:"sender"`
	TokenAddress string               `json:"token_address"`
	AmountIn     string               `json:"amount_in"`
	AmountOut    string               `json:"amount_out"`
}

type aggregatorSwapPayload struct {
	Sender    string `json:"sender"`
	TokenIn   string `json:"token_in"`
	TokenOut  string `json:"token_out"`
	AmountIn  string `json:"amount_in"`
	AmountOut string `json:"amount_out"`
}

type poolSwapPayload struct {
	PoolAddress string `json:"pool_address"`
	Sender      string `json:"sender"`
	Recipient   string `json:"recipient"`
	Amount0     string `json:"amount0"`
	Amount1     string `json:"amount1"`
}

type tokenTransferPayload struct {
	TokenAddress string `json:"token_address"`
	From         string `json:"from"`
	To           string `json:"to"`
	Value        string `json:"value"`
}

// Decode parses one wire envelope into a typed event. Addresses are
// normalized here, at the boundary, so nothing downstream ever compares
// mixed-case addresses.
func Decode(data []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	meta := Meta{
		TxHash:      model.NormalizeAddress(env.TxHash),
		LogIndex:    env.LogIndex,
		BlockNumber: env.BlockNumber,
		BlockTime:   env.BlockTime,
	}

	switch env.Kind {
	case KindMarketCreated:
		var p marketCreatedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.Kind, err)
		}
		supply, err := parseAmount(p.TotalSupply)
		if err != nil {
			return nil, fmt.Errorf("decode %s total_supply: %w", env.Kind, err)
		}
		return &MarketCreated{
			Meta:         meta,
			Creator:      model.NormalizeAddress(p.Creator),
			TokenAddress: model.NormalizeAddress(p.TokenAddress),
			Name:         p.Name,
			Symbol:       p.Symbol,
			PoolAddress:  model.NormalizeAddress(p.PoolAddress),
			TotalSupply:  supply,
		}, nil

	case KindCurveTrade:
		var p curveTradePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.Kind, err)
		}
		amountIn, err := parseAmount(p.AmountIn)
		if err != nil {
			return nil, fmt.Errorf("decode %s amount_in: %w", env.Kind, err)
		}
		amountOut, err := parseAmount(p.AmountOut)
		if err != nil {
			return nil, fmt.Errorf("decode %s amount_out: %w", env.Kind, err)
		}
		return &CurveTrade{
			Meta:         meta,
			Source:       p.Source,
			Direction:    p.Direction,
			Sender:       model.NormalizeAddress(p.Sender),
			TokenAddress: model.NormalizeAddress(p.TokenAddress),
			AmountIn:     amountIn,
			AmountOut:    amountOut,
		}, nil

	case KindAggregatorSwap:
		var p aggregatorSwapPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.Kind, err)
		}
		amountIn, err := parseAmount(p.AmountIn)
		if err != nil {
			return nil, fmt.Errorf("decode %s amount_in: %w", env.Kind, err)
		}
		amountOut, err := parseAmount(p.AmountOut)
		if err != nil {
			return nil, fmt.Errorf("decode %s amount_out: %w", env.Kind, err)
		}
		return &AggregatorSwap{
			Meta:      meta,
			Sender:    model.NormalizeAddress(p.Sender),
			TokenIn:   model.NormalizeAddress(p.TokenIn),
			TokenOut:  model.NormalizeAddress(p.TokenOut),
			AmountIn:  amountIn,
			AmountOut: amountOut,
		}, nil

	case KindPoolSwap:
		var p poolSwapPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.Kind, err)
		}
		amount0, err := parseAmount(p.Amount0)
		if err != nil {
			return nil, fmt.Errorf("decode %s amount0: %w", env.Kind, err)
		}
		amount1, err := parseAmount(p.Amount1)
		if err != nil {
			return nil, fmt.Errorf("decode %s amount1: %w", env.Kind, err)
		}
		return &PoolSwap{
			Meta:        meta,
			PoolAddress: model.NormalizeAddress(p.PoolAddress),
			Sender:      model.NormalizeAddress(p.Sender),
			Recipient:   model.NormalizeAddress(p.Recipient),
			Amount0:     amount0,
			Amount1:     amount1,
		}, nil

	case KindTokenTransfer:
		var p tokenTransferPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.Kind, err)
		}
		value, err := parseAmount(p.Value)
		if err != nil {
			return nil, fmt.Errorf("decode %s value: %w", env.Kind, err)
		}
		return &TokenTransfer{
			Meta:         meta,
			TokenAddress: model.NormalizeAddress(p.TokenAddress),
			From:         model.NormalizeAddress(p.From),
			To:           model.NormalizeAddress(p.To),
			Value:        value,
		}, nil

	default:
		return nil, fmt.Errorf("decode envelope: unknown kind %q", env.Kind)
	}
}

// Encode serializes a typed event into its wire envelope.
func Encode(ev Event) ([]byte, error) {
	var (
		payload any
		meta    Meta
	)

	switch e := ev.(type) {
	case *MarketCreated:
		meta = e.Meta
		payload = marketCreatedPayload{
			Creator:      e.Creator,
			TokenAddress: e.TokenAddress,
			Name:         e.Name,
			Symbol:       e.Symbol,
			PoolAddress:  e.PoolAddress,
			TotalSupply:  formatAmount(e.TotalSupply),
		}
	case *CurveTrade:
		meta = e.Meta
		payload = curveTradePayload{
			Source:       e.Source,
			Direction:    e.Direction,
			Sender:       e.Sender,
			TokenAddress: e.TokenAddress,
			AmountIn:     formatAmount(e.AmountIn),
			AmountOut:    formatAmount(e.AmountOut),
		}
	case *AggregatorSwap:
		meta = e.Meta
		payload = aggregatorSwapPayload{
			Sender:    e.Sender,
			TokenIn:   e.TokenIn,
			TokenOut:  e.TokenOut,
			AmountIn:  formatAmount(e.AmountIn),
			AmountOut: formatAmount(e.AmountOut),
		}
	case *PoolSwap:
		meta = e.Meta
		payload = poolSwapPayload{
			PoolAddress: e.PoolAddress,
			Sender:      e.Sender,
			Recipient:   e.Recipient,
			Amount0:     formatAmount(e.Amount0),
			Amount1:     formatAmount(e.Amount1),
		}
	case *TokenTransfer:
		meta = e.Meta
		payload = tokenTransferPayload{
			TokenAddress: e.TokenAddress,
			From:         e.From,
			To:           e.To,
			Value:        formatAmount(e.Value),
		}
	default:
		return nil, fmt.Errorf("encode event: unknown type %T", ev)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", ev.Kind(), err)
	}
	return json.Marshal(Envelope{
		Kind:        ev.Kind(),
		TxHash:      meta.TxHash,
		LogIndex:    meta.LogIndex,
		BlockNumber: meta.BlockNumber,
		BlockTime:   meta.BlockTime,
		Payload:     raw,
	})
}

func parseAmount(s string) (*big.Int, error) {
	if s == "" {
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid decimal amount %q", s)
	}
	return v, nil
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
