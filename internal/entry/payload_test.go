package entry

import (
	"strings"
	"testing"

	"github.com/traderadar/backend/internal/apperr"
)

func TestNormalizeAddress(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{in: "0x1", want: "0x" + strings.Repeat("0", 63) + "1", ok: true},
		{in: " 0XABC ", want: "0x" + strings.Repeat("0", 61) + "abc", ok: true},
		{in: "0x" + strings.Repeat("f", 64), want: "0x" + strings.Repeat("f", 64), ok: true},
		{in: "", ok: false},
		{in: "0xzz", ok: false},
		{in: "0x" + strings.Repeat("1", 65), ok: false},
	}
	for _, tc := range tests {
		got, err := NormalizeAddress(tc.in)
		if (err == nil) != tc.ok {
			t.Fatalf("NormalizeAddress(%q) error = %v, ok = %v", tc.in, err, tc.ok)
		}
		if tc.ok && got != tc.want {
			t.Fatalf("NormalizeAddress(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNewBuilderRequiresModule(t *testing.T) {
	if _, err := NewBuilder(""); apperr.KindOf(err) != apperr.KindConfig {
		t.Fatalf("NewBuilder(\"\") error = %v, want config", err)
	}
	if _, err := NewBuilder("nothex"); apperr.KindOf(err) != apperr.KindConfig {
		t.Fatalf("NewBuilder(nothex) error = %v, want config", err)
	}
}

func TestPayloads(t *testing.T) {
	builder, err := NewBuilder("0xcafe")
	if err != nil {
		t.Fatalf("NewBuilder() error = %v", err)
	}
	module := builder.ModuleAddress()

	create, err := builder.CreateTrade(CreateTradeArgs{
		TradeType:  1,
		TokenFrom:  "APT",
		TokenTo:    "USDC",
		AmountFrom: 100_000_000,
		AmountTo:   850_000_000,
		Price:      850_000_000,
		Notes:      "dca",
	})
	if err != nil {
		t.Fatalf("CreateTrade() error = %v", err)
	}
	if create.Function != module+"::trade_radar::create_trade" {
		t.Fatalf("function = %s", create.Function)
	}
	if len(create.FunctionArguments) != 7 || create.FunctionArguments[3] != "100000000" || create.FunctionArguments[6] != "dca" {
		t.Fatalf("arguments = %#v", create.FunctionArguments)
	}

	update, err := builder.UpdateTrade(UpdateTradeArgs{TradeObjAddr: "0x42", AmountFrom: 1, AmountTo: 2, Price: 3})
	if err != nil {
		t.Fatalf("UpdateTrade() error = %v", err)
	}
	if update.Function != module+"::trade_radar::update_trade" || update.FunctionArguments[0] != MustNormalizeAddress("0x42") {
		t.Fatalf("update = %#v", update)
	}

	for name, build := range map[string]func(TradeRefArgs) (Payload, error){
		"complete_trade": builder.CompleteTrade,
		"cancel_trade":   builder.CancelTrade,
	} {
		payload, err := build(TradeRefArgs{TradeObjAddr: "0x42"})
		if err != nil {
			t.Fatalf("%s error = %v", name, err)
		}
		if payload.Function != module+"::trade_radar::"+name || len(payload.FunctionArguments) != 1 {
			t.Fatalf("%s payload = %#v", name, payload)
		}
	}
}

func TestPayloadValidation(t *testing.T) {
	builder, err := NewBuilder("0x1")
	if err != nil {
		t.Fatalf("NewBuilder() error = %v", err)
	}
	if _, err := builder.CreateTrade(CreateTradeArgs{TradeType: 4, TokenFrom: "A", TokenTo: "B"}); !apperr.IsInvalid(err) {
		t.Fatalf("bad trade type error = %v", err)
	}
	if _, err := builder.CreateTrade(CreateTradeArgs{TradeType: 2, TokenFrom: " "}); !apperr.IsInvalid(err) {
		t.Fatalf("missing token error = %v", err)
	}
	if _, err := builder.CancelTrade(TradeRefArgs{}); !apperr.IsInvalid(err) {
		t.Fatalf("missing trade address error = %v", err)
	}
}
