package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Fantasim/tokenmeta/internal/config"
)

func TestCollectTokens_ArgsAndFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.txt")
	content := "# stablecoins\n0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48\n\n  0x9f8f72aa9304c8b593d555f12ef6589cc3a579a2  \n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := collectTokens([]string{"0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"}, path)
	if err != nil {
		t.Fatalf("collectTokens() error = %v", err)
	}

	want := []common.Address{
		common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"),
		common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"),
		common.HexToAddress("0x9f8F72aA9304c8B593d555F12eF6589cC3A579A2"),
	}
	if len(got) != len(want) {
		t.Fatalf("got %d tokens, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d = %s, want %s", i, got[i].Hex(), want[i].Hex())
		}
	}
}

func TestCollectTokens_Empty(t *testing.T) {
	got, err := collectTokens(nil, "")
	if err != nil {
		t.Fatalf("collectTokens() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no tokens, got %d", len(got))
	}
}

func TestCollectTokens_InvalidAddress(t *testing.T) {
	_, err := collectTokens([]string{"not-an-address"}, "")
	if !errors.Is(err, config.ErrInvalidAddress) {
		t.Errorf("expected ErrInvalidAddress, got %v", err)
	}
}

func TestCollectTokens_MissingFile(t *testing.T) {
	if _, err := collectTokens(nil, filepath.Join(t.TempDir(), "nope.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}
