package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Fantasim/tokenmeta/internal/config"
)

// collectTokens gathers token addresses from positional arguments and, when path
// is set, from a file with one address per line. Blank lines and lines starting
// with # are skipped. Order is preserved.
func collectTokens(args []string, path string) ([]common.Address, error) {
	raw := append([]string(nil), args...)

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open token file: %w", err)
		}
		defer f.Close()

		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			raw = append(raw, line)
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read token file: %w", err)
		}
	}

	tokens := make([]common.Address, 0, len(raw))
	for _, s := range raw {
		if !common.IsHexAddress(s) {
			return nil, fmt.Errorf("%w: %q", config.ErrInvalidAddress, s)
		}
		tokens = append(tokens, common.HexToAddress(s))
	}
	return tokens, nil
}
