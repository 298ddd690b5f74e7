package cli

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"supplywatcher/internal/app"
	"supplywatcher/internal/supply"
)

var (
	simulateToken     string
	simulateOld       string
	simulateNew       string
	simulateThreshold string
	simulateDecimals  uint8
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Evaluate a synthetic supply jump and send any alert through the sinks",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !common.IsHexAddress(simulateToken) {
			return errors.New("--token must be a hex address")
		}

		oldSupply, err := parseAmount("--old", simulateOld)
		if err != nil {
			return err
		}
		newSupply, err := parseAmount("--new", simulateNew)
		if err != nil {
			return err
		}
		threshold, err := parseAmount("--threshold", simulateThreshold)
		if err != nil {
			return err
		}

		return getApp().SimulateAlert(cmd.Context(), app.SimulateOptions{
			Token:     common.HexToAddress(simulateToken),
			Old:       oldSupply,
			New:       newSupply,
			Threshold: threshold,
			Decimals:  simulateDecimals,
		})
	},
}

func parseAmount(flag, raw string) (*big.Int, error) {
	value, ok := new(big.Int).SetString(raw, 10)
	if !ok || !supply.InRange(value) {
		return nil, fmt.Errorf("%s must be a base-10 integer in uint256 range", flag)
	}
	return value, nil
}

func init() {
	simulateCmd.Flags().StringVar(&simulateToken, "token", "", "Token address reported in the alert")
	simulateCmd.Flags().StringVar(&simulateOld, "old", "", "Oldest observed supply (raw units)")
	simulateCmd.Flags().StringVar(&simulateNew, "new", "", "Latest observed supply (raw units)")
	simulateCmd.Flags().StringVar(&simulateThreshold, "threshold", "0", "Maximum allowed increase (raw units)")
	simulateCmd.Flags().Uint8Var(&simulateDecimals, "decimals", 18, "Token decimals used when rendering amounts")
}
