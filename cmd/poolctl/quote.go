package main

import (
	"encoding/json"
	"fmt"

	"github.com/aman-zulfiqar/solana-amm-pool/internal/amm"
	"github.com/aman-zulfiqar/solana-amm-pool/internal/fixedpoint"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type quoteOutput struct {
	amm.SwapResult
	SlippageBps   uint16            `json:"slippage_bps"`
	MinimumOutput fixedpoint.Amount `json:"minimum_output"`
	PriceImpact   float64           `json:"price_impact"`
	SpotPrice     float64           `json:"spot_price"`
}

func newQuoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Quote a swap against the given reserves",
		Example: `  poolctl quote --reserve-a 1000000000 --reserve-b 1000000000 --input-token A --amount 100000000
  POOLCTL_SLIPPAGE_BPS=100 poolctl quote --reserve-a 5000 --reserve-b 20000 --input-token B --amount 300`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			reserves, err := parseReserves(cfg.ReserveA, cfg.ReserveB)
			if err != nil {
				return err
			}
			engine, err := amm.NewSwapEngine(amm.FeeConfig{Numerator: cfg.FeeNumerator, Denominator: cfg.FeeDenominator})
			if err != nil {
				return err
			}

			tokenFlag, _ := cmd.Flags().GetString("input-token")
			token, err := amm.ParseToken(tokenFlag)
			if err != nil {
				return err
			}
			amountFlag, _ := cmd.Flags().GetString("amount")
			amount, err := fixedpoint.ParseAmount(amountFlag)
			if err != nil {
				return fmt.Errorf("--amount: %w", err)
			}

			res, err := engine.Quote(reserves, token, amount)
			if err != nil {
				return err
			}
			impact, err := engine.PriceImpact(reserves, token, amount)
			if err != nil {
				return err
			}
			spot, err := amm.SpotPrice(reserves, token)
			if err != nil {
				return err
			}

			logger.WithFields(logrus.Fields{
				"token":      token,
				"amount_in":  amount.String(),
				"amount_out": res.OutputAmount.String(),
				"fee":        res.FeeCharged.String(),
			}).Debug("quoted")

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(quoteOutput{
				SwapResult:    res,
				SlippageBps:   cfg.SlippageBps,
				MinimumOutput: amm.MinimumOutput(res.OutputAmount, cfg.SlippageBps),
				PriceImpact:   impact,
				SpotPrice:     spot,
			})
		},
	}

	cmd.Flags().String("reserve-a", "", "reserve of token A")
	cmd.Flags().String("reserve-b", "", "reserve of token B")
	cmd.Flags().Uint("slippage-bps", 50, "slippage tolerance in basis points")
	cmd.Flags().String("input-token", "A", "input side, A or B")
	cmd.Flags().String("amount", "", "input amount")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func parseReserves(a, b string) (amm.ReservePair, error) {
	ra, err := fixedpoint.ParseAmount(a)
	if err != nil {
		return amm.ReservePair{}, fmt.Errorf("reserve-a: %w", err)
	}
	rb, err := fixedpoint.ParseAmount(b)
	if err != nil {
		return amm.ReservePair{}, fmt.Errorf("reserve-b: %w", err)
	}
	return amm.ReservePair{ReserveA: ra, ReserveB: rb}, nil
}
