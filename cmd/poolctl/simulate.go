package main

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aman-zulfiqar/solana-amm-pool/internal/amm"
	"github.com/aman-zulfiqar/solana-amm-pool/internal/fixedpoint"
	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// step is one scripted operation. Depositors are names mapped to stable
// public keys so scripts stay readable.
type step struct {
	Op            string            `json:"op"`
	Token         string            `json:"token,omitempty"`
	Depositor     string            `json:"depositor,omitempty"`
	Amount        fixedpoint.Amount `json:"amount"`
	MinimumOutput fixedpoint.Amount `json:"minimum_output"`
	Duration      string            `json:"duration,omitempty"`
}

type outcome struct {
	Step     int             `json:"step"`
	Op       string          `json:"op"`
	Error    string          `json:"error,omitempty"`
	Result   any             `json:"result,omitempty"`
	State    amm.PoolState   `json:"state"`
	Reserves amm.ReservePair `json:"reserves"`
}

type simulation struct {
	pool  *amm.Controller
	clock time.Time
	keys  map[string]solana.PublicKey
}

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a JSON script of pool operations against an in-memory pool",
		Long: `Reads a JSON array of steps from --script (or stdin) and prints one JSON
line per step. Supported ops: init_vault, init_position, add_liquidity,
remove_liquidity, swap, wait.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			var in io.Reader = cmd.InOrStdin()
			if cfg.Script != "" && cfg.Script != "-" {
				f, err := os.Open(cfg.Script)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			var steps []step
			if err := json.NewDecoder(in).Decode(&steps); err != nil {
				return fmt.Errorf("decode script: %w", err)
			}

			var cooldown time.Duration
			if cfg.WithdrawCooldown != "" {
				if cooldown, err = time.ParseDuration(cfg.WithdrawCooldown); err != nil {
					return fmt.Errorf("withdraw-cooldown: %w", err)
				}
			}

			sim, err := newSimulation(amm.FeeConfig{Numerator: cfg.FeeNumerator, Denominator: cfg.FeeDenominator}, cooldown, logger)
			if err != nil {
				return err
			}

			failFast, _ := cmd.Flags().GetBool("fail-fast")
			enc := json.NewEncoder(cmd.OutOrStdout())
			for i, s := range steps {
				o := sim.run(cmd.Context(), i, s)
				if err := enc.Encode(o); err != nil {
					return err
				}
				if failFast && o.Error != "" {
					return fmt.Errorf("step %d (%s): %s", i, s.Op, o.Error)
				}
			}
			return nil
		},
	}

	cmd.Flags().String("script", "", "path to the JSON script, - for stdin")
	cmd.Flags().String("withdraw-cooldown", "", "withdraw cooldown, e.g. 100s")
	cmd.Flags().Bool("fail-fast", false, "stop at the first failing step")
	return cmd
}

func newSimulation(fee amm.FeeConfig, cooldown time.Duration, logger *logrus.Logger) (*simulation, error) {
	sim := &simulation{
		clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		keys:  make(map[string]solana.PublicKey),
	}
	pool, err := amm.NewController(amm.Config{
		Name:             "simulation",
		Fee:              fee,
		WithdrawCooldown: cooldown,
		Logger:           logger,
		Now:              func() time.Time { return sim.clock },
	})
	if err != nil {
		return nil, err
	}
	sim.pool = pool
	return sim, nil
}

func (s *simulation) depositor(name string) solana.PublicKey {
	if k, ok := s.keys[name]; ok {
		return k
	}
	sum := sha256.Sum256([]byte(name))
	k := solana.PublicKeyFromBytes(sum[:])
	s.keys[name] = k
	return k
}

func (s *simulation) run(ctx context.Context, i int, st step) outcome {
	res, err := s.apply(ctx, st)
	o := outcome{
		Step:     i,
		Op:       st.Op,
		Result:   res,
		State:    s.pool.State(),
		Reserves: s.pool.Reserves(),
	}
	if err != nil {
		o.Error = err.Error()
		o.Result = nil
	}
	return o
}

func (s *simulation) apply(ctx context.Context, st step) (any, error) {
	switch st.Op {
	case "init_vault":
		t, err := amm.ParseToken(st.Token)
		if err != nil {
			return nil, err
		}
		return nil, s.pool.InitializeVault(ctx, t)
	case "init_position":
		return s.pool.InitializePosition(ctx, s.depositor(st.Depositor))
	case "add_liquidity":
		return s.pool.AddLiquidity(ctx, s.depositor(st.Depositor), st.Amount)
	case "remove_liquidity":
		return s.pool.RemoveLiquidity(ctx, s.depositor(st.Depositor), st.Amount)
	case "swap":
		t, err := amm.ParseToken(st.Token)
		if err != nil {
			return nil, err
		}
		return s.pool.Swap(ctx, amm.SwapRequest{InputToken: t, InputAmount: st.Amount, MinimumOutput: st.MinimumOutput})
	case "wait":
		d, err := time.ParseDuration(st.Duration)
		if err != nil {
			return nil, err
		}
		s.clock = s.clock.Add(d)
		return map[string]string{"now": s.clock.Format(time.RFC3339)}, nil
	}
	return nil, fmt.Errorf("unknown op %q", st.Op)
}
