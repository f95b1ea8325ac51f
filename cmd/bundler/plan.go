package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bundleKeeper/internal/bundler"
	"bundleKeeper/internal/config"
	"bundleKeeper/internal/model"
	"bundleKeeper/internal/wallet"
)

func (a *app) planRequest(signer *wallet.KeypairSigner, withAmount bool) (bundler.PlanRequest, error) {
	pool, err := parseKey("pool", a.cfg.Pool)
	if err != nil {
		return bundler.PlanRequest{}, err
	}
	mint, err := parseKey("bundle mint", a.cfg.BundleMint)
	if err != nil {
		return bundler.PlanRequest{}, err
	}

	req := bundler.PlanRequest{
		Pool:              pool,
		BundleMint:        mint,
		Owner:             signer.PublicKey(),
		StartIndex:        a.cfg.StartIndex,
		PositionCount:     a.cfg.Positions,
		RangePercent:      a.cfg.RangePercent,
		SlippageBps:       a.cfg.SlippageBps,
		ChunkSize:         a.cfg.ChunkSize,
		ComputeUnitLimit:  a.cfg.ComputeUnitLimit,
		ComputeUnitPrice:  a.cfg.ComputeUnitPrice,
		IncludeOutOfRange: a.cfg.IncludeOutOfRange,
	}
	if a.cfg.Policy != "" {
		policy, err := model.ParseFailurePolicy(a.cfg.Policy)
		if err != nil {
			return bundler.PlanRequest{}, err
		}
		req.Policy = &policy
	}
	if withAmount {
		req.Amount, err = config.ParseSOL(a.cfg.Amount)
		if err != nil {
			return bundler.PlanRequest{}, err
		}
	}
	return req, nil
}

// submit prints the plan and, unless this is a dry run, submits it.
func (a *app) submit(plan model.PlanResult, signer *wallet.KeypairSigner) error {
	a.logger.Info("plan ready",
		zap.Int("batches", plan.TotalBatches),
		zap.Int("positions", plan.TotalPositions),
		zap.Ints("skipped", plan.SkippedIndices),
		zap.Float64("price", plan.CurrentPrice),
	)
	if a.cfg.DryRun {
		return printJSON(plan)
	}
	if plan.TotalBatches == 0 {
		return fmt.Errorf("nothing to submit: every position was skipped")
	}

	summary, err := a.session.Submit(a.ctx, plan, signer, a.submitOptions(), a.progress)
	if perr := printJSON(summary); perr != nil {
		a.logger.Warn("print summary", zap.Error(perr))
	}
	if err != nil {
		return err
	}
	if summary.SuccessCount < summary.Total {
		return fmt.Errorf("%d of %d transactions failed: %w", summary.Total-summary.SuccessCount, summary.Total, summary.Err())
	}
	return nil
}

func runPlan(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	signer, err := a.signer()
	if err != nil {
		return err
	}
	req, err := a.planRequest(signer, true)
	if err != nil {
		return err
	}
	plan, err := a.session.PlanCreate(a.ctx, req)
	if err != nil {
		return err
	}
	return printJSON(plan)
}

func runOpen(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	signer, err := a.signer()
	if err != nil {
		return err
	}
	req, err := a.planRequest(signer, false)
	if err != nil {
		return err
	}
	plan, err := a.session.PlanOpen(a.ctx, req)
	if err != nil {
		return err
	}
	return a.submit(plan, signer)
}

func runDeposit(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	signer, err := a.signer()
	if err != nil {
		return err
	}
	req, err := a.planRequest(signer, true)
	if err != nil {
		return err
	}
	plan, err := a.session.PlanCreate(a.ctx, req)
	if err != nil {
		return err
	}
	return a.submit(plan, signer)
}

func runAddLiquidity(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	indices, err := parseIndices(a.cfg.Indices)
	if err != nil {
		return err
	}
	signer, err := a.signer()
	if err != nil {
		return err
	}
	req, err := a.planRequest(signer, true)
	if err != nil {
		return err
	}
	plan, err := a.session.PlanAddLiquidity(a.ctx, req, indices)
	if err != nil {
		return err
	}
	return a.submit(plan, signer)
}

func runRebalance(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	mint, err := parseKey("bundle mint", a.cfg.BundleMint)
	if err != nil {
		return err
	}
	signer, err := a.signer()
	if err != nil {
		return err
	}
	report, err := a.session.Rebalance(a.ctx, bundler.RebalanceRequest{
		BundleMint:       mint,
		Owner:            signer.PublicKey(),
		ComputeUnitPrice: a.cfg.ComputeUnitPrice,
	})
	if err != nil {
		return err
	}
	if err := printJSON(report); err != nil {
		return err
	}
	if report.Expansion == nil || a.cfg.DryRun {
		return nil
	}
	return a.submit(*report.Expansion, signer)
}

// parseIndices accepts single indices and inclusive ranges such as "4-7".
func parseIndices(items []string) ([]int, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("indices are required")
	}
	var out []int
	for _, item := range items {
		lo, hi, isRange := strings.Cut(item, "-")
		from, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, fmt.Errorf("invalid index %q: %w", item, err)
		}
		to := from
		if isRange {
			if to, err = strconv.Atoi(strings.TrimSpace(hi)); err != nil {
				return nil, fmt.Errorf("invalid index %q: %w", item, err)
			}
		}
		if from < 0 || to < from || to >= model.BundleSize {
			return nil, fmt.Errorf("index %q outside 0..%d", item, model.BundleSize-1)
		}
		for i := from; i <= to; i++ {
			out = append(out, i)
		}
	}
	return out, nil
}
