package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bundleKeeper/internal/model"
	"bundleKeeper/internal/storage"
)

func newBundleCmd() *cobra.Command {
	bundleCmd := &cobra.Command{
		Use:   "bundle",
		Short: "Create and inspect position bundles",
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create a new position bundle owned by the wallet",
		RunE:  runBundleInit,
	}
	addCommonFlags(initCmd.Flags())
	addSubmitFlags(initCmd.Flags())
	bundleCmd.AddCommand(initCmd)

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show which slots of a bundle are open",
		RunE:  runBundleShow,
	}
	addCommonFlags(showCmd.Flags())
	showCmd.Flags().String("bundle-mint", "", "position bundle mint")
	bundleCmd.AddCommand(showCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List bundles created by the wallet",
		RunE:  runBundleList,
	}
	addCommonFlags(listCmd.Flags())
	bundleCmd.AddCommand(listCmd)

	return bundleCmd
}

func runPool(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	pool, err := parseKey("pool", a.cfg.Pool)
	if err != nil {
		return err
	}

	if cached, _ := cmd.Flags().GetBool("cached"); cached {
		snap, ok, err := a.snapshots.LoadPool(pool)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no snapshot for pool %s", pool)
		}
		return printJSON(snap)
	}

	info, err := a.session.PoolInfo(a.ctx, pool)
	if err != nil {
		return err
	}
	return printJSON(info)
}

func runBundleInit(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	signer, err := a.signer()
	if err != nil {
		return err
	}
	mint, err := solana.NewRandomPrivateKey()
	if err != nil {
		return err
	}
	signer, err = signer.With(mint)
	if err != nil {
		return err
	}

	a.logger.Info("creating position bundle",
		zap.Stringer("owner", signer.PublicKey()),
		zap.Stringer("mint", mint.PublicKey()),
	)
	rec, err := a.session.InitializeBundle(a.ctx, mint, signer, a.submitOptions())
	if err != nil {
		return err
	}
	return printJSON(rec)
}

func runBundleShow(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	mint, err := parseKey("bundle mint", a.cfg.BundleMint)
	if err != nil {
		return err
	}
	occ, err := a.session.BundleOccupancy(a.ctx, mint)
	if err != nil {
		return err
	}
	return printJSON(occ)
}

func runBundleList(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	signer, err := a.signer()
	if err != nil {
		return err
	}
	owner := signer.PublicKey()

	if a.store != nil {
		records, err := a.store.Bundles(a.ctx, owner)
		if err != nil {
			return err
		}
		return printJSON(records)
	}

	entries, err := storage.ReadJournal(a.cfg.Journal)
	if err != nil {
		return err
	}
	records := make([]model.BundleRecord, 0)
	for _, e := range entries {
		if e.Kind == storage.KindBundle && e.Bundle != nil && e.Bundle.Owner.Equals(owner) {
			records = append(records, *e.Bundle)
		}
	}
	return printJSON(records)
}

func runPosition(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	mint, err := parseKey("bundle mint", a.cfg.BundleMint)
	if err != nil {
		return err
	}
	index, _ := cmd.Flags().GetInt("index")
	info, err := a.session.PositionInfo(a.ctx, mint, index)
	if err != nil {
		return err
	}
	return printJSON(info)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
