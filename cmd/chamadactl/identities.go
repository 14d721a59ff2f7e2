package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/saturnino-fabrica-de-software/chamada/internal/app"
	"github.com/saturnino-fabrica-de-software/chamada/internal/face"
	"github.com/saturnino-fabrica-de-software/chamada/internal/identity"
	"github.com/saturnino-fabrica-de-software/chamada/internal/service"
)

var identitiesCmd = &cobra.Command{
	Use:     "identities",
	Aliases: []string{"id"},
	Short:   "Manage enrolled identities",
}

var identitiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled identities",
	Args:  cobra.NoArgs,
	RunE:  runIdentitiesList,
}

var identitiesDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete an identity and its reference image",
	Args:  cobra.ExactArgs(1),
	RunE:  runIdentitiesDelete,
}

var identitiesReembedCmd = &cobra.Command{
	Use:   "reembed",
	Short: "Recompute embeddings from the stored reference images",
	Long: `Recompute embeddings from the stored reference images.

By default only records without an embedding are processed. Use --all after
changing DEEPFACE_MODEL so every record is embedded with the new model.`,
	Args: cobra.NoArgs,
	RunE: runIdentitiesReembed,
}

func init() {
	rootCmd.AddCommand(identitiesCmd)
	identitiesCmd.AddCommand(identitiesListCmd, identitiesDeleteCmd, identitiesReembedCmd)

	identitiesReembedCmd.Flags().Bool("all", false, "Re-embed every record, not only the missing ones")
}

func runIdentitiesList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	st, err := app.OpenStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	identities, err := st.Identities.List(ctx)
	if err != nil {
		return err
	}

	if mustGetBool(cmd, "json") {
		return printJSON(identities)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tCONTACT\tEMBEDDING\tIMAGE\tUPDATED")
	for _, id := range identities {
		emb := "no"
		if id.HasEmbedding() {
			emb = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", id.Name, id.Contact, emb, id.ImageRef, id.UpdatedAt.Local().Format(time.DateTime))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\n%d identities\n", len(identities))
	return nil
}

func runIdentitiesDelete(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	st, err := app.OpenStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	store := identity.NewStore(st.Identities)
	svc := service.NewIdentityService(st.Identities, st.Images, store, service.NewIdentityLock(), logger).WithPublisher(auditPublisher())
	if err := svc.Delete(ctx, args[0]); err != nil {
		return err
	}

	if mustGetBool(cmd, "json") {
		return printJSON(map[string]string{"deleted": args[0]})
	}
	fmt.Printf("Deleted %q\n", args[0])
	return nil
}

func runIdentitiesReembed(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	jsonOutput := mustGetBool(cmd, "json")
	startTime := time.Now()

	st, err := app.OpenStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	embedder, err := face.NewEmbedder(cfg)
	if err != nil {
		return err
	}

	store := identity.NewStore(st.Identities)
	rec := identity.NewReconciler(store, st.Identities, st.Images, embedder, cfg.Upsample, logger)
	rec.Force = mustGetBool(cmd, "all")

	var bar *progressbar.ProgressBar
	if !jsonOutput {
		rec.OnProgress = func(done, total int) {
			if bar == nil {
				bar = progressbar.NewOptions(total,
					progressbar.OptionSetWriter(os.Stderr),
					progressbar.OptionSetDescription("Re-embedding"),
					progressbar.OptionShowCount(),
					progressbar.OptionShowIts(),
					progressbar.OptionSetItsString("identities"),
					progressbar.OptionShowElapsedTimeOnFinish(),
					progressbar.OptionSetPredictTime(true),
					progressbar.OptionFullWidth(),
				)
			}
			_ = bar.Set(done)
		}
	}

	report, err := rec.Reconcile(ctx)
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(report)
	}

	fmt.Printf("Processed %d identities in %s\n", report.Total, time.Since(startTime).Round(time.Millisecond))
	fmt.Printf("  re-embedded: %d\n", len(report.Reembedded))
	fmt.Printf("  dropped:     %d\n", len(report.Dropped))
	for _, name := range report.Dropped {
		fmt.Printf("    - %s\n", name)
	}
	return nil
}
