package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/saturnino-fabrica-de-software/chamada/internal/app"
	"github.com/saturnino-fabrica-de-software/chamada/internal/face"
	"github.com/saturnino-fabrica-de-software/chamada/internal/frame"
	"github.com/saturnino-fabrica-de-software/chamada/internal/identity"
	"github.com/saturnino-fabrica-de-software/chamada/internal/imaging"
	"github.com/saturnino-fabrica-de-software/chamada/internal/quality"
	"github.com/saturnino-fabrica-de-software/chamada/internal/service"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll",
	Short: "Enroll an identity from an image file",
	Long: `Enroll an identity from a JPEG or PNG file. The largest face in the image
must pass the same quality gate used for live enrollment.

Examples:
  chamadactl enroll --name "Maria Silva" --contact 5511999990000 --image maria.jpg`,
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().String("name", "", "Identity name (required)")
	enrollCmd.Flags().String("contact", "", "Contact, e.g. a phone number (required)")
	enrollCmd.Flags().String("image", "", "Path to a JPEG or PNG image (required)")
	_ = enrollCmd.MarkFlagRequired("name")
	_ = enrollCmd.MarkFlagRequired("contact")
	_ = enrollCmd.MarkFlagRequired("image")
}

func runEnroll(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	f, err := os.Open(mustGetString(cmd, "image"))
	if err != nil {
		return fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, err := imaging.Decode(f)
	if err != nil {
		return err
	}

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
	if err := store.Load(ctx); err != nil {
		return err
	}

	// sem câmera: o slot fica vazio, só EnrollImage é usado
	enroller := service.NewEnroller(
		frame.NewSlot(), embedder,
		quality.NewGate(cfg.MinFaceSize, cfg.MinSharpness),
		store, st.Identities, st.Images, service.NewIdentityLock(),
		app.EnrollmentConfig(cfg), logger,
	).WithPublisher(auditPublisher())

	result, err := enroller.EnrollImage(ctx, mustGetString(cmd, "name"), mustGetString(cmd, "contact"), img)
	if err != nil {
		return err
	}

	if mustGetBool(cmd, "json") {
		return printJSON(result)
	}
	fmt.Printf("Enrolled %q (image %s, sharpness %.1f)\n", result.Identity.Name, result.Identity.ImageRef, result.Sharpness)
	return nil
}
