package main

import (
	"bufio"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strings"
	"time"

	"github.com/maxhully/slangdict/brainrot"
	"github.com/maxhully/slangdict/linker"
	"github.com/maxhully/slangdict/memeface"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// inputText joins the args, or reads all of stdin if there are none.
func inputText(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(bufio.NewReader(cmd.InOrStdin()))
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(data), "\n"), nil
}

var (
	brainrotIntensity int
	brainrotSeed      uint64
)

var brainrotCmd = &cobra.Command{
	Use:   "brainrot [text...]",
	Short: "Rot the brain of some text (from args or stdin)",
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := inputText(cmd, args)
		if err != nil {
			return err
		}
		seed := brainrotSeed
		if !cmd.Flags().Changed("seed") {
			seed = rand.Uint64()
		}
		logger.Debug("transforming",
			zap.Int("intensity", brainrotIntensity),
			zap.Uint64("seed", seed))
		fmt.Fprintln(cmd.OutOrStdout(), brainrot.TransformSeeded(text, brainrotIntensity, seed))
		return nil
	},
}

// printSegments shows term segments as [surface](key) and plain ones as is.
func printSegments(w io.Writer, segments []linker.Segment) {
	var b strings.Builder
	for _, seg := range segments {
		if seg.IsTerm() {
			fmt.Fprintf(&b, "[%s](%s)", seg.Text, seg.Key)
		} else {
			b.WriteString(seg.Text)
		}
	}
	fmt.Fprintln(w, b.String())
}

var linkCmd = &cobra.Command{
	Use:   "link [text...]",
	Short: "Show which slang terms in some text would link to definitions",
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := inputText(cmd, args)
		if err != nil {
			return err
		}
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		cache := linker.NewVocabularyCache(db, cfg.VocabularyTTL, linker.WithLogger(logger.Named("linker")))
		// Refresh directly so a broken database is an error here, not an
		// empty vocabulary.
		snap, err := cache.Refresh(cmd.Context(), time.Now())
		if err != nil {
			return err
		}
		printSegments(cmd.OutOrStdout(), linker.Link(text, snap))
		return nil
	},
}

var (
	faceIntensity int
	faceSeed      uint64
	faceOut       string
)

var faceCmd = &cobra.Command{
	Use:   "face",
	Short: "Draw a meme face PNG",
	RunE: func(cmd *cobra.Command, args []string) error {
		seed := faceSeed
		if !cmd.Flags().Changed("seed") {
			seed = rand.Uint64()
		}
		f, err := os.Create(faceOut)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := memeface.GeneratePNG(f, faceIntensity, seed); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created %s (seed %d)\n", faceOut, seed)
		return f.Close()
	},
}

func init() {
	brainrotCmd.Flags().IntVarP(&brainrotIntensity, "intensity", "i", 50, "How rotten, from 0 to 100")
	brainrotCmd.Flags().Uint64Var(&brainrotSeed, "seed", 0, "Seed for reproducible output (random if unset)")

	faceCmd.Flags().IntVarP(&faceIntensity, "intensity", "i", 0, "How chaotic, from 0 to 100")
	faceCmd.Flags().Uint64Var(&faceSeed, "seed", 0, "Seed for a reproducible face (random if unset)")
	faceCmd.Flags().StringVarP(&faceOut, "out", "o", "face.png", "Where to write the PNG")
}
