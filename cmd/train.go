// cmd/train.go
package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mkbrennan/ditdah/internal/config"
	"github.com/mkbrennan/ditdah/internal/store"
	"github.com/mkbrennan/ditdah/internal/tui"
)

// defaultSentence exercises every letter at least once.
const defaultSentence = "THE QUICK BROWN FOX JUMPS OVER THE LAZY DOG"

var trainCmd = &cobra.Command{
	Use:   "train [sentence]",
	Short: "Run an interactive keying practice session",
	Long: `Starts a practice session in the terminal: key the highlighted character
with the dit and dah keys and advance through the sentence. Results are
saved to the session database when the sentence is completed.`,
	Args: cobra.ArbitraryArgs,
	RunE: runTrain,
}

func init() {
	rootCmd.AddCommand(trainCmd)
}

func runTrain(cmd *cobra.Command, args []string) error {
	settings, err := config.Get()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	sentence := defaultSentence
	if len(args) > 0 {
		sentence = strings.ToUpper(strings.Join(args, " "))
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	player := setupAudio(ctx, settings)
	defer player.Close()

	eng, err := buildEngine(settings, player)
	if err != nil {
		return err
	}
	defer eng.Stop()

	st, err := store.Open(settings.DatabasePath())
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer st.Close()

	return tui.Run(eng, st, sentence, settings.WPM)
}
