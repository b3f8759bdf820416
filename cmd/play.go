// cmd/play.go
package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mkbrennan/ditdah/internal/config"
	"github.com/mkbrennan/ditdah/internal/morse"
)

var playCmd = &cobra.Command{
	Use:   "play <text>",
	Short: "Play text as Morse code and exit",
	Long: `Encodes the given text and plays it through the sidetone scheduler at
the configured speed, exiting once playback completes.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPlay,
}

func init() {
	rootCmd.AddCommand(playCmd)
}

func runPlay(cmd *cobra.Command, args []string) error {
	settings, err := config.Get()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	text := strings.Join(args, " ")
	stream := morse.EncodeSentence(text)
	if stream == "" {
		return fmt.Errorf("nothing to play: %q has no encodable characters", text)
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

	fmt.Fprintln(cmd.OutOrStdout(), stream)

	done := make(chan struct{})
	eng.PlaySentence(text, func() { close(done) })

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}
