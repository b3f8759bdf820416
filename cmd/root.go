// cmd/root.go
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mkbrennan/ditdah/internal/audio"
	"github.com/mkbrennan/ditdah/internal/config"
	"github.com/mkbrennan/ditdah/internal/dsp"
	"github.com/mkbrennan/ditdah/internal/engine"
	"github.com/mkbrennan/ditdah/internal/morse"
)

var rootCmd = &cobra.Command{
	Use:   "ditdah",
	Short: "Morse code keying trainer with paddle emulation",
	Long:  `A real-time Morse keying trainer: an iambic paddle keyer, a sequence decoder, and a click-free sidetone scheduler.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags (override config file)
	rootCmd.PersistentFlags().IntP("device", "d", -1, "audio device index (-1 for default)")
	rootCmd.PersistentFlags().Float64P("frequency", "f", 600, "sidetone frequency in Hz")
	rootCmd.PersistentFlags().IntP("wpm", "w", 20, "keying speed in words per minute")
	rootCmd.PersistentFlags().Float64P("volume", "v", 0.8, "master volume (0.0-1.0)")

	// Bind flags to viper
	viper.BindPFlag("device_index", rootCmd.PersistentFlags().Lookup("device"))
	viper.BindPFlag("tone_frequency", rootCmd.PersistentFlags().Lookup("frequency"))
	viper.BindPFlag("wpm", rootCmd.PersistentFlags().Lookup("wpm"))
	viper.BindPFlag("volume", rootCmd.PersistentFlags().Lookup("volume"))
}

func initConfig() {
	if err := config.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
}

// setupAudio builds and starts the playback engine. A backend failure is
// not fatal: the player is disabled and every tone request becomes a
// no-op for the rest of the session.
func setupAudio(ctx context.Context, s *config.Settings) *audio.Player {
	player := audio.New(audio.Config{
		DeviceIndex: s.DeviceIndex,
		SampleRate:  uint32(s.SampleRate),
		BufferSize:  uint32(s.BufferSize),
		Waveform:    dsp.Waveform(s.Waveform),
		RampMs:      s.RampMs,
		Volume:      s.Volume,
	})
	if err := player.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "audio unavailable, continuing without sound: %v\n", err)
		player.Disable()
		return player
	}
	if err := player.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "audio unavailable, continuing without sound: %v\n", err)
		player.Disable()
	}
	return player
}

// buildEngine assembles the trainer from validated settings.
func buildEngine(s *config.Settings, player *audio.Player) (*engine.Engine, error) {
	profile := morse.NewProfile(s.WPM)
	scheduler := audio.NewScheduler(player, profile)
	eng, err := engine.New(profile, scheduler, s.TimeoutMultiplier)
	if err != nil {
		return nil, err
	}
	eng.Configure(s.WPM, s.ToneFrequency)
	return eng, nil
}
