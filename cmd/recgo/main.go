//go:build !ios && !android && (amd64 || arm64)

// Command recgo records the screen (and optionally system audio) to a
// container file. While recording, `p` pauses, `r` resumes and `q` stops;
// SIGINT/SIGTERM stop cleanly so the container trailer is always written.
package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/obinnaokechukwu/recgo"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "recgo:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "recgo [output file]",
		Short: "Record the screen to a video file",
		Long: `recgo captures the screen (and optionally system audio) and writes a
single container file. The container format follows the output extension.

Interactive controls while recording:
  p  pause       r  resume       q  stop and finalize`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := v.GetString("output")
			if len(args) == 1 {
				output = args[0]
			}
			return run(cmd, v, output)
		},
		SilenceUsage: true,
	}

	flags := cmd.Flags()
	flags.StringP("output", "o", "recording.mp4", "output file path")
	flags.Int("width", 0, "capture region width (0 = full screen)")
	flags.Int("height", 0, "capture region height (0 = full screen)")
	flags.Int("offset-x", 0, "capture region horizontal offset")
	flags.Int("offset-y", 0, "capture region vertical offset")
	flags.Int("framerate", 30, "capture frame rate")
	flags.BoolP("audio", "a", false, "capture system audio")
	flags.String("video-device", "", "capture device override (display, screen index, ...)")
	flags.String("audio-device", "", "audio capture device override")
	flags.String("preset", "ultrafast", "video encoder preset")
	flags.BoolP("verbose", "v", false, "verbose logging")

	v.BindPFlags(flags)
	v.SetEnvPrefix("RECGO")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("recgo")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home + "/.config")
	}
	v.ReadInConfig() // optional; missing config files are fine

	return cmd
}

func run(cmd *cobra.Command, v *viper.Viper, output string) error {
	level := slog.LevelInfo
	if v.GetBool("verbose") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	recgo.SetLogger(logger)
	if v.GetBool("verbose") {
		recgo.SetNativeLogLevel(recgo.LogInfo)
	}

	rec, err := recgo.NewRecorder(recgo.Config{
		OutputPath:   output,
		Width:        v.GetInt("width"),
		Height:       v.GetInt("height"),
		OffsetX:      v.GetInt("offset-x"),
		OffsetY:      v.GetInt("offset-y"),
		FrameRate:    v.GetInt("framerate"),
		CaptureAudio: v.GetBool("audio"),
		VideoDevice:  v.GetString("video-device"),
		AudioDevice:  v.GetString("audio-device"),
		EncoderOptions: map[string]string{
			"preset": v.GetString("preset"),
		},
	})
	if err != nil {
		return err
	}

	if err := rec.Start(); err != nil {
		return err
	}

	// Stop must run before exit so flush and the trailer write happen.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	keys := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			keys <- strings.TrimSpace(scanner.Text())
		}
		close(keys)
	}()

	fmt.Fprintln(cmd.OutOrStdout(), "recording... p=pause r=resume q=stop")

	for {
		select {
		case <-sigs:
			return rec.Stop()
		case key, ok := <-keys:
			if !ok {
				return rec.Stop()
			}
			switch key {
			case "p":
				if err := rec.Pause(); err != nil {
					logger.Warn("pause", "err", err)
				}
			case "r":
				if err := rec.Resume(); err != nil {
					logger.Warn("resume", "err", err)
				}
			case "q":
				return rec.Stop()
			}
		}
	}
}
