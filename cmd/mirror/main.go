// Package main provides the mirror device CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/seu-repo/mirror-voice/internal/client/transport"
	"github.com/seu-repo/mirror-voice/pkg/config"
)

// Version information (set at build time)
var version = "dev"

var (
	configPath string
	serverURL  string
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mirror",
		Short: "Smart mirror voice client",
		Long: `Smart mirror voice client.

Runs the device loop (wake phrase, capture, upload, playback) against a
mirror voice server, or sends one-off commands to it.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to mirror.yaml")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "server URL (overrides serverUrl)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the interactive device loop",
		Long: `Run the interactive device loop.

Lines typed on stdin are fed to the speech recognizer. With voice activation
enabled a line must contain a wake phrase ("Hey Mirror, what's the weather");
otherwise every line is sent as a command. With --audio, waking the session
records the given WAV file as the microphone capture.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			audioPath, _ := cmd.Flags().GetString("audio")
			outDir, _ := cmd.Flags().GetString("out")
			return runDevice(cmd.Context(), cfg, deviceOptions{
				AudioPath: audioPath,
				OutDir:    outDir,
				In:        os.Stdin,
				Out:       cmd.OutOrStdout(),
			}, log)
		},
	}
	runCmd.Flags().String("audio", "", "WAV file used as the microphone capture")
	runCmd.Flags().String("out", "", "directory where reply audio is written")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Query the server status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			client := transport.NewClient(cfg.ServerURL, cfg.RequestTimeout, log)
			report, err := client.Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("status request failed: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Status:            %s\n", report.Status)
			fmt.Fprintf(out, "Connected clients: %d\n", report.ConnectedClients)
			fmt.Fprintf(out, "Last command:      %s\n", report.LastProcessedCommand)
			return nil
		},
	}

	sayCmd := &cobra.Command{
		Use:   "say <text>",
		Short: "Send a text command",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			client := transport.NewClient(cfg.ServerURL, cfg.RequestTimeout, log)
			reply, err := client.UploadText(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("request failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), reply.Response)
			return nil
		},
	}

	sendCmd := &cobra.Command{
		Use:   "send <file.wav>",
		Short: "Upload a WAV recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			audio, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read recording: %w", err)
			}

			client := transport.NewClient(cfg.ServerURL, cfg.RequestTimeout, log)
			reply, err := client.UploadAudio(cmd.Context(), audio)
			if err != nil {
				return fmt.Errorf("upload failed: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "You said: %s\n", reply.Transcription)
			fmt.Fprintf(out, "Mirror:   %s\n", reply.Response)

			outDir, _ := cmd.Flags().GetString("out")
			if outDir != "" && len(reply.Audio) > 0 {
				path, err := writeReplyAudio(outDir, reply.Audio)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Audio:    %s\n", path)
			}
			return nil
		},
	}
	sendCmd.Flags().String("out", "", "directory where reply audio is written")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the client version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "mirror %s\n", version)
		},
	}

	rootCmd.AddCommand(runCmd, statusCmd, sayCmd, sendCmd, versionCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setup() (*config.ClientConfig, *zap.Logger, error) {
	cfg, err := config.LoadClient(configPath)
	if err != nil {
		return nil, nil, err
	}
	if serverURL != "" {
		cfg.ServerURL = serverURL
		if err := cfg.Validate(); err != nil {
			return nil, nil, err
		}
	}

	var log *zap.Logger
	if verbose || cfg.DebugMode {
		log, err = zap.NewDevelopment()
	} else {
		zcfg := zap.NewProductionConfig()
		zcfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
		log, err = zcfg.Build()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, log, nil
}
