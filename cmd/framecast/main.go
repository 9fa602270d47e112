// framecast: command-line client for the gesture service
// Sends image files to POST /predict or streams them over /ws.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/teslashibe/go-gesture/internal/config"
)

// Version is the client version.
const Version = "0.1.0"

const defaultURL = "http://localhost:5000"

var serverURL string

var rootCmd = &cobra.Command{
	Use:           "framecast",
	Short:         "Send frames to a gesture recognition server",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "url", config.String("GESTURE_URL", defaultURL), "Gesture server base URL")
	rootCmd.AddCommand(predictCmd, streamCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "framecast:", err)
		os.Exit(1)
	}
}
