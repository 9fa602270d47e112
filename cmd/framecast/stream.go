package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/teslashibe/go-gesture/pkg/protocol"
	"golang.org/x/sync/errgroup"
)

var (
	streamInterval time.Duration
	streamWait     time.Duration
)

var streamCmd = &cobra.Command{
	Use:   "stream <image|dir>...",
	Short: "Stream images as video frames over /ws and print predictions",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := collectImages(args)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			return errors.New("no images found")
		}
		return streamFiles(cmd.Context(), cmd.OutOrStdout(), files)
	},
}

func init() {
	streamCmd.Flags().DurationVar(&streamInterval, "interval", 100*time.Millisecond, "Delay between frames")
	streamCmd.Flags().DurationVar(&streamWait, "wait", 10*time.Second, "How long to wait for outstanding predictions after the last frame")
}

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".bmp": true, ".webp": true, ".tif": true, ".tiff": true,
}

// collectImages expands directories into their image files, sorted by name.
// Plain file arguments are kept as given.
func collectImages(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}

		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, err
		}
		var found []string
		for _, e := range entries {
			if e.IsDir() || !imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
				continue
			}
			found = append(found, filepath.Join(arg, e.Name()))
		}
		sort.Strings(found)
		files = append(files, found...)
	}
	return files, nil
}

// wsURL turns an http(s) base URL into the stream endpoint URL.
func wsURL(base string) string {
	base = strings.TrimRight(base, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	case !strings.HasPrefix(base, "ws://") && !strings.HasPrefix(base, "wss://"):
		base = "ws://" + base
	}
	return base + "/ws"
}

// streamFiles sends every file as a "video frame" event and prints the
// predictions that come back until each frame has been answered.
func streamFiles(ctx context.Context, out io.Writer, files []string) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL(serverURL), nil)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetDescription("Streaming frames"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
	)
	defer bar.Finish()

	g, ctx := errgroup.WithContext(ctx)
	sent := make(chan struct{})

	// Writer: one frame per interval.
	g.Go(func() error {
		defer close(sent)
		ticker := time.NewTicker(streamInterval)
		defer ticker.Stop()

		for i, path := range files {
			if i > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-ticker.C:
				}
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			msg, err := protocol.NewImageFrameMessage(data)
			if err != nil {
				return err
			}
			raw, err := msg.Bytes()
			if err != nil {
				return err
			}
			if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return fmt.Errorf("send %s: %w", path, err)
			}
		}
		return nil
	})

	// Reader: every frame gets exactly one reply on this session, either
	// the broadcast prediction or an error event.
	g.Go(func() error {
		for answered := 0; answered < len(files); {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return fmt.Errorf("read: %w", err)
			}
			msg, err := protocol.ParseMessage(raw)
			if err != nil || msg.Event != protocol.EventPrediction {
				continue
			}
			var pd protocol.PredictionData
			if err := msg.ParseData(&pd); err != nil {
				continue
			}
			answered++
			bar.Add(1)
			if pd.Error != "" {
				fmt.Fprintf(out, "\nerror: %s\n", pd.Error)
				continue
			}
			fmt.Fprintf(out, "\nprediction: %s\n", pd.Label)
		}
		return nil
	})

	// Unblocks the reader on cancellation or when replies stop coming.
	go func() {
		select {
		case <-ctx.Done():
		case <-sent:
			select {
			case <-ctx.Done():
				return
			case <-time.After(streamWait):
			}
		}
		conn.SetReadDeadline(time.Now())
	}()

	err = g.Wait()
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return err
}
