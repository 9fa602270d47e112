package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/teslashibe/go-gesture/internal/httpc"
	"github.com/teslashibe/go-gesture/pkg/protocol"
)

var predictInline bool

var predictCmd = &cobra.Command{
	Use:   "predict <image>",
	Short: "Classify one image with POST /predict",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		label, err := predictFile(cmd, args[0])
		if err != nil {
			return err
		}
		if label == "" {
			label = protocol.NoHandLabel
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", filepath.Base(args[0]), label)
		return nil
	},
}

func init() {
	predictCmd.Flags().BoolVar(&predictInline, "inline", false, "Send the image as a base64 data URL in a JSON body instead of a multipart upload")
}

type predictReply struct {
	Prediction *string `json:"prediction"`
	Error      string  `json:"error"`
}

// predictFile uploads path and returns the predicted label, empty when the
// server found no gesture.
func predictFile(cmd *cobra.Command, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	url := strings.TrimRight(serverURL, "/") + "/predict"
	var resp *http.Response
	if predictInline {
		resp, err = httpc.PostJSON(cmd.Context(), url, map[string]string{"frame": protocol.DataURL(data)})
	} else {
		resp, err = httpc.PostFile(cmd.Context(), url, "file", filepath.Base(path), data)
	}
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}

	var reply predictReply
	if err := httpc.DecodeJSON(resp, &reply); err != nil {
		return "", err
	}
	if reply.Error != "" {
		return "", fmt.Errorf("server returned %d: %s", resp.StatusCode, reply.Error)
	}
	if reply.Prediction == nil {
		return "", fmt.Errorf("server returned %d without a prediction", resp.StatusCode)
	}
	return *reply.Prediction, nil
}
