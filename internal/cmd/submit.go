package cmd

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	apperrors "github.com/shipyardlabs/cargohold/internal/errors"
	"github.com/shipyardlabs/cargohold/internal/server/handlers"
)

// jobManifest is the YAML shape accepted by 'cargohold submit --job'.
type jobManifest struct {
	Action     string `yaml:"action"`
	TargetPath string `yaml:"target_path"`
	SourceRef  string `yaml:"source_ref"`

	// PayloadFile names a local file to embed as an inline payload.
	PayloadFile string `yaml:"payload_file"`
}

var (
	submitManifest string
	submitServer   string
	submitToken    string
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a job to a running server",
	Long: `Submit a distribution job described by a YAML manifest to a running
cargohold server.

Manifest example:

  action: upload
  target_path: releases/build.tar.gz
  payload_file: ./build.tar.gz`,
	RunE: runSubmit,
}

func init() {
	rootCmd.AddCommand(submitCmd)
	submitCmd.Flags().StringVar(&submitManifest, "job", "", "Path to the YAML job manifest (required)")
	submitCmd.Flags().StringVar(&submitServer, "server", "http://localhost:8080", "Server base URL")
	submitCmd.Flags().StringVar(&submitToken, "token", "", "Bearer token (required)")
	_ = submitCmd.MarkFlagRequired("job")
	_ = submitCmd.MarkFlagRequired("token")
}

func runSubmit(cmd *cobra.Command, _ []string) error {
	raw, err := os.ReadFile(submitManifest)
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}

	var manifest jobManifest
	if err := yaml.Unmarshal(raw, &manifest); err != nil {
		return fmt.Errorf("parse manifest: %w", err)
	}

	req := handlers.SubmitRequest{
		Action:     manifest.Action,
		TargetPath: manifest.TargetPath,
		SourceRef:  manifest.SourceRef,
	}
	if manifest.PayloadFile != "" {
		data, err := os.ReadFile(manifest.PayloadFile)
		if err != nil {
			return fmt.Errorf("read payload file: %w", err)
		}
		req.Payload = base64.StdEncoding.EncodeToString(data)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost,
		submitServer+"/api/v1/jobs", bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+submitToken)

	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("submit job: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusAccepted:
		var accepted handlers.SubmitResponse
		if err := json.Unmarshal(respBody, &accepted); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Job %s accepted (%s)\n", accepted.JobID, accepted.Status)
		return nil

	case http.StatusOK:
		var status handlers.StatusResponse
		if err := json.Unmarshal(respBody, &status); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Job %s finished: %s\n", status.JobID, status.Status)
		if status.Error != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "Error: %s\n", status.Error)
		}
		return nil

	default:
		var envelope apperrors.HTTPErrorResponse
		if err := json.Unmarshal(respBody, &envelope); err == nil && envelope.Error.Code != "" {
			return fmt.Errorf("server rejected job: %s (%s)", envelope.Error.Message, envelope.Error.Code)
		}
		return fmt.Errorf("server rejected job: HTTP %d", resp.StatusCode)
	}
}
