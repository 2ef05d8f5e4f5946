package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dunamismax/boothflow/internal/booth"
	"github.com/dunamismax/boothflow/internal/domain"
	"github.com/dunamismax/boothflow/internal/id"
	"github.com/dunamismax/boothflow/internal/logging"
)

func newProcessCommand(opts *options) *cobra.Command {
	var style, filter string

	cmd := &cobra.Command{
		Use:   "process <file>",
		Short: "Apply the configured effects to a still in the temp folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := domain.NewCaptureRequest(args[0], style, filter)
			if err != nil {
				return err
			}
			return runWithService(cmd, opts, func(ctx context.Context, svc *booth.Service) (domain.Manifest, error) {
				req.SessionID = id.Session()
				return svc.Process(ctx, req)
			})
		},
	}
	cmd.Flags().StringVarP(&style, "style", "s", string(domain.StylePhoto), "Capture style: photo, collage, custom or chroma")
	cmd.Flags().StringVarP(&filter, "filter", "f", "", "Image filter")
	return cmd
}

func newVideoCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "video <file>",
		Short: "Finish a captured video and its extracted frames",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithService(cmd, opts, func(ctx context.Context, svc *booth.Service) (domain.Manifest, error) {
				return svc.ProcessVideo(ctx, domain.VideoRequest{File: args[0], SessionID: id.Session()})
			})
		},
	}
}

func runWithService(cmd *cobra.Command, opts *options, run func(context.Context, *booth.Service) (domain.Manifest, error)) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if err := ensureFolders(cfg.Booth.Folders); err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logger := logging.New(logging.Options{Level: opts.logLevel, Prefix: "[boothctl]", Output: cmd.ErrOrStderr()})
	svc, closeFn, err := booth.Open(ctx, cfg, nil, logger, nil)
	if err != nil {
		return err
	}
	defer closeFn()

	manifest, runErr := run(ctx, svc)
	if opts.jsonOutput {
		if err := writeResponse(cmd.OutOrStdout(), manifest, runErr); err != nil {
			return err
		}
		return runErr
	}
	if runErr != nil {
		return runErr
	}

	fmt.Fprintln(cmd.OutOrStdout(), renderManifest(cfg.Booth.Folders, manifest))
	return nil
}

// writeResponse prints the same single JSON object the HTTP API returns.
func writeResponse(w io.Writer, manifest domain.Manifest, err error) error {
	var body any = manifest
	if err != nil {
		body = map[string]any{"error": err.Error()}
		var be *booth.Error
		if errors.As(err, &be) {
			body = be.Body()
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(body)
}
