package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/eleven-am/roverlink/internal/dto"
	"github.com/eleven-am/roverlink/internal/state"
	"github.com/spf13/cobra"
)

func (a *app) do(cmd *cobra.Command, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(cmd.Context(), method, a.server()+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(msg))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newJoystickCmd(a *app) *cobra.Command {
	var released bool

	cmd := &cobra.Command{
		Use:   "joystick <x> <y>",
		Short: "Send a joystick offset through the server",
		Long:  "Offsets are in joystick radii; y grows downward. Deflections at or below 0.4 send nothing.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			x, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("parse x: %w", err)
			}
			y, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("parse y: %w", err)
			}

			var resp dto.CommandResponse
			req := dto.JoystickRequest{X: x, Y: y, Released: released}
			if err := a.do(cmd, http.MethodPost, "/v1/joystick", req, &resp); err != nil {
				return err
			}
			if !resp.Sent {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "dead zone, nothing sent")
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "sent %s (%s)\n", resp.Command, resp.Token)
			return err
		},
	}

	cmd.Flags().BoolVar(&released, "released", false, "report the joystick as released (sends stop)")
	return cmd
}

func newFeatureCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "feature <name> <on|off>",
		Short:     "Toggle a server feature",
		Long:      "Features: camera, text-recognition, text-autopilot, object-detection, follow, recording.",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"camera", "text-recognition", "text-autopilot", "object-detection", "follow", "recording"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var enabled bool
			switch args[1] {
			case "on", "true", "1":
				enabled = true
			case "off", "false", "0":
			default:
				return fmt.Errorf("state must be on or off, got %q", args[1])
			}

			var resp map[string]any
			if err := a.do(cmd, http.MethodPut, "/v1/features/"+args[0], dto.ToggleRequest{Enabled: enabled}, &resp); err != nil {
				return err
			}
			return printJSON(cmd, resp)
		},
	}
}

func newStateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Print the current vehicle state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var snap state.Snapshot
			if err := a.do(cmd, http.MethodGet, "/v1/state", nil, &snap); err != nil {
				return err
			}
			return printJSON(cmd, snap)
		},
	}
}
