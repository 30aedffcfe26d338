package main

import (
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/eleven-am/roverlink/internal/state"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

func wsURL(server string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http", "":
		u.Scheme = "ws"
	}
	u.Path += "/v1/state/ws"
	return u.String(), nil
}

func newWatchCmd(a *app) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream state changes until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			target, err := wsURL(a.server())
			if err != nil {
				return err
			}

			conn, _, err := websocket.DefaultDialer.DialContext(cmd.Context(), target, nil)
			if err != nil {
				return fmt.Errorf("dial %s: %w", target, err)
			}
			defer conn.Close()

			var interrupted atomic.Bool
			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sig)
			go func() {
				<-sig
				interrupted.Store(true)
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				conn.Close()
			}()

			out := cmd.OutOrStdout()
			for {
				var snap state.Snapshot
				if err := conn.ReadJSON(&snap); err != nil {
					if interrupted.Load() || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
						return nil
					}
					return fmt.Errorf("read state: %w", err)
				}
				if raw {
					if err := printJSON(cmd, snap); err != nil {
						return err
					}
					continue
				}
				fmt.Fprintln(out, summarize(snap))
			}
		},
	}

	cmd.Flags().BoolVar(&raw, "json", false, "print full snapshots as JSON")
	return cmd
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func summarize(s state.Snapshot) string {
	line := fmt.Sprintf("%s seq=%d camera=%s connected=%t text=%s autopilot=%s detect=%s follow=%s rec=%s",
		s.UpdatedAt.Format("15:04:05.000"), s.FrameSeq,
		onOff(s.Camera), s.Connected, onOff(s.TextRecognition), onOff(s.TextAutopilot),
		onOff(s.ObjectDetection), onOff(s.Follow), onOff(s.Recording))
	if s.Recording {
		line += fmt.Sprintf("(%d)", s.RecordedFrames)
	}
	if s.Text != "" {
		line += fmt.Sprintf(" read=%q", s.Text)
	}
	if len(s.Detections) > 0 {
		line += fmt.Sprintf(" objects=%d", len(s.Detections))
	}
	if s.LastCommand != "" {
		line += " last=" + s.LastCommand
	}
	return line
}
