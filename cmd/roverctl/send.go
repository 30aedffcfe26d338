package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/eleven-am/roverlink/internal/command"
	"github.com/spf13/cobra"
)

func newSendCmd(a *app) *cobra.Command {
	var hold time.Duration

	cmd := &cobra.Command{
		Use:   "send <command>",
		Short: "Send one drive command directly to the vehicle over UDP",
		Long:  "Accepts forward, backward, left, right, rotate-left, rotate-right, stop or their wire tokens. With --hold the command is followed by stop after the given duration.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			drive, err := command.Parse(args[0])
			if err != nil {
				return err
			}

			transport := command.NewUDPTransport(command.Config{
				Host: a.v.GetString(keyVehicleHost),
				Port: a.v.GetInt(keyCommandPort),
			}, slog.New(slog.DiscardHandler))
			if !transport.Healthy() {
				transport.Close()
				return fmt.Errorf("open command socket to %s:%d", a.v.GetString(keyVehicleHost), a.v.GetInt(keyCommandPort))
			}

			transport.Send(drive)
			if hold > 0 && drive != command.Stop {
				select {
				case <-time.After(hold):
				case <-cmd.Context().Done():
				}
				transport.Send(command.Stop)
			}
			if err := transport.Close(); err != nil {
				return err
			}

			stats := transport.Stats()
			if stats.Failed > 0 {
				return fmt.Errorf("%d of %d datagrams failed", stats.Failed, stats.Sent+stats.Failed)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "sent %s (%s) to %s\n", drive, drive.Token(), transport.Target())
			return err
		},
	}

	cmd.Flags().DurationVar(&hold, "hold", 0, "send stop after this long")
	return cmd
}
