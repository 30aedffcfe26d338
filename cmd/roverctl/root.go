package main

import (
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	keyServer      = "server"
	keyVehicleHost = "vehicle-host"
	keyCommandPort = "command-port"
	keyTimeout     = "timeout"
)

type app struct {
	v          *viper.Viper
	httpClient *http.Client
}

func (a *app) server() string {
	return strings.TrimRight(a.v.GetString(keyServer), "/")
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:           "roverctl",
		Short:         "Drive the rover and watch its state",
		Long:          "roverctl sends drive commands straight to the vehicle over UDP or through the roverlink server, and reads the server's live state.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			a.httpClient = &http.Client{Timeout: a.v.GetDuration(keyTimeout)}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String(keyServer, "http://localhost:8080", "roverlink server base URL")
	flags.String(keyVehicleHost, "192.168.4.1", "vehicle address for direct UDP commands")
	flags.Int(keyCommandPort, 1606, "vehicle UDP command port")
	flags.Duration(keyTimeout, 5*time.Second, "HTTP request timeout")

	_ = a.v.BindPFlags(flags)
	a.v.SetEnvPrefix("ROVER")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	rootCmd.AddCommand(
		newSendCmd(a),
		newJoystickCmd(a),
		newFeatureCmd(a),
		newStateCmd(a),
		newWatchCmd(a),
	)
	return rootCmd
}
