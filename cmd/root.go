// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"github.com/Thermoquad/sbusctl/internal/config"
	"github.com/spf13/cobra"
)

var (
	configFile string

	// Serial connection flags
	portName string

	// WebSocket bridge flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// cfg is the merged configuration, set before any command runs
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "sbusctl",
	Short: "SBUS transmitter for flight controller bench tests",
	Long: `sbusctl - Drive a flight controller over SBUS from a host or SBC.

Encodes 16 RC channels into SBUS frames and streams them to a flight
controller at the nominal 14 ms frame interval. The arm_test command runs a
scripted arm, throttle ramp and disarm maneuver for motor bench testing.

SBUS runs at 100000 baud, 8 data bits, even parity, 2 stop bits on an
inverted line. These parameters are fixed. Use a hardware inverter (or a
UART with TX inversion) between the serial port and the receiver input.

Connection modes:
  Serial:    --port /dev/ttyUSB0
  WebSocket: --url ws://host/path [--username user]

For WebSocket authentication, the password is read from the SBUSCTL_PASSWORD
environment variable, or prompted interactively if not set.

Settings can also come from a YAML file (--config or SBUSCTL_CONFIG) and
SBUSCTL_* environment variables. Flags win over both.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML configuration file")

	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")

	// WebSocket bridge flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket serial bridge URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")
}

// loadConfig merges the config file, environment and command line flags
func loadConfig(cmd *cobra.Command, args []string) error {
	c, err := config.Load(configFile)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		c.Serial.Port = portName
		c.Bridge.URL = ""
	}
	if flags.Changed("url") {
		c.Bridge.URL = wsURL
		c.Serial.Port = ""
	}
	if flags.Changed("username") {
		c.Bridge.Username = wsUsername
	}
	if flags.Changed("no-ssl-verify") {
		c.Bridge.NoSSLVerify = wsNoSSLVerify
	}

	if err := config.Validate(c); err != nil {
		return err
	}
	cfg = c
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
