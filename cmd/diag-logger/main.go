// Command diag-logger records diagnostic sessions from a vehicle bus
// co-processor to numbered files on a storage card, driven by a single
// operator button.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sweeney/diag-logger/internal/gpio"
	"github.com/sweeney/diag-logger/internal/reset"
	"github.com/sweeney/diag-logger/internal/status"
)

// Set with -ldflags "-X main.version=...".
var (
	version   = "dev"
	hwVersion = "DL-1"
)

type options struct {
	card       string
	chip       string
	pinButton  int
	pinLED     int
	pinBuzzer  int
	pinSupply  int
	pinCardCS  int
	enginePort string
	console    string
	rtc        string
	i2cBus     string
	broker     string
	httpAddr   string
	heartbeat  time.Duration
	resetMode  string
	tick       time.Duration
}

var opts options

var rootCmd = &cobra.Command{
	Use:           "diag-logger",
	Short:         "Vehicle diagnostic session logger",
	Long:          `Runs the button-driven logging loop: pick a profile, start a session, write it to the card.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCmd.RunE(cmd, args)
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "run the logger daemon (default)",
	RunE: func(cmd *cobra.Command, args []string) error {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sig)
		return run(cmd.Context(), opts, sig)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print version",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("%s sw_ver: %s\n", hwVersion, version)
	},
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&opts.card, "card", "/media/card", "storage card mountpoint")
	f.StringVar(&opts.chip, "chip", gpio.DefaultChip, "GPIO chip")
	f.IntVar(&opts.pinButton, "pin-button", gpio.DefaultPinButton, "operator button line")
	f.IntVar(&opts.pinLED, "pin-led", gpio.DefaultPinLED, "status LED line")
	f.IntVar(&opts.pinBuzzer, "pin-buzzer", gpio.DefaultPinBuzzer, "buzzer line")
	f.IntVar(&opts.pinSupply, "pin-supply", gpio.DefaultPinSupply, "card supply switch line")
	f.IntVar(&opts.pinCardCS, "pin-card-cs", gpio.DefaultPinCardCS, "card chip select line")
	f.StringVarP(&opts.enginePort, "port", "p", "/dev/ttyAMA0", "bus co-processor serial port")
	f.StringVar(&opts.console, "console", "", "debug console serial port (empty to disable)")
	f.StringVar(&opts.rtc, "rtc", "ds3231", `clock source ("ds3231" or "system")`)
	f.StringVar(&opts.i2cBus, "i2c", "", "I2C bus for the RTC (empty for the first bus)")
	f.StringVar(&opts.broker, "broker", "tcp://192.168.1.200:1883", "MQTT broker address (empty to disable)")
	f.StringVar(&opts.httpAddr, "http", ":80", "HTTP status address (empty to disable)")
	f.DurationVar(&opts.heartbeat, "heartbeat", 15*time.Minute, "heartbeat interval (0 to disable)")
	f.StringVar(&opts.resetMode, "reset", "exit", `action after a fatal halt ("exit" or "reboot")`)
	f.DurationVar(&opts.tick, "tick", time.Millisecond, "tick period")

	rootCmd.AddCommand(runCmd, profilesCmd, nextFileCmd, versionCmd)
}

func main() {
	log.SetFlags(log.LstdFlags)

	err := rootCmd.ExecuteContext(context.Background())
	if err == nil {
		return
	}
	if code, ok := exitCode(err); ok {
		os.Exit(code)
	}
	log.Fatalf("fatal: %v", err)
}

// exitCode maps errors that end the process deliberately to a status code.
func exitCode(err error) (int, bool) {
	if isReset(err) {
		return reset.ExitCode, true
	}
	return 0, false
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
