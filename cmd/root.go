package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mfi-tools/mpowerctl/internal/pkg/controller"
	"github.com/mfi-tools/mpowerctl/internal/pkg/logging"
	"github.com/mfi-tools/mpowerctl/internal/pkg/mfi"
)

var _rootCmdOpts struct {
	cfgFile     string
	verbose     bool
	statusAfter bool
	port        int
	username    string
	password    string
	timeout     time.Duration
	jsonOut     bool
}

var rootCmd = &cobra.Command{
	Use:   "mpowerctl [flags] <device> ON [dim%] | OFF | STATUS",
	Short: "Control an mFi mPower outlet over its HTTP API",
	Long: `mpowerctl logs into an mFi mPower switch/dimmer, performs one
operation (turn a port on, turn it off, or report its status) and logs
out again. Each invocation uses a fresh throwaway session.`,

	Args:          usageArgs(cobra.RangeArgs(2, 3)),
	SilenceUsage:  true,
	SilenceErrors: true,

	// Unknown flags are ignored and the invocation carries on
	FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},

	RunE: func(cmd *cobra.Command, args []string) error {
		return doRun(args)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// A malformed flag (eg. missing value) still shows the usage text
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		fmt.Fprintln(os.Stderr, cmd.UsageString())
		return err
	})

	rootCmd.PersistentFlags().StringVar(&_rootCmdOpts.cfgFile, "config", "", "config file (default $HOME/.mpowerctl.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&_rootCmdOpts.verbose, "verbose", "v", false, "verbose diagnostics on stderr")

	rootCmd.Flags().BoolVarP(&_rootCmdOpts.statusAfter, "status-after", "l", false, "print the port status after ON or OFF")
	rootCmd.Flags().IntVarP(&_rootCmdOpts.port, "port", "p", 1, "outlet port to control")
	rootCmd.Flags().StringVarP(&_rootCmdOpts.username, "username", "u", mfi.DefaultUsername, "device username")
	rootCmd.Flags().StringVarP(&_rootCmdOpts.password, "password", "a", mfi.DefaultPassword, "device password")
	rootCmd.Flags().DurationVar(&_rootCmdOpts.timeout, "timeout", 0, "HTTP timeout, eg. 10s (0 = no explicit timeout)")
	rootCmd.Flags().BoolVar(&_rootCmdOpts.jsonOut, "json", false, "print STATUS output as JSON")

	errPanic(viper.GetViper().BindPFlag("device.port", rootCmd.Flags().Lookup("port")))
	errPanic(viper.GetViper().BindPFlag("device.username", rootCmd.Flags().Lookup("username")))
	errPanic(viper.GetViper().BindPFlag("device.password", rootCmd.Flags().Lookup("password")))
	errPanic(viper.GetViper().BindPFlag("device.timeout", rootCmd.Flags().Lookup("timeout")))
	errPanic(viper.GetViper().BindPFlag("output.status-after", rootCmd.Flags().Lookup("status-after")))
	errPanic(viper.GetViper().BindPFlag("output.json", rootCmd.Flags().Lookup("json")))
}

func errPanic(err error) {
	if err != nil {
		panic(err)
	}
}

// usageArgs wraps a cobra positional validator so that a bad invocation
// still prints the usage text even with SilenceUsage set.
func usageArgs(wrapped cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := wrapped(cmd, args); err != nil {
			fmt.Fprintln(os.Stderr, cmd.UsageString())
			return err
		}
		return nil
	}
}

func initConfig() {
	if _rootCmdOpts.cfgFile != "" {
		viper.SetConfigFile(_rootCmdOpts.cfgFile)
	} else if home, err := homedir.Dir(); err == nil {
		viper.AddConfigPath(home)
		viper.SetConfigName(".mpowerctl")
	}

	viper.SetEnvPrefix("MPOWERCTL")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		logging.Logger(nil).Debugf("Using config file %s", viper.ConfigFileUsed())
	}

	if _rootCmdOpts.verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	if err := logging.Configure(viper.GetViper()); err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring logging: %v\n", err)
		os.Exit(1)
	}
}

func doRun(args []string) error {
	device := args[0]
	operation := args[1]

	dimLevel := 100
	if len(args) == 3 {
		n, err := strconv.Atoi(args[2])
		if err != nil || n < 0 || n > 100 {
			return &controller.UsageError{Msg: fmt.Sprintf("dim level must be an integer between 0 and 100, got %q", args[2])}
		}
		dimLevel = n
	}

	cfg := controller.RunConfig{
		Device:      device,
		Port:        viper.GetInt("device.port"),
		Operation:   operation,
		DimLevel:    dimLevel,
		StatusAfter: viper.GetBool("output.status-after"),
		JSON:        viper.GetBool("output.json"),
	}

	client := mfi.NewLiveClient(device).
		WithCredentials(viper.GetString("device.username"), viper.GetString("device.password"))
	if t := viper.GetDuration("device.timeout"); t > 0 {
		client = client.WithTimeout(t)
	}

	ctx := logging.WithSessionID(context.Background(), client.SessionID())
	logging.Logger(ctx).Debugf("device %s, port %d, operation %s", device, cfg.Port, operation)

	return controller.Run(client, cfg, os.Stdout)
}

func flagKnown(cmd *cobra.Command, name string) bool {
	return cmd.Flags().Lookup(name) != nil || cmd.PersistentFlags().Lookup(name) != nil
}

func shorthandKnown(cmd *cobra.Command, name string) bool {
	return cmd.Flags().ShorthandLookup(name) != nil || cmd.PersistentFlags().ShorthandLookup(name) != nil
}

// warnUnknownFlags prints the usage text once when the command line
// carries a flag this tool does not define. Unknown flags are otherwise
// ignored and the invocation carries on.
func warnUnknownFlags(cmd *cobra.Command, argv []string, out io.Writer) bool {
	for _, arg := range argv {
		if arg == "--" {
			return false
		}
		if !strings.HasPrefix(arg, "-") || arg == "-" || arg == "-h" || arg == "--help" {
			continue
		}

		known := true
		if strings.HasPrefix(arg, "--") {
			name := strings.TrimPrefix(arg, "--")
			if i := strings.Index(name, "="); i >= 0 {
				name = name[:i]
			}
			known = flagKnown(cmd, name)
		} else {
			for _, r := range strings.TrimPrefix(arg, "-") {
				if r == '=' {
					break
				}
				if !shorthandKnown(cmd, string(r)) {
					known = false
					break
				}
			}
		}

		if !known {
			fmt.Fprintf(out, "Ignoring unknown flag %s\n%s", arg, cmd.UsageString())
			return true
		}
	}

	return false
}

// Execute runs the root command and maps any returned error to the
// process exit status.
func Execute() {
	warnUnknownFlags(rootCmd, os.Args[1:], os.Stderr)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	var coded interface{ ExitCode() int }
	if errors.As(err, &coded) {
		return coded.ExitCode()
	}
	return 1
}
