// Command c64bridge talks to a Commodore 64 — real hardware over its REST API
// or a supervised VICE emulator — from the command line, and can serve the
// same surface over HTTP.
package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"strconv"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/retrolab/c64bridge/internal/config"
	"github.com/retrolab/c64bridge/internal/logging"
	"github.com/retrolab/c64bridge/internal/selector"
	"github.com/retrolab/c64bridge/internal/server"
	"github.com/retrolab/c64bridge/internal/supervise"
)

const defaultConfigPath = "c64bridge.toml"

func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

type rootFlags struct {
	configPath  string
	mode        string
	hardwareURL string
}

func main() {
	logging.ConfigureRuntime("c64bridge")

	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "c64bridge",
		Short:         "Bridge to a Commodore 64: Ultimate hardware or a supervised VICE emulator",
		Version:       buildVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to config file (default: ./c64bridge.toml)")
	root.PersistentFlags().StringVar(&flags.mode, "mode", "", "force backend: hardware|emulator (overrides C64BRIDGE_MODE)")
	root.PersistentFlags().StringVar(&flags.hardwareURL, "hardware-url", "", "force a hardware base URL, bypassing config and environment")

	root.AddCommand(
		newServeCmd(flags),
		newRunCmd(flags, true),
		newRunCmd(flags, false),
		newReadmemCmd(flags),
		newWritememCmd(flags),
		newActionCmd(flags, "reset", "Reset the machine"),
		newActionCmd(flags, "reboot", "Reboot the machine"),
		newInfoCmd(flags),
		newVersionCmd(flags),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "c64bridge: %v\n", err)
		os.Exit(1)
	}
}

// compose makes the one backend selection for this invocation. The returned
// cleanup stops any emulator subprocess the supervisor launched.
func compose(ctx context.Context, flags *rootFlags) (selector.Selection, func(), error) {
	cfg, err := loadConfig(flags.configPath)
	if err != nil {
		return selector.Selection{}, nil, err
	}

	sup := supervise.New(supervise.Config{})
	sel, err := selector.Select(ctx, selector.Options{
		ForceURL:   flags.hardwareURL,
		Mode:       flags.mode,
		Config:     cfg,
		Supervisor: sup,
	})
	if err != nil {
		sup.StopAll()
		return selector.Selection{}, nil, err
	}
	return sel, sup.StopAll, nil
}

// loadConfig treats a missing file at the default path as "no config"; an
// explicitly named file must exist.
func loadConfig(path string) (*config.Config, error) {
	explicit := path != ""
	if path == "" {
		path = defaultConfigPath
	}
	cfg, err := config.Load(path)
	if err != nil {
		if errors.Is(err, config.ErrNotFound) && !explicit {
			return nil, nil
		}
		return nil, err
	}
	return &cfg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func newServeCmd(flags *rootFlags) *cobra.Command {
	var addr string
	var corsOrigins []string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the backend over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			sel, cleanup, err := compose(ctx, flags)
			if err != nil {
				return err
			}
			defer cleanup()

			srvCfg, err := loadServeConfig(flags.configPath)
			if err != nil {
				return err
			}
			// Flags beat file config, but only when actually set.
			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })
			if changed["addr"] {
				srvCfg.Addr = addr
			}
			if changed["cors-origin"] {
				srvCfg.CorsOrigins = corsOrigins
			}

			log.Info().Str("reason", sel.Reason).Str("details", sel.Details).Msg("backend selected")
			return server.New(srvCfg, sel).Run(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8064", "listen address")
	cmd.Flags().StringSliceVar(&corsOrigins, "cors-origin", nil, "allowed CORS origin (repeatable)")
	return cmd
}

func newRunCmd(flags *rootFlags, run bool) *cobra.Command {
	use, short := "run <file.prg>", "Load a PRG image and start it"
	if !run {
		use, short = "load <file.prg>", "Load a PRG image without starting it"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			sel, cleanup, err := compose(ctx, flags)
			if err != nil {
				return err
			}
			defer cleanup()

			if run {
				return sel.Backend.RunPrgFile(ctx, args[0])
			}
			return sel.Backend.LoadPrgFile(ctx, args[0])
		},
	}
}

func newReadmemCmd(flags *rootFlags) *cobra.Command {
	var length int
	cmd := &cobra.Command{
		Use:   "readmem <hex-address>",
		Short: "Read machine memory, hex-dumped to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			address, err := strconv.ParseUint(args[0], 16, 32)
			if err != nil {
				return fmt.Errorf("address must be hexadecimal: %w", err)
			}
			ctx, cancel := signalContext()
			defer cancel()

			sel, cleanup, err := compose(ctx, flags)
			if err != nil {
				return err
			}
			defer cleanup()

			data, err := sel.Backend.ReadMemory(ctx, int(address), length)
			if err != nil {
				return err
			}
			fmt.Print(hex.Dump(data))
			return nil
		},
	}
	cmd.Flags().IntVar(&length, "length", 16, "number of bytes to read")
	return cmd
}

func newWritememCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "writemem <hex-address> <hex-bytes>",
		Short: "Write bytes into machine memory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			address, err := strconv.ParseUint(args[0], 16, 32)
			if err != nil {
				return fmt.Errorf("address must be hexadecimal: %w", err)
			}
			data, err := hex.DecodeString(args[1])
			if err != nil {
				return fmt.Errorf("data must be hexadecimal: %w", err)
			}
			ctx, cancel := signalContext()
			defer cancel()

			sel, cleanup, err := compose(ctx, flags)
			if err != nil {
				return err
			}
			defer cleanup()

			return sel.Backend.WriteMemory(ctx, int(address), data)
		},
	}
}

func newActionCmd(flags *rootFlags, name, short string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			sel, cleanup, err := compose(ctx, flags)
			if err != nil {
				return err
			}
			defer cleanup()

			if name == "reboot" {
				return sel.Backend.Reboot(ctx)
			}
			return sel.Backend.Reset(ctx)
		},
	}
}

func newInfoCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show device identification and the selection decision",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			sel, cleanup, err := compose(ctx, flags)
			if err != nil {
				return err
			}
			defer cleanup()

			info, err := sel.Backend.Info(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("backend:  %s (%s)\n", sel.Kind, sel.Details)
			fmt.Printf("reason:   %s\n", sel.Reason)
			fmt.Printf("product:  %s\n", info.Product)
			if info.Hostname != "" {
				fmt.Printf("hostname: %s\n", info.Hostname)
			}
			if info.Unique != "" {
				fmt.Printf("unique:   %s\n", info.Unique)
			}
			return nil
		},
	}
}

func newVersionCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the device software version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			sel, cleanup, err := compose(ctx, flags)
			if err != nil {
				return err
			}
			defer cleanup()

			v, err := sel.Backend.Version(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("%s (%s)\n", v.Version, v.Detail)
			return nil
		},
	}
}
