package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/cobra"

	cfgpkg "github.com/tokenscope/tokenscope/internal/config"
	"github.com/tokenscope/tokenscope/pkg/tokenscope"
)

var addressRe = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)

type rootOptions struct {
	rpcURL   string
	timeout  time.Duration
	asJSON   bool
	percent  float64
	usePct   bool
	bytecode string
}

func newRootCmd() *cobra.Command {
	defaults := cfgpkg.Load()
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "tokenscope",
		Short: "Classify a contract's token standard and proxy pattern",
		Long: `tokenscope classifies an Ethereum contract as ERC-20, ERC-721 or
ERC-1155 from its ABI or deployed bytecode, and detects proxy delegation
(EIP-1167 minimal proxies, EIP-1967/1822 upgradeable proxies, beacons).

Classification never trusts self-reported metadata: it scores the selectors a
contract actually exposes against the reference standard surfaces.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&opts.rpcURL, "rpc", defaults.ProviderURL, "Ethereum RPC endpoint (ETH_PROVIDER_URL)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", defaults.Timeout, "overall timeout for node-backed commands (CLASSIFY_TIMEOUT)")
	root.PersistentFlags().BoolVar(&opts.asJSON, "json", false, "emit JSON instead of plain text")

	root.AddCommand(
		newSigsCmd(opts),
		newAbiCmd(opts),
		newBytecodeCmd(opts),
		newProxyCmd(opts),
		newResolveCmd(opts),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func newSigsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sigs <abi.json|->",
		Short: "Print the canonical selector set of an ABI",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			sigs, err := tokenscope.GetSigs(raw)
			if err != nil {
				return err
			}
			if opts.asJSON {
				return writeJSON(cmd.OutOrStdout(), sigs)
			}
			for _, s := range sigs {
				fmt.Fprintln(cmd.OutOrStdout(), s)
			}
			return nil
		},
	}
}

func newAbiCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "abi <abi.json|->",
		Short: "Classify a contract from its ABI",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			var (
				std string
				ok  bool
			)
			if opts.usePct {
				std, ok, err = tokenscope.GetErcByAbiPercent(raw, opts.percent)
			} else {
				std, ok, err = tokenscope.GetErcByAbi(raw)
			}
			if err != nil {
				return err
			}
			return writeStandard(cmd.OutOrStdout(), opts.asJSON, std, ok)
		},
	}
	addStrategyFlags(cmd, opts)
	return cmd
}

func newBytecodeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bytecode <hex|@file|->",
		Short: "Classify a contract from its deployed bytecode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := readBytecodeArg(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			var cls tokenscope.Classification
			if opts.usePct {
				cls, err = tokenscope.GetErcByBytecodePercent(code, opts.percent)
			} else {
				cls, err = tokenscope.GetErcByBytecode(code)
			}
			if err != nil {
				return err
			}
			return writeClassification(cmd.OutOrStdout(), opts.asJSON, cls)
		},
	}
	addStrategyFlags(cmd, opts)
	return cmd
}

func newProxyCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "proxy <hex|@file|-|0xaddress>",
		Short: "Detect the proxy pattern of bytecode, or resolve a live target",
		Long: `With bytecode input, runs the offline detector. With an address and
--rpc, additionally races the known storage-slot and interface-call probes
against the live contract to resolve the delegate target.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if addressRe.MatchString(args[0]) {
				if opts.rpcURL == "" {
					return fmt.Errorf("resolving a proxy target for an address requires --rpc")
				}
				ctx, cancel := commandContext(cmd, opts)
				defer cancel()
				target, ok, err := tokenscope.GetProxyAddress(ctx, args[0], opts.rpcURL, opts.bytecode)
				if err != nil {
					return err
				}
				if opts.asJSON {
					return writeJSON(cmd.OutOrStdout(), map[string]any{"target": target, "found": ok})
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "no target found")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), target)
				return nil
			}
			code, err := readBytecodeArg(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			finding, err := tokenscope.GetProxyStatus(code)
			if err != nil {
				return err
			}
			if opts.asJSON {
				return writeJSON(cmd.OutOrStdout(), finding)
			}
			if finding == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "not a proxy")
				return nil
			}
			if finding.Target != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", finding.Kind, finding.Target)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), finding.Kind)
			return nil
		},
	}
}

func newResolveCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <0xaddress>",
		Short: "Classify an address through its proxy chain via a node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !addressRe.MatchString(args[0]) {
				return fmt.Errorf("invalid address %q; expected 0x-prefixed 40 hex chars", args[0])
			}
			if opts.rpcURL == "" {
				return fmt.Errorf("resolve requires --rpc (or ETH_PROVIDER_URL)")
			}
			ctx, cancel := commandContext(cmd, opts)
			defer cancel()
			cls, err := tokenscope.GetErcByNode(ctx, args[0], opts.rpcURL, opts.bytecode)
			if err != nil {
				return err
			}
			return writeClassification(cmd.OutOrStdout(), opts.asJSON, cls)
		},
	}
	cmd.Flags().StringVar(&opts.bytecode, "bytecode", "", "already-fetched bytecode hex, skips eth_getCode")
	return cmd
}

func addStrategyFlags(cmd *cobra.Command, opts *rootOptions) {
	cmd.Flags().Float64Var(&opts.percent, "percent", tokenscope.DefaultPercentThreshold, "percent-mode threshold (0-100)")
	cmd.Flags().BoolVar(&opts.usePct, "percent-mode", false, "use the legacy percent-threshold strategy")
}

func commandContext(cmd *cobra.Command, opts *rootOptions) (ctx context.Context, cancel context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), opts.timeout)
}

// readInput loads ABI JSON from a file path or stdin ("-").
func readInput(stdin io.Reader, arg string) ([]byte, error) {
	if arg == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(arg)
}

// readBytecodeArg accepts literal hex, "@file", or "-" for stdin.
func readBytecodeArg(stdin io.Reader, arg string) (string, error) {
	switch {
	case arg == "-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	case strings.HasPrefix(arg, "@"):
		b, err := os.ReadFile(strings.TrimPrefix(arg, "@"))
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	default:
		return arg, nil
	}
}

func writeStandard(w io.Writer, asJSON bool, std string, ok bool) error {
	if asJSON {
		return writeJSON(w, map[string]any{"standard": std, "match": ok})
	}
	if !ok {
		fmt.Fprintln(w, "no match")
		return nil
	}
	fmt.Fprintln(w, std)
	return nil
}

func writeClassification(w io.Writer, asJSON bool, cls tokenscope.Classification) error {
	if asJSON {
		return writeJSON(w, cls)
	}
	switch {
	case cls.Standard != "":
		fmt.Fprintln(w, cls.Standard)
	case cls.Proxy != nil && cls.Proxy.Target != "":
		fmt.Fprintf(w, "proxy %s %s\n", cls.Proxy.Kind, cls.Proxy.Target)
	case cls.Proxy != nil:
		fmt.Fprintf(w, "proxy %s\n", cls.Proxy.Kind)
	default:
		fmt.Fprintln(w, "no match")
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
