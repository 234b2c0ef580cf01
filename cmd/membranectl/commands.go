// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/spf13/pflag"

	"github.com/libertaria/membrane/lib/agent"
	"github.com/libertaria/membrane/lib/alert"
	"github.com/libertaria/membrane/lib/alertpub"
	"github.com/libertaria/membrane/lib/config"
	"github.com/libertaria/membrane/lib/control"
	"github.com/libertaria/membrane/lib/identity"
	"github.com/libertaria/membrane/lib/version"
	"github.com/libertaria/membrane/lib/wire"
)

// newRoot builds the command tree. Command output goes to out.
func newRoot(out io.Writer) *Command {
	defaults := config.Default()
	controlPath := defaults.Control.SocketPath

	controlFlag := func(flagSet *pflag.FlagSet) {
		flagSet.StringVar(&controlPath, "control", controlPath, "agent control socket")
	}
	call := func(ctx context.Context, action string, fields map[string]any, result any) error {
		return control.NewClient(controlPath).Call(ctx, action, fields, result)
	}

	return &Command{
		Name:        "membranectl",
		Description: "Inspect and drive a running membrane agent.",
		Output:      out,
		Subcommands: []*Command{
			statusCommand(out, controlFlag, call),
			alertsCommand(out, controlFlag, call),
			decideCommand(out, controlFlag, call),
			sweepCommand(out, controlFlag, call),
			punishCommand(out, controlFlag, call),
			clearCommand(out, controlFlag, call),
			injectCommand(out, defaults.Listener.SocketPath),
			watchCommand(out),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(context.Context, []string) error {
					fmt.Fprintf(out, "membranectl %s\n", version.Full())
					return nil
				},
			},
		},
	}
}

type callFunc func(ctx context.Context, action string, fields map[string]any, result any) error

func flagSet(name string, register ...func(*pflag.FlagSet)) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
	for _, add := range register {
		add(flagSet)
	}
	return flagSet
}

func noArgs(name string, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("%s takes no arguments, got %q", name, args)
	}
	return nil
}

func statusCommand(out io.Writer, controlFlag func(*pflag.FlagSet), call callFunc) *Command {
	return &Command{
		Name:    "status",
		Summary: "Show counters, thresholds and alert totals",
		Flags:   func() *pflag.FlagSet { return flagSet("status", controlFlag) },
		Run: func(ctx context.Context, args []string) error {
			if err := noArgs("status", args); err != nil {
				return err
			}
			var status agent.Status
			if err := call(ctx, agent.ActionStatus, nil, &status); err != nil {
				return err
			}
			renderStatus(out, status)
			return nil
		},
	}
}

func alertsCommand(out io.Writer, controlFlag func(*pflag.FlagSet), call callFunc) *Command {
	var (
		priority  string
		atOrAbove string
		since     uint64
	)
	return &Command{
		Name:    "alerts",
		Summary: "List stored alerts, oldest first",
		Flags: func() *pflag.FlagSet {
			return flagSet("alerts", controlFlag, func(flagSet *pflag.FlagSet) {
				flagSet.StringVar(&priority, "priority", "", "only this priority (critical, warning, info)")
				flagSet.StringVar(&atOrAbove, "at-or-above", "", "only this priority or more severe")
				flagSet.Uint64Var(&since, "since", 0, "only alerts with a sequence number above this")
			})
		},
		Run: func(ctx context.Context, args []string) error {
			if err := noArgs("alerts", args); err != nil {
				return err
			}
			if priority != "" && atOrAbove != "" {
				return errors.New("--priority and --at-or-above are mutually exclusive")
			}
			fields := map[string]any{}
			for name, value := range map[string]string{"priority": priority, "at_or_above": atOrAbove} {
				if value == "" {
					continue
				}
				parsed, err := alert.ParsePriority(value)
				if err != nil {
					return err
				}
				fields[name] = string(parsed)
			}
			if since > 0 {
				fields["since"] = since
			}
			var response agent.AlertsResponse
			if err := call(ctx, agent.ActionAlerts, fields, &response); err != nil {
				return err
			}
			renderAlerts(out, response.Alerts)
			return nil
		},
	}
}

func decideCommand(out io.Writer, controlFlag func(*pflag.FlagSet), call callFunc) *Command {
	return &Command{
		Name:    "decide",
		Summary: "Ask the agent how it would treat traffic from a DID",
		Usage:   "membranectl decide <did-hex> [flags]",
		Flags:   func() *pflag.FlagSet { return flagSet("decide", controlFlag) },
		Run: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return errors.New("decide requires exactly one DID")
			}
			did, err := identity.Parse(args[0])
			if err != nil {
				return err
			}
			var response agent.DecideResponse
			if err := call(ctx, agent.ActionDecide, map[string]any{"did": did}, &response); err != nil {
				return err
			}
			fmt.Fprintf(out, "%s  trust %.3f\n", renderDecision(response.Decision), response.Score)
			if response.Error != "" {
				fmt.Fprintln(out, mutedStyle.Render("oracle: "+response.Error))
			}
			return nil
		},
	}
}

func sweepCommand(out io.Writer, controlFlag func(*pflag.FlagSet), call callFunc) *Command {
	return &Command{
		Name:    "sweep",
		Summary: "Run a betrayal sweep over watched nodes now",
		Flags:   func() *pflag.FlagSet { return flagSet("sweep", controlFlag) },
		Run: func(ctx context.Context, args []string) error {
			if err := noArgs("sweep", args); err != nil {
				return err
			}
			var report agent.SweepReport
			if err := call(ctx, agent.ActionSweep, nil, &report); err != nil {
				return err
			}
			fmt.Fprintf(out, "swept %d nodes in %s: %d failures, %d alerts\n",
				report.Watched, report.Duration, report.Failures, len(report.Alerts))
			for _, a := range report.Alerts {
				renderAlert(out, a)
			}
			return nil
		},
	}
}

func punishCommand(out io.Writer, controlFlag func(*pflag.FlagSet), call callFunc) *Command {
	return &Command{
		Name:    "punish",
		Summary: "Issue a slash signal if a node's betrayal score warrants one",
		Usage:   "membranectl punish <node-id> [flags]",
		Flags:   func() *pflag.FlagSet { return flagSet("punish", controlFlag) },
		Run: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return errors.New("punish requires exactly one node id")
			}
			node, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid node id %q: %w", args[0], err)
			}
			var response agent.PunishResponse
			err = call(ctx, agent.ActionPunish, map[string]any{"node": uint32(node)}, &response)
			var remote *control.Error
			if errors.As(err, &remote) && remote.Code == agent.CodeNotGuilty {
				fmt.Fprintln(out, mutedStyle.Render("not guilty: "+remote.Message))
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s %s\n", priorityStyles[alert.Critical].Render("slashed"), response.Target)
			fmt.Fprintf(out, "  reason    %d\n  severity  %d\n  evidence  %s\n  issued    %s\n  signal    %s\n",
				response.Reason, response.Severity,
				hex.EncodeToString(response.EvidenceHash),
				response.IssuedAt.UTC().Format(time.RFC3339),
				hex.EncodeToString(response.Signal),
			)
			return nil
		},
	}
}

func clearCommand(out io.Writer, controlFlag func(*pflag.FlagSet), call callFunc) *Command {
	return &Command{
		Name:    "clear",
		Summary: "Drop every stored alert",
		Flags:   func() *pflag.FlagSet { return flagSet("clear", controlFlag) },
		Run: func(ctx context.Context, args []string) error {
			if err := noArgs("clear", args); err != nil {
				return err
			}
			var response agent.ClearResponse
			if err := call(ctx, agent.ActionClearAlerts, nil, &response); err != nil {
				return err
			}
			fmt.Fprintf(out, "cleared %d alerts\n", response.Cleared)
			return nil
		},
	}
}

// injectCommand writes synthetic L0 frames to the agent's listener
// socket, for exercising a deployment without a transport.
func injectCommand(out io.Writer, defaultSocket string) *Command {
	socketPath := defaultSocket
	socketFlag := func(flagSet *pflag.FlagSet) {
		flagSet.StringVar(&socketPath, "socket", socketPath, "agent L0 event socket")
	}
	send := func(events ...wire.Event) error {
		connection, err := net.Dial("unix", socketPath)
		if err != nil {
			return fmt.Errorf("connecting to %s: %w", socketPath, err)
		}
		defer connection.Close()
		for _, event := range events {
			if err := wire.WriteEvent(connection, event); err != nil {
				return err
			}
		}
		fmt.Fprintf(out, "sent %d frames to %s\n", len(events), socketPath)
		return nil
	}

	var (
		sender     string
		packetType uint8
		size       uint32
		count      int
		peer       string
	)
	return &Command{
		Name:    "inject",
		Summary: "Send synthetic transport events to the agent",
		Subcommands: []*Command{
			{
				Name:    "packet",
				Summary: "Send packet-received frames",
				Flags: func() *pflag.FlagSet {
					return flagSet("packet", socketFlag, func(flagSet *pflag.FlagSet) {
						flagSet.StringVar(&sender, "sender", "", "sender DID (64 hex characters)")
						flagSet.Uint8Var(&packetType, "type", 0, "packet type byte")
						flagSet.Uint32Var(&size, "size", 0, "payload size in bytes")
						flagSet.IntVarP(&count, "count", "n", 1, "number of frames")
					})
				},
				Run: func(ctx context.Context, args []string) error {
					if err := noArgs("inject packet", args); err != nil {
						return err
					}
					did, err := identity.Parse(sender)
					if err != nil {
						return fmt.Errorf("--sender: %w", err)
					}
					if count < 1 {
						return fmt.Errorf("--count must be positive, got %d", count)
					}
					events := make([]wire.Event, count)
					for i := range events {
						events[i] = wire.PacketReceived{Sender: did, PacketType: packetType, PayloadSize: size}
					}
					return send(events...)
				},
			},
			{
				Name:    "connect",
				Summary: "Send a connection-established frame",
				Flags: func() *pflag.FlagSet {
					return flagSet("connect", socketFlag, func(flagSet *pflag.FlagSet) {
						flagSet.StringVar(&peer, "peer", "", "peer DID (64 hex characters)")
					})
				},
				Run: func(ctx context.Context, args []string) error {
					if err := noArgs("inject connect", args); err != nil {
						return err
					}
					did, err := identity.Parse(peer)
					if err != nil {
						return fmt.Errorf("--peer: %w", err)
					}
					return send(wire.ConnectionEstablished{Peer: did})
				},
			},
		},
	}
}

// watchCommand follows the agent's alert publisher until interrupted
// or --count alerts have arrived.
func watchCommand(out io.Writer) *Command {
	var (
		address    string
		priorities []string
		count      int
	)
	return &Command{
		Name:    "watch",
		Summary: "Stream alerts from the agent's publisher",
		Flags: func() *pflag.FlagSet {
			return flagSet("watch", func(flagSet *pflag.FlagSet) {
				flagSet.StringVar(&address, "address", "", "publisher address (alerts.publish in the agent config)")
				flagSet.StringSliceVar(&priorities, "priority", nil, "priorities to receive (repeatable; default all)")
				flagSet.IntVarP(&count, "count", "n", 0, "exit after this many alerts (0 for no limit)")
			})
		},
		Run: func(ctx context.Context, args []string) error {
			if err := noArgs("watch", args); err != nil {
				return err
			}
			if address == "" {
				return errors.New("--address is required")
			}
			filter := make([]alert.Priority, 0, len(priorities))
			for _, name := range priorities {
				priority, err := alert.ParsePriority(name)
				if err != nil {
					return err
				}
				filter = append(filter, priority)
			}
			subscriber, err := alertpub.Subscribe(address, filter...)
			if err != nil {
				return err
			}
			defer subscriber.Close()

			for received := 0; count == 0 || received < count; {
				a, err := subscriber.Receive(ctx)
				if errors.Is(err, alertpub.ErrMalformed) {
					continue
				}
				if err != nil {
					return err
				}
				renderAlert(out, a)
				received++
			}
			return nil
		},
	}
}
