package main

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"gridpeer/node"
)

type Config struct {
	admin      string
	bind       string
	headless   bool
	height     uint32
	logFile    string
	maxPeers   int
	movement   string
	port       int
	senderPort int
	side       uint32
	verbose    bool
	version    bool
	width      uint32
}

func (c *Config) validate() error {
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.senderPort < 0 || c.senderPort > 65535 {
		return fmt.Errorf("invalid sender port (must be between 0-65535 inclusive): %d", c.senderPort)
	}
	if c.senderPort == c.port {
		return fmt.Errorf("sender port and receiver port must differ: %d", c.port)
	}
	if c.maxPeers < 1 || c.maxPeers > node.MaxWirePeers {
		return fmt.Errorf("invalid max peers (must be between 1-%d inclusive): %d", node.MaxWirePeers, c.maxPeers)
	}
	if c.side == 0 {
		return fmt.Errorf("square side must be positive")
	}
	if net.ParseIP(c.bind) == nil {
		return fmt.Errorf("invalid bind address: %q", c.bind)
	}
	mv, err := c.movementRule()
	if err != nil {
		return err
	}
	if mv.Mode == node.MovementWrap && (mv.Width == 0 || mv.Height == 0) {
		return fmt.Errorf("--movement=wrap needs --width and --height")
	}
	return nil
}

func (c *Config) movementRule() (node.Movement, error) {
	mode, err := node.ParseMovementMode(c.movement)
	if err != nil {
		return node.Movement{}, err
	}
	return node.Movement{Mode: mode, Width: c.width, Height: c.height}, nil
}

func (c *Config) receiverAddr() string {
	return net.JoinHostPort(c.bind, strconv.Itoa(c.port))
}

func (c *Config) senderAddr() string {
	return net.JoinHostPort(c.bind, strconv.Itoa(c.senderPort))
}

// parseHostArg 接受 ip、ip:port 或 主机名[:port]；缺省端口为约定的接收端口。
// 主机名解析出的每个地址都可能代表 host，全部返回，由 Sender 去重后逐个发送 PlayerJoin。
func parseHostArg(ctx context.Context, arg string, port int) ([]netip.AddrPort, error) {
	arg = strings.TrimSpace(arg)
	if ap, err := netip.ParseAddrPort(arg); err == nil {
		return []netip.AddrPort{ap}, nil
	}
	if ip, err := netip.ParseAddr(strings.Trim(arg, "[]")); err == nil {
		return []netip.AddrPort{netip.AddrPortFrom(ip, uint16(port))}, nil
	}
	host := arg
	if h, p, err := net.SplitHostPort(arg); err == nil {
		n, err := strconv.ParseUint(p, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid port in host address %q: %w", arg, err)
		}
		host, port = h, int(n)
	}
	ips, err := net.DefaultResolver.LookupNetIP(ctx, "ip", host)
	if err != nil {
		return nil, fmt.Errorf("unable to parse host address %q: %w", arg, err)
	}
	out := make([]netip.AddrPort, 0, len(ips))
	for _, ip := range ips {
		out = append(out, netip.AddrPortFrom(ip.Unmap(), uint16(port)))
	}
	return out, nil
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("GRIDPEER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "gridpeer [host-address]",
		Short:         "Peer-to-peer terminal grid game. Without an address, hosts a new session.",
		Args:          cobra.MaximumNArgs(1),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return Play(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVar(&cfg.admin, "admin", "", "address for the admin/metrics/spectator http server, empty to disable (env: GRIDPEER_ADMIN)")
	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "interface to bind both sockets to (env: GRIDPEER_BIND)")
	fs.BoolVar(&cfg.headless, "headless", false, "no terminal ui; read directions from stdin (env: GRIDPEER_HEADLESS)")
	fs.Uint32Var(&cfg.height, "height", 24, "grid height, 0 for unbounded (env: GRIDPEER_HEIGHT)")
	fs.StringVar(&cfg.logFile, "log-file", "gridpeer.log", "log file path (env: GRIDPEER_LOG_FILE)")
	fs.IntVar(&cfg.maxPeers, "max-peers", 256, "maximum session size accepted when hosting (env: GRIDPEER_MAX_PEERS)")
	fs.StringVarP(&cfg.movement, "movement", "m", "clamp", "edge behaviour: clamp, wrap or unbounded (env: GRIDPEER_MOVEMENT)")
	fs.IntVarP(&cfg.port, "port", "p", node.DefaultReceiverPort, "session-wide receiver port (env: GRIDPEER_PORT)")
	fs.IntVar(&cfg.senderPort, "sender-port", 9998, "local port for outbound datagrams, 0 for any (env: GRIDPEER_SENDER_PORT)")
	fs.Uint32Var(&cfg.side, "side", 3, "square side in cells (env: GRIDPEER_SIDE)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "log debug output (env: GRIDPEER_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: GRIDPEER_VERSION)")
	fs.Uint32Var(&cfg.width, "width", 80, "grid width, 0 for unbounded (env: GRIDPEER_WIDTH)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("gridpeer v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
