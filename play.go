package main

import (
	"context"
	"fmt"
	"io"
	"net/netip"
	"os"
	"sync"

	"go.uber.org/multierr"

	"gridpeer/node"
	"gridpeer/term"
)

// printRenderer 无终端模式下把更新逐行写到 stdout
type printRenderer struct {
	mu sync.Mutex
	w  io.Writer
}

func (p *printRenderer) OnLocalUpdate(pl node.Player) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "self %d %s %s\n", pl.ID, pl.Coordinates, pl.Color)
}

func (p *printRenderer) OnRemoteUpdate(id node.Identity, at node.Point, pl node.Player) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "peer %d %s %s\n", id, at, pl.Color)
}

// Play 建立两个套接字，加入（或创建）会话，并行运行接收循环与本地输入循环
func Play(ctx context.Context, cfg *Config, args []string) error {
	if err := node.InitLogger(cfg.logFile, cfg.verbose); err != nil {
		return err
	}
	defer node.SyncLogger()

	mv, err := cfg.movementRule()
	if err != nil {
		return err
	}

	recv, err := node.NewReceiver(cfg.receiverAddr())
	if err != nil {
		return err
	}
	defer recv.Close()

	role := node.RoleHost
	hosts := []netip.AddrPort{recv.Addr()}
	if len(args) == 1 {
		targets, err := parseHostArg(ctx, args[0], cfg.port)
		if err != nil {
			return err
		}
		role = node.RoleJoiner
		hosts = targets
	}

	metrics := node.NewMetrics()
	send, err := node.NewSender(cfg.senderAddr(), hosts, cfg.maxPeers, metrics)
	if err != nil {
		return err
	}
	defer send.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var renderers node.Renderers
	var spectators *node.Spectators
	if cfg.admin != "" {
		spectators = node.NewSpectators()
		renderers = append(renderers, spectators)
	}

	var intents <-chan node.Direction
	if cfg.headless {
		renderers = append(renderers, &printRenderer{w: os.Stdout})
		intents = node.ReadIntents(ctx, os.Stdin)
	} else {
		t, err := term.Open()
		if err != nil {
			return err
		}
		defer t.Close()
		renderers = append(renderers, t)
		intents = t.Intents(ctx)
	}

	session, err := node.NewSession(node.Config{
		Role:         role,
		ReceiverPort: uint16(cfg.port),
		Side:         cfg.side,
		Movement:     mv,
	}, recv, send, renderers, metrics)
	if err != nil {
		return err
	}

	node.Log.Infow("starting", "version", releaseVersion, "role", role,
		"receiver", recv.Addr(), "sender", send.Addr(), "hosts", hosts, "movement", mv.Mode)

	return serve(ctx, cfg, session, recv, metrics, spectators, intents)
}

// serve 运行接收循环、管理接口与本地输入循环，直到输入结束或 ctx 取消。
// 接收套接字故障只让会话进入 Disconnected；输入循环与管理接口继续服务。
func serve(ctx context.Context, cfg *Config, session *node.Session, recv *node.Receiver,
	metrics *node.Metrics, spectators *node.Spectators, intents <-chan node.Direction) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errs := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := session.Run(ctx); err != nil {
			errs <- fmt.Errorf("receive loop: %w", err)
		}
	}()

	if cfg.admin != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := node.ServeAdmin(ctx, cfg.admin, node.NewAdminRouter(session, metrics, spectators)); err != nil {
				errs <- fmt.Errorf("admin server: %w", err)
				cancel()
			}
		}()
	}

	if err := session.Join(); err != nil {
		node.Log.Warnw("join sent with errors", "err", err)
	}

	_ = session.RunInput(ctx, intents)
	cancel()
	_ = recv.Close()
	wg.Wait()
	close(errs)

	var result error
	for err := range errs {
		result = multierr.Append(result, err)
	}
	node.Log.Infow("stopped", "status", session.Status())
	return result
}
