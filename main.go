package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"

	"outlandersync/client"
	"outlandersync/journal"
)

// 同步器命令行宿主：连接游戏服务端，把入站状态应用到实体表，
// 标准输入的每一行作为一条本地指令（move <dir> | stop | shoot [id] | equip [weapon]）。
func main() {
	cfg := client.DefaultConfig()
	cfg.RegisterFlags(flag.CommandLine)
	flag.Parse()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log, err := client.InitLogger(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Errorf("exit: %v", err)
		_ = log.Sync()
		os.Exit(1)
	}
}

func run(cfg client.Config, log *zap.SugaredLogger) error {
	// 优雅退出（Ctrl+C）
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// 仅在连接成功之后的断开才结束运行；重试期间的 Errored 由 Retry 处理
	var opened atomic.Bool
	ended := func(st client.ConnState) bool {
		return st == client.StateClosed || st == client.StateErrored
	}
	opts := client.Options{
		Logger:   log,
		Observer: logObserver(log),
		OnState: func(st client.ConnState, err error) {
			if ended(st) && opened.Load() {
				log.Infof("session ended: %s", st)
				cancel()
			}
		},
	}

	if cfg.RecordPath != "" {
		f, err := os.Create(cfg.RecordPath)
		if err != nil {
			return fmt.Errorf("create journal: %w", err)
		}
		defer f.Close()
		w := bufio.NewWriter(f)
		defer w.Flush()
		opts.Recorder = journal.NewWriter(w)
	}

	sess := client.NewSession(cfg, opts)

	if cfg.DebugAddr != "" {
		srv := &http.Server{Addr: cfg.DebugAddr, Handler: client.NewDebugHandler(sess)}
		go func() {
			log.Infof("debug endpoint on %s", cfg.DebugAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Warnf("debug listen: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if cfg.ReplayPath != "" {
		return replay(cfg.ReplayPath, sess, log)
	}

	// 先启动应用循环，重试期间的状态事件也能被消费
	loopDone := make(chan error, 1)
	go func() { loopDone <- sess.Run(ctx) }()

	open := func(ctx context.Context) error { return sess.Open(ctx, cfg.ServerURL) }
	var err error
	if cfg.Retry {
		err = client.Retry(ctx, cfg.Backoff(), log, open)
	} else {
		err = open(ctx)
	}
	if err != nil {
		cancel()
		<-loopDone
		return err
	}
	opened.Store(true)
	if ended(sess.State()) {
		cancel()
	}

	go readCommands(os.Stdin, sess.Commands(), log)

	err = <-loopDone
	if cerr := sess.Close(); cerr != nil {
		log.Warnf("close: %v", cerr)
	}
	return err
}

func replay(path string, sess *client.Session, log *zap.SugaredLogger) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()
	applied, failed, err := journal.Replay(bufio.NewReader(f), sess.Apply)
	log.Infof("replay %s: applied=%d failed=%d entities=%d", path, applied, failed, sess.Store().Len())
	return err
}

func readCommands(r io.Reader, cmd *client.Commander, log *zap.SugaredLogger) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		arg := ""
		if len(fields) > 1 {
			arg = fields[1]
		}
		var err error
		switch strings.ToLower(fields[0]) {
		case "move":
			err = cmd.Move(client.Direction(arg))
		case "stop":
			err = cmd.Stop()
		case "shoot":
			err = cmd.ShootAt(client.EntityID(arg))
		case "equip":
			err = cmd.EquipWeapon(arg)
		default:
			err = fmt.Errorf("unknown command %q", fields[0])
		}
		if err != nil {
			log.Warnf("command %q: %v", sc.Text(), err)
		}
	}
}

func logObserver(log *zap.SugaredLogger) client.Observer {
	return client.ObserverFuncs{
		OnEntityChanged: func(id client.EntityID, kind client.ChangeKind, e client.Entity) {
			log.Debugf("entity %s %s: pos=(%.1f,%.1f) hp=%d/%d %s/%s local=%t dead=%t",
				id, kind, e.X, e.Y, e.Health, e.MaxHealth, e.Action, e.Direction, e.IsLocal, e.Dead)
		},
		OnBoardResized: func(width, height int) {
			log.Infof("board resized to %dx%d", width, height)
		},
	}
}
