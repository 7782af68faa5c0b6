package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"go.uber.org/zap"

	"stocksim-go/config"
	"stocksim-go/infrastructure/alert"
	"stocksim-go/infrastructure/logger"
	"stocksim-go/infrastructure/monitor"
	"stocksim-go/sim"
)

// 本地模拟：随机游走行情驱动订单与信用引擎。
// -cycles>0 时跑固定周期后退出；否则按 cron 计划常驻运行（可由 systemd 托管）。
func main() {
	cfgPath := flag.String("config", "", "配置文件路径（为空使用内置默认配置）")
	cycles := flag.Int("cycles", 0, "运行固定周期数后退出，0 表示常驻")
	restore := flag.Bool("restore", true, "启动时从快照恢复")
	demo := flag.Bool("demo", true, "提交演示订单")
	flag.Parse()

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	mon := monitor.New(monitor.DefaultConfig())
	ws := alert.NewWSChannel("ws")
	defer ws.Close()

	session, err := sim.BuildSession(cfg, sim.Options{
		Logger:   log,
		Monitor:  mon,
		Channels: []alert.Channel{ws},
		Restore:  *restore,
	})
	if err != nil {
		log.Fatal("build session failed", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	servers := serveHTTP(cfg.Server, mon, ws, log)
	defer shutdownHTTP(servers)

	script := newDemoScript()
	if *cycles > 0 {
		runBounded(ctx, session, *cycles, *demo, script, log)
		return
	}
	runDaemon(ctx, *cfgPath, session, *demo, script, log)
}

func loadConfig(path string) (config.AppConfig, error) {
	if path == "" {
		cfg := config.Default()
		config.ApplyEnv(&cfg)
		return cfg, config.Validate(cfg)
	}
	return config.LoadWithEnvOverrides(path)
}

func runBounded(ctx context.Context, s *sim.Session, n int, demo bool, script *demoScript, log *logger.Logger) {
	defer s.Close()
	runner := s.Runner()
	if demo {
		script.apply(s.Engine(), log)
		runner.OnStep = func(sim.StepReport) { script.apply(s.Engine(), log) }
	}
	reports, err := runner.Run(ctx, n)
	if err != nil {
		log.Warn("run stopped early", zap.Error(err), zap.Int("completed", len(reports)))
	}
	if err := s.Save(time.Now()); err != nil {
		log.LogError(err, map[string]interface{}{"stage": "snapshot"})
	}
	printSummary(s, reports)
}

func runDaemon(ctx context.Context, cfgPath string, s *sim.Session, demo bool, script *demoScript, log *logger.Logger) {
	sch := sim.NewScheduler(ctx, s, log)
	if demo {
		script.apply(s.Engine(), log)
	}
	watchdog, _ := daemon.SdWatchdogEnabled(false)
	var lastPing time.Time
	sch.OnStep = func(cur *sim.Session, _ sim.StepReport) {
		if demo {
			script.apply(cur.Engine(), log)
		}
		if watchdog > 0 && time.Since(lastPing) >= watchdog/2 {
			daemon.SdNotify(false, daemon.SdNotifyWatchdog)
			lastPing = time.Now()
		}
	}
	cfg := s.Config()
	if err := sch.Register(cfg.Session.CycleSchedule, cfg.Session.SaveSchedule); err != nil {
		log.Fatal("register schedule failed", zap.Error(err))
	}

	if cfgPath != "" {
		w, err := config.NewWatcher(cfgPath, time.Second, log)
		if err != nil {
			log.Warn("config watcher disabled", zap.Error(err))
		} else if err := w.Start(ctx, sch.Stage); err != nil {
			log.Warn("config watcher disabled", zap.Error(err))
		} else {
			defer w.Stop()
		}
	}

	sch.Start()
	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Warn("sd_notify ready failed", zap.Error(err))
	} else if ok {
		log.Info("systemd notified ready")
	}

	// SIGHUP：以暂存配置开启新会话
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-hup:
			daemon.SdNotify(false, daemon.SdNotifyReloading)
			if err := sch.Rotate(sim.Options{}); err != nil {
				log.LogError(err, map[string]interface{}{"stage": "rotate_session"})
			}
			daemon.SdNotify(false, daemon.SdNotifyReady)
		}
	}

	daemon.SdNotify(false, daemon.SdNotifyStopping)
	sch.Stop()
	cur := sch.Session()
	if err := cur.Save(time.Now()); err != nil {
		log.LogError(err, map[string]interface{}{"stage": "snapshot"})
	}
	cur.Close()
	log.Info("simulation stopped", zap.Int("cycle", cur.Engine().Cycle()))
}

func printSummary(s *sim.Session, reports []sim.StepReport) {
	eng := s.Engine()
	stats := eng.GetStatistics()
	ev := eng.CreditEvaluation()
	fmt.Printf("cycles run: %d (engine cycle %d)\n", len(reports), eng.Cycle())
	fmt.Printf("executed=%d partial=%d failed=%d expired=%d triggered=%d\n",
		stats.TotalExecuted, stats.TotalPartial, stats.TotalFailed, stats.TotalExpired, stats.TotalTriggered)
	fmt.Printf("cash=%.2f debt=%.2f score=%.1f pending=%d\n",
		eng.Portfolio().Cash(), eng.Loans().Debt(), eng.Loans().Score(), eng.Book().Len())
	fmt.Printf("credit line=%.2f max=%.2f available=%.2f\n", ev.Recommended, ev.Maximum, ev.Available)
	for _, h := range eng.Portfolio().Holdings() {
		fmt.Printf("  long  %-6s %6d @ %.2f\n", h.Symbol, h.Shares, h.AvgCost)
	}
	for _, sp := range eng.Portfolio().Shorts() {
		fmt.Printf("  short %-6s %6d @ %.2f\n", sp.Symbol, sp.Shares, sp.EntryPrice)
	}
}

func serveHTTP(cfg config.ServerConfig, mon *monitor.Monitor, ws *alert.WSChannel, log *logger.Logger) []*http.Server {
	muxes := make(map[string]*http.ServeMux)
	mux := func(addr string) *http.ServeMux {
		if m, ok := muxes[addr]; ok {
			return m
		}
		m := http.NewServeMux()
		muxes[addr] = m
		return m
	}
	if cfg.MetricsAddr != "" {
		mux(cfg.MetricsAddr).Handle("/metrics", mon.Handler())
	}
	if cfg.WSAddr != "" {
		mux(cfg.WSAddr).Handle("/ws", ws)
	}

	var servers []*http.Server
	for addr, m := range muxes {
		srv := &http.Server{Addr: addr, Handler: m, ReadHeaderTimeout: 5 * time.Second}
		servers = append(servers, srv)
		go func() {
			log.Info("http listen", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Warn("http server error", zap.String("addr", srv.Addr), zap.Error(err))
			}
		}()
	}
	return servers
}

func shutdownHTTP(servers []*http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for _, srv := range servers {
		srv.Shutdown(ctx)
	}
}
