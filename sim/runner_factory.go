package sim

import (
	"fmt"
	"os"
	"path/filepath"

	"stocksim-go/config"
	"stocksim-go/infrastructure/alert"
	"stocksim-go/infrastructure/logger"
	"stocksim-go/infrastructure/monitor"
	"stocksim-go/internal/engine"
	"stocksim-go/internal/store"
	"stocksim-go/inventory"
	"stocksim-go/loan"
	"stocksim-go/market"
	"stocksim-go/order"
)

// Options 组装会话时由调用方提供的可选组件。
type Options struct {
	Logger   *logger.Logger
	Monitor  *monitor.Monitor
	Channels []alert.Channel // 额外通知通道，例如 websocket
	Feed     PriceFeed       // 为空时使用配置中的随机游走行情
	Restore  bool            // 从快照恢复上一次会话
}

// BuildSession 基于配置组装一个完整会话（内存组件 + 可选 SQLite 与快照）。
func BuildSession(cfg config.AppConfig, opts Options) (*Session, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}

	channels := append([]alert.Channel(nil), opts.Channels...)
	if cfg.Alerts.LogChannel {
		channels = append(channels, alert.NewZapChannel("log", log))
	}

	var rec engine.TradeRecorder = store.NewNoopRecorder()
	var history *store.SQLiteRecorder
	if cfg.Storage.HistoryDB != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.HistoryDB), 0o755); err != nil {
			return nil, fmt.Errorf("history dir: %w", err)
		}
		h, err := store.NewSQLiteRecorder(cfg.Storage.HistoryDB)
		if err != nil {
			return nil, err
		}
		history = h
		rec = h
		channels = append(channels, h)
	}

	alerts := alert.NewManager(channels, cfg.Alerts.HistorySize)
	pf := inventory.NewPortfolio(cfg.Session.InitialCash)
	loans := loan.NewLedger(cfg.LoanConfig(), pf, alerts, log)
	om := order.NewManager(order.NewBook(), cfg.Cost(), cfg.Orders)
	om.SetConstraints(cfg.SymbolConstraints())

	eng, err := engine.New(engine.Config{
		Cost:         cfg.Cost(),
		Collateral:   cfg.Credit,
		HistoryLimit: cfg.Session.HistoryLimit,
	}, engine.Components{
		OrderManager: om,
		Portfolio:    pf,
		Loans:        loans,
		AlertManager: alerts,
		Logger:       log,
		Monitor:      opts.Monitor,
		Recorder:     rec,
	})
	if err != nil {
		rec.Close()
		return nil, err
	}
	eng.SetQuotes(initialQuotes(cfg.Symbols))

	var snap *store.Store
	if cfg.Storage.SnapshotPath != "" {
		snap = store.New(cfg.Storage.SnapshotPath, log)
		if opts.Restore {
			restored, err := snap.RestoreEngine(eng)
			if err != nil {
				eng.Close()
				return nil, fmt.Errorf("restore session: %w", err)
			}
			if restored {
				log.LogTrade("session_restored", map[string]interface{}{
					"path":  cfg.Storage.SnapshotPath,
					"cycle": eng.Cycle(),
				})
			}
		}
	}

	feed := opts.Feed
	if feed == nil {
		feed = NewRandomWalkFeed(cfg.Feed, cfg.Symbols)
	}

	return &Session{
		cfg:     cfg,
		log:     log,
		engine:  eng,
		store:   snap,
		history: history,
		runner:  &Runner{Engine: eng, Feed: feed, Log: log},
		opts:    opts,
	}, nil
}

func initialQuotes(symbols []config.SymbolConfig) market.Quotes {
	q := make(market.Quotes, len(symbols))
	for _, s := range symbols {
		q[s.Symbol] = market.Quote{Symbol: s.Symbol, Price: s.Price, MarketCap: s.MarketCap}
	}
	return q
}
