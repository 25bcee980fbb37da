// Package bot is the Telegram front end: it answers market commands from the
// TradeRadar API and keeps per-user watchlists.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"

	"github.com/traderadar/backend/internal/config"
)

type Service struct {
	cfg      config.BotConfig
	logger   *slog.Logger
	telegram *tgbotapi.BotAPI
	bot      *Bot
	closers  []func() error
}

func New(ctx context.Context, cfg config.BotConfig, logger *slog.Logger) (*Service, error) {
	telegram, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("init telegram client: %w", err)
	}
	telegram.Debug = cfg.Debug

	var (
		watchlist Watchlist
		closers   []func() error
	)
	if addr := strings.TrimSpace(cfg.Redis.Addr); addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("ping redis %s: %w", addr, err)
		}
		watchlist = NewRedisWatchlist(client)
		closers = append(closers, client.Close)
	} else {
		logger.Warn("BOT_REDIS_ADDR is not set, watchlists are kept in memory")
		watchlist = NewMemoryWatchlist()
	}

	logger.Info("telegram bot authorized", "username", telegram.Self.UserName)

	api := NewAPIClient(cfg.APIBaseURL, cfg.RequestTimeout)
	return &Service{
		cfg:      cfg,
		logger:   logger,
		telegram: telegram,
		bot:      NewBot(api, watchlist, telegram, logger),
		closers:  closers,
	}, nil
}

func (s *Service) Run(ctx context.Context) error {
	defer func() {
		for _, closeFn := range s.closers {
			if err := closeFn(); err != nil {
				s.logger.Error("failed to close bot dependency", "err", err)
			}
		}
	}()

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = s.cfg.PollTimeout
	updates := s.telegram.GetUpdatesChan(updateConfig)

	s.logger.Info("telegram-bot started", "api_base_url", s.cfg.APIBaseURL, "poll_timeout_sec", s.cfg.PollTimeout)

	for {
		select {
		case <-ctx.Done():
			s.telegram.StopReceivingUpdates()
			s.logger.Info("telegram-bot stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			s.bot.HandleUpdate(ctx, update)
		}
	}
}
