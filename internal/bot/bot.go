package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/traderadar/backend/internal/analytics"
	"github.com/traderadar/backend/internal/apperr"
)

const (
	listLimit  = 10
	alertLimit = 10
)

type MarketAPI interface {
	Pair(ctx context.Context, symbol string) (analytics.PairMetrics, error)
	Pairs(ctx context.Context) ([]analytics.PairMetrics, error)
	Pools(ctx context.Context) ([]analytics.Pool, error)
}

// Sender is the part of *tgbotapi.BotAPI the dispatcher needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Bot turns Telegram commands into Markdown replies.
type Bot struct {
	api       MarketAPI
	watchlist Watchlist
	sender    Sender
	logger    *slog.Logger
}

func NewBot(api MarketAPI, watchlist Watchlist, sender Sender, logger *slog.Logger) *Bot {
	return &Bot{api: api, watchlist: watchlist, sender: sender, logger: logger}
}

// HandleUpdate answers one command message. Plain text and non-message
// updates are ignored.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || !msg.IsCommand() {
		return
	}

	text := b.dispatch(ctx, msg)
	if text == "" {
		return
	}
	reply := tgbotapi.NewMessage(msg.Chat.ID, text)
	reply.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.sender.Send(reply); err != nil {
		b.logger.Error("failed to send reply", "chat_id", msg.Chat.ID, "command", msg.Command(), "err", err)
	}
}

func (b *Bot) dispatch(ctx context.Context, msg *tgbotapi.Message) string {
	command := msg.Command()
	argument := firstArgument(msg.CommandArguments())

	var userID int64
	if msg.From != nil {
		userID = msg.From.ID
	}

	b.logger.Debug("command received", "command", command, "user_id", userID)

	switch command {
	case "start":
		return startText
	case "help":
		return helpText
	case "price":
		return b.price(ctx, argument)
	case "markets":
		return b.markets(ctx)
	case "pools":
		return b.pools(ctx)
	case "watch":
		return b.watch(ctx, userID, argument)
	case "watchlist":
		return b.list(ctx, userID)
	case "unwatch":
		return b.unwatch(ctx, userID, argument)
	case "alerts":
		return b.alerts(ctx)
	default:
		return "❓ Unknown command. Use /help to see available commands."
	}
}

func (b *Bot) price(ctx context.Context, symbol string) string {
	if symbol == "" {
		return "❌ Please specify a symbol. Example: /price BTC_USD"
	}
	pair, err := b.api.Pair(ctx, symbol)
	if apperr.IsNotFound(err) {
		return fmt.Sprintf("❌ Market not found: %s\nTry /markets to see available markets.", escape(symbol))
	}
	if err != nil {
		return b.failure("price", err, "❌ Error fetching price data. Please try again.")
	}

	price := pair.MarkPrice
	if price == 0 {
		price = pair.IndexPrice
	}
	var out strings.Builder
	fmt.Fprintf(&out, "💰 *%s*\n\n", escape(symbol))
	fmt.Fprintf(&out, "Price: *$%.2f*\n", price)
	fmt.Fprintf(&out, "24h Change: %s %s%%\n", trendEmoji(pair.PriceChange24h), signed(pair.PriceChange24h))
	fmt.Fprintf(&out, "24h Volume: $%.2fM\n", pair.Volume24h/1e6)
	fmt.Fprintf(&out, "Funding Rate: %.3f%%\n\n", pair.FundingRate*100)
	out.WriteString("_Source: Merkle Trade on Aptos_")
	return out.String()
}

func (b *Bot) markets(ctx context.Context) string {
	pairs, err := b.api.Pairs(ctx)
	if err != nil {
		return b.failure("markets", err, "❌ Error fetching markets. Please try again.")
	}
	if len(pairs) == 0 {
		return "📊 No markets available right now."
	}

	var out strings.Builder
	out.WriteString("📊 *Top Markets on Merkle Trade*\n\n")
	for i, pair := range pairs[:min(len(pairs), listLimit)] {
		price := pair.MarkPrice
		if price == 0 {
			price = pair.IndexPrice
		}
		fmt.Fprintf(&out, "%d. *%s*\n   $%.2f %s %s%%\n\n", i+1, escape(pair.Symbol), price, trendEmoji(pair.PriceChange24h), signed(pair.PriceChange24h))
	}
	out.WriteString("_Use /price <symbol> for details_")
	return out.String()
}

func (b *Bot) pools(ctx context.Context) string {
	pools, err := b.api.Pools(ctx)
	if err != nil {
		return b.failure("pools", err, "❌ Error fetching pools. Please try again.")
	}
	if len(pools) == 0 {
		return "🌊 No pools available right now."
	}

	var out strings.Builder
	out.WriteString("🌊 *Hyperion Liquidity Pools*\n\n")
	for i, pool := range analytics.TopPools(pools, analytics.MetricTVL, listLimit) {
		fmt.Fprintf(&out, "%d. *%s*\n", i+1, escape(pool.Pair()))
		fmt.Fprintf(&out, "   TVL: $%.2fM\n", pool.TVL/1e6)
		fmt.Fprintf(&out, "   APR: %.2f%%\n", pool.APR)
		fmt.Fprintf(&out, "   24h Vol: $%.2fM\n\n", pool.Volume24h/1e6)
	}
	out.WriteString("_Data from Hyperion CLMM on Aptos_")
	return out.String()
}

func (b *Bot) watch(ctx context.Context, userID int64, symbol string) string {
	if symbol == "" {
		return "❌ Please specify a symbol. Example: /watch BTC_USD"
	}
	added, err := b.watchlist.Add(ctx, userID, symbol)
	if err != nil {
		return b.failure("watch", err, "❌ Error updating your watchlist. Please try again.")
	}
	if !added {
		return fmt.Sprintf("👀 %s is already in your watchlist.", escape(symbol))
	}
	return fmt.Sprintf("✅ Added %s to your watchlist!\nUse /watchlist to view all.", escape(symbol))
}

func (b *Bot) list(ctx context.Context, userID int64) string {
	symbols, err := b.watchlist.List(ctx, userID)
	if err != nil {
		return b.failure("watchlist", err, "❌ Error loading your watchlist. Please try again.")
	}
	if len(symbols) == 0 {
		return "📝 Your watchlist is empty.\nAdd symbols with /watch <symbol>"
	}

	var out strings.Builder
	out.WriteString("👀 *Your Watchlist*\n\n")
	for i, symbol := range symbols {
		fmt.Fprintf(&out, "%d. %s\n", i+1, escape(symbol))
	}
	out.WriteString("\n_Use /price <symbol> to check prices_")
	return out.String()
}

func (b *Bot) unwatch(ctx context.Context, userID int64, symbol string) string {
	if symbol == "" {
		return "❌ Please specify a symbol. Example: /unwatch BTC_USD"
	}
	removed, err := b.watchlist.Remove(ctx, userID, symbol)
	if err != nil {
		return b.failure("unwatch", err, "❌ Error updating your watchlist. Please try again.")
	}
	if !removed {
		return fmt.Sprintf("❌ %s is not in your watchlist.", escape(symbol))
	}
	return fmt.Sprintf("✅ Removed %s from your watchlist.", escape(symbol))
}

func (b *Bot) alerts(ctx context.Context) string {
	pools, err := b.api.Pools(ctx)
	if err != nil {
		return b.failure("alerts", err, "❌ Error fetching alerts. Please try again.")
	}
	alerts := analytics.LiquidityAlerts(pools)
	if len(alerts) == 0 {
		return "✅ No alerts at the moment. Markets look stable!"
	}

	var out strings.Builder
	out.WriteString("🔔 *Liquidity Alerts*\n\n")
	for _, alert := range alerts[:min(len(alerts), alertLimit)] {
		switch alert.Type {
		case analytics.AlertHighAPR:
			fmt.Fprintf(&out, "🔥 %s: High APR %.2f%%\n", escape(alert.Pool), alert.Value)
		case analytics.AlertLowLiquidity:
			fmt.Fprintf(&out, "⚠️ %s: Low TVL $%.0fK\n", escape(alert.Pool), alert.Value/1000)
		default:
			fmt.Fprintf(&out, "• %s: %s\n", escape(alert.Pool), alert.Reason)
		}
	}
	return strings.TrimRight(out.String(), "\n")
}

func (b *Bot) failure(command string, err error, reply string) string {
	b.logger.Error("command failed", "command", command, "err", err)
	return reply
}

func firstArgument(raw string) string {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}

func trendEmoji(change float64) string {
	if change >= 0 {
		return "📈"
	}
	return "📉"
}

func signed(value float64) string {
	if value >= 0 {
		return fmt.Sprintf("+%.2f", value)
	}
	return fmt.Sprintf("%.2f", value)
}

// escape keeps symbols like BTC_USD from opening a Markdown entity.
func escape(text string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, text)
}

const startText = `👋 *Welcome to TradeRadar!*

Real-time market data for Merkle Trade and Hyperion on Aptos.

*Commands:*
/price <symbol> - Market price and funding
/markets - Top Merkle Trade markets
/pools - Hyperion liquidity pools
/watch <symbol> - Add a symbol to your watchlist
/watchlist - Show your watchlist
/unwatch <symbol> - Remove a symbol
/alerts - Liquidity alerts
/help - Show help`

const helpText = `📖 *TradeRadar Help*

*Market Data*
/price BTC\_USD - Price, 24h change, volume and funding rate
/markets - Top 10 perpetual markets

*Liquidity*
/pools - Top pools by TVL
/alerts - High APR and low TVL pools

*Watchlist*
/watch ETH\_USD - Watch a symbol
/watchlist - List watched symbols
/unwatch ETH\_USD - Stop watching a symbol`
