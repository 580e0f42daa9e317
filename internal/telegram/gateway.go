package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/rosterbot/internal/metrics"
	"github.com/edgard/rosterbot/internal/platform"
)

// API is the subset of *bot.Bot used by Gateway.
type API interface {
	GetChat(ctx context.Context, params *bot.GetChatParams) (*models.ChatFullInfo, error)
	GetChatMember(ctx context.Context, params *bot.GetChatMemberParams) (*models.ChatMember, error)
	GetChatMemberCount(ctx context.Context, params *bot.GetChatMemberCountParams) (int, error)
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// GatewayOptions tunes request handling.
type GatewayOptions struct {
	RequestTimeout time.Duration
	MaxRetries     int           // retries after a 429 response
	MaxRetryAfter  time.Duration // longest 429 back-off honoured before giving up
	ParseMode      models.ParseMode
}

// Gateway implements platform.Gateway on top of the Telegram Bot API and
// classifies failures into the platform error taxonomy.
type Gateway struct {
	api    API
	opts   GatewayOptions
	logger *slog.Logger
	timer  retry.Timer
}

var _ platform.Gateway = (*Gateway)(nil)

// NewGateway wraps api.
func NewGateway(api API, opts GatewayOptions, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.MaxRetryAfter <= 0 {
		opts.MaxRetryAfter = 30 * time.Second
	}
	return &Gateway{
		api:    api,
		opts:   opts,
		logger: logger.With("component", "telegram_gateway"),
		timer:  realTimer{},
	}
}

// GetChat returns chat metadata.
func (g *Gateway) GetChat(ctx context.Context, chatID int64) (platform.ChatInfo, error) {
	var info *models.ChatFullInfo
	err := g.call(ctx, "get_chat", func(ctx context.Context) error {
		var err error
		info, err = g.api.GetChat(ctx, &bot.GetChatParams{ChatID: chatID})
		return err
	})
	if err != nil {
		return platform.ChatInfo{}, err
	}

	title := info.Title
	if title == "" {
		title = fmt.Sprintf("Chat %d", chatID)
	}
	return platform.ChatInfo{ID: info.ID, Title: title, Kind: platform.ChatKind(info.Type)}, nil
}

// GetMemberCount returns the number of members in a chat. Failures other than
// a removed chat are reported as platform.ErrUnavailable.
func (g *Gateway) GetMemberCount(ctx context.Context, chatID int64) (int, error) {
	var count int
	err := g.call(ctx, "get_member_count", func(ctx context.Context) error {
		var err error
		count, err = g.api.GetChatMemberCount(ctx, &bot.GetChatMemberCountParams{ChatID: chatID})
		return err
	})
	if err != nil {
		if errors.Is(err, platform.ErrNotFound) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: %w", platform.ErrUnavailable, err)
	}
	return count, nil
}

// GetMemberStatus returns the membership status of userID in chatID.
func (g *Gateway) GetMemberStatus(ctx context.Context, chatID, userID int64) (platform.MemberStatus, error) {
	var member *models.ChatMember
	err := g.call(ctx, "get_member_status", func(ctx context.Context) error {
		var err error
		member, err = g.api.GetChatMember(ctx, &bot.GetChatMemberParams{ChatID: chatID, UserID: userID})
		return err
	})
	if err != nil {
		return "", err
	}
	return platform.MemberStatus(member.Type), nil
}

// SendMessage posts text to a user or chat.
func (g *Gateway) SendMessage(ctx context.Context, targetID int64, text string) error {
	return g.call(ctx, "send_message", func(ctx context.Context) error {
		_, err := g.api.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:    targetID,
			Text:      text,
			ParseMode: g.opts.ParseMode,
		})
		return err
	})
}

// call runs fn with a per-request timeout, honours 429 back-off up to
// MaxRetries times and classifies the final error.
func (g *Gateway) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	err := retry.Do(
		func() error {
			reqCtx, cancel := context.WithTimeout(ctx, g.opts.RequestTimeout)
			defer cancel()
			return fn(reqCtx)
		},
		retry.Context(ctx),
		retry.Attempts(uint(g.opts.MaxRetries)+1),
		retry.RetryIf(g.retryable),
		retry.DelayType(retryAfterDelay),
		retry.LastErrorOnly(true),
		retry.WithTimer(g.timer),
		retry.OnRetry(func(n uint, err error) {
			g.logger.WarnContext(ctx, "Rate limited by Telegram, backing off",
				"op", op, "retry_after", retryAfterDelay(n, err, nil), "attempt", n+1)
		}),
	)
	if err == nil {
		return nil
	}

	classified := classify(err)
	class := "transient"
	if errors.Is(classified, platform.ErrNotFound) {
		class = "not_found"
	}
	metrics.IncGatewayError(op, class)
	return classified
}

// retryable reports whether err is a 429 whose back-off is short enough to wait out.
func (g *Gateway) retryable(err error) bool {
	var tooMany *bot.TooManyRequestsError
	if !errors.As(err, &tooMany) {
		return false
	}
	return time.Duration(tooMany.RetryAfter)*time.Second <= g.opts.MaxRetryAfter
}

func retryAfterDelay(_ uint, err error, _ *retry.Config) time.Duration {
	var tooMany *bot.TooManyRequestsError
	if errors.As(err, &tooMany) {
		return time.Duration(tooMany.RetryAfter) * time.Second
	}
	return 0
}

// notFoundPhrases are Bot API error descriptions meaning the chat or member is gone.
var notFoundPhrases = []string{
	"chat not found",
	"user not found",
	"member not found",
	"participant_id_invalid",
	"user_not_participant",
	"peer_id_invalid",
	"bot was kicked",
	"bot is not a member",
}

// classify maps Bot API failures onto the platform error taxonomy. An HTTP 404
// means a bad token or method, not a missing chat, so it stays transient.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, bot.ErrorForbidden) {
		return fmt.Errorf("%w: %w", platform.ErrNotFound, err)
	}
	if errors.Is(err, bot.ErrorBadRequest) {
		desc := strings.ToLower(err.Error())
		for _, phrase := range notFoundPhrases {
			if strings.Contains(desc, phrase) {
				return fmt.Errorf("%w: %w", platform.ErrNotFound, err)
			}
		}
	}
	return err
}

type realTimer struct{}

func (realTimer) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}
