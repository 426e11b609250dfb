// Package telegram handles the integration with the Telegram Bot API.
// It receives updates, runs the ingestion and gated retrieval flows, and
// wires the admin commands to the broadcast dispatcher.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/seowithroki-star/file-store-bot/internal/broadcast"
	"github.com/seowithroki-star/file-store-bot/internal/config"
	"github.com/seowithroki-star/file-store-bot/internal/events"
	"github.com/seowithroki-star/file-store-bot/internal/linkcode"
	"github.com/seowithroki-star/file-store-bot/internal/membership"
	"github.com/seowithroki-star/file-store-bot/internal/registry"
	"github.com/seowithroki-star/file-store-bot/internal/storage"
)

// recheckPrefix tags the callback data of the "check again" button.
const recheckPrefix = "recheck:"

// User-facing replies. The not-found text covers malformed, never-issued
// and expired tokens alike so the reply shape leaks nothing.
const (
	textWelcome          = "👋 Send me a file link to receive the file.\nLinks look like https://t.me/<bot>?start=<code>."
	textNotFound         = "❌ This link is not valid or has expired."
	textJoinPrompt       = "🔒 To receive this file you need to join our channel first, then tap the button below."
	textVerifyUnavail    = "⚠️ Could not verify your channel membership right now. Please try again in a moment."
	textDeliveryFailed   = "⚠️ Something went wrong while sending the file. Please try again."
	textIngestFailed     = "⚠️ Failed to store the file. It has NOT been saved."
	textUnsupportedMedia = "⚠️ Unsupported media type. Send a document, video, audio or photo."
	textMediaNotAllowed  = "Only the bot admins can upload files here."
	textBroadcastUsage   = "Usage: /broadcast <message text>"
	textBroadcastBusy    = "A broadcast is already in progress. Try again once it finishes."
	textButtonJoin       = "Join channel"
	textButtonRecheck    = "✅ I joined — check again"
)

// BotAPI is the slice of *tgbotapi.BotAPI the handlers use, kept narrow so
// tests can substitute a mock.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetChatMember(config tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error)
}

// Store is the slice of the persistence layer the bot service itself needs;
// the registry and dispatcher carry their own.
type Store interface {
	UpsertSubscriber(telegramID int64, displayName string) error
	CountFiles() (int64, error)
	CountSubscribers() (int64, error)
	PublishEvent(evt events.Event) error
}

// BotService receives Telegram updates and routes them through the
// ingestion, retrieval and broadcast flows.
type BotService struct {
	API        BotAPI
	Username   string
	Cfg        *config.Config
	Store      Store
	Registry   *registry.Registry
	Verifier   *membership.Verifier
	Dispatcher *broadcast.Dispatcher

	bot *tgbotapi.BotAPI
}

// NewBotService creates a new BotService instance around a connected bot.
func NewBotService(bot *tgbotapi.BotAPI, cfg *config.Config, store Store, reg *registry.Registry, verifier *membership.Verifier, dispatcher *broadcast.Dispatcher) *BotService {
	log.Printf("✅ Authorized on account %s", bot.Self.UserName)
	return &BotService{
		API:        bot,
		Username:   bot.Self.UserName,
		Cfg:        cfg,
		Store:      store,
		Registry:   reg,
		Verifier:   verifier,
		Dispatcher: dispatcher,
		bot:        bot,
	}
}

// Run is the main loop for receiving Telegram updates. Every update is
// handled as an independent goroutine; a slow membership check never blocks
// the next user.
func (s *BotService) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := s.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			s.bot.StopReceivingUpdates()
			log.Println("INFO: Telegram update loop stopped.")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			go s.handleUpdate(ctx, update)
		}
	}
}

func (s *BotService) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil:
		s.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		s.handleCallbackQuery(update.CallbackQuery)
	}
}

func (s *BotService) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || !msg.Chat.IsPrivate() {
		return
	}
	s.touchSubscriber(msg.From)

	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			s.handleStart(msg)
		case "broadcast":
			s.handleBroadcast(ctx, msg)
		case "stats":
			s.handleStats(msg)
		}
		return
	}

	kind, _, _ := extractMedia(msg)
	if kind == "" && !hasMedia(msg) {
		return
	}
	if !s.Cfg.IsAdmin(msg.From.ID) {
		s.reply(msg.Chat.ID, textMediaNotAllowed)
		return
	}
	s.handleIngestion(msg)
}

// handleStart serves /start, with or without a deep-link token.
func (s *BotService) handleStart(msg *tgbotapi.Message) {
	token := strings.TrimSpace(msg.CommandArguments())
	if token == "" {
		s.reply(msg.Chat.ID, textWelcome)
		return
	}
	s.handleRetrieval(msg.Chat.ID, msg.From.ID, token, false)
}

// handleRetrieval is the gated retrieval flow. The order is fixed: token
// shape first (cheapest failure), then membership, then registry lookup,
// then delivery. A denied user never learns whether the token resolves.
func (s *BotService) handleRetrieval(chatID, userID int64, token string, fresh bool) {
	if err := linkcode.Validate(token); err != nil {
		s.reply(chatID, textNotFound)
		return
	}

	if !s.Cfg.IsAdmin(userID) && !s.checkMembership(chatID, userID, token, fresh) {
		return
	}

	file, err := s.Registry.Lookup(token)
	if errors.Is(err, storage.ErrNotFound) {
		s.reply(chatID, textNotFound)
		return
	}
	if err != nil {
		log.Printf("ERROR: Registry lookup for token %s failed: %v", token, err)
		s.reply(chatID, textDeliveryFailed)
		return
	}

	if err := s.sendFile(chatID, file); err != nil {
		log.Printf("ERROR: Failed to deliver file %s (kind=%s) to %d: %v", file.Token, file.Kind, chatID, err)
		s.reply(chatID, textDeliveryFailed)
	}
}

// checkMembership runs the verifier and renders the outcome. Returns true
// when retrieval may proceed. An indeterminate result is retried once with
// the cache bypassed; after that the configured fail-open/fail-closed
// policy applies.
func (s *BotService) checkMembership(chatID, userID int64, token string, fresh bool) bool {
	var result membership.Result
	if fresh {
		result = s.Verifier.Recheck(userID)
	} else {
		result = s.Verifier.Verify(userID)
	}

	if result.Status == membership.StatusIndeterminate {
		result = s.Verifier.Recheck(userID)
	}

	switch result.Status {
	case membership.StatusAllowed:
		return true
	case membership.StatusDenied:
		s.sendJoinPrompt(chatID, token, result.FailedChannel)
		return false
	default:
		log.Printf("WARN: Membership check for user %d stayed indeterminate: %v", userID, result.Err)
		if s.Cfg.MembershipFailClosed {
			s.reply(chatID, textVerifyUnavail)
			return false
		}
		return true
	}
}

// sendJoinPrompt names the first failing channel and offers a join link
// plus a re-check button bound to the same token.
func (s *BotService) sendJoinPrompt(chatID int64, token string, failedChannel int64) {
	reply := tgbotapi.NewMessage(chatID, textJoinPrompt)

	var rows [][]tgbotapi.InlineKeyboardButton
	if link := s.Cfg.GatingChannelLink(failedChannel); link != "" {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL(textButtonJoin, link),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(textButtonRecheck, recheckPrefix+token),
	))
	reply.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)

	if _, err := s.API.Send(reply); err != nil {
		log.Printf("ERROR: Failed to send join prompt to %d: %v", chatID, err)
	}
}

// handleIngestion archives a media message from a privileged sender:
// forward to the archive channel, create the registry entry, reply with the
// minted deep link. A registry failure reaches the sender as an explicit
// failure, never a false success.
func (s *BotService) handleIngestion(msg *tgbotapi.Message) {
	kind, fileID, displayName := extractMedia(msg)
	if kind == "" {
		s.reply(msg.Chat.ID, textUnsupportedMedia)
		return
	}

	forwarded, err := s.API.Send(tgbotapi.NewForward(s.Cfg.ArchiveChannelID, msg.Chat.ID, msg.MessageID))
	if err != nil {
		log.Printf("ERROR: Failed to forward message %d to archive channel: %v", msg.MessageID, err)
		s.reply(msg.Chat.ID, textIngestFailed)
		return
	}

	file, err := s.Registry.Create(s.Cfg.ArchiveChannelID, forwarded.MessageID, fileID, kind, displayName, msg.From.ID)
	if err != nil {
		s.reply(msg.Chat.ID, textIngestFailed)
		return
	}

	if err := s.Store.PublishEvent(events.New(events.TypeFileArchived, file.Kind+" "+file.Token)); err != nil {
		log.Printf("WARN: Failed to publish archive event: %v", err)
	}

	link := linkcode.DeepLink(s.Username, file.Token)
	reply := tgbotapi.NewMessage(msg.Chat.ID, fmt.Sprintf("✅ Stored. Share this link:\n%s", link))
	if _, err := s.API.Send(reply); err != nil {
		log.Printf("ERROR: Failed to send link reply to %d: %v", msg.Chat.ID, err)
	}
}

// handleBroadcast starts a fan-out run from an admin's /broadcast command.
// The run lives on the process context, not the request: it keeps going
// after this handler returns and stops only on shutdown.
func (s *BotService) handleBroadcast(ctx context.Context, msg *tgbotapi.Message) {
	if !s.Cfg.IsAdmin(msg.From.ID) {
		return
	}
	text := strings.TrimSpace(msg.CommandArguments())
	if text == "" {
		s.reply(msg.Chat.ID, textBroadcastUsage)
		return
	}

	go func() {
		report, err := s.Dispatcher.Run(ctx, text, msg.From.ID)
		if errors.Is(err, broadcast.ErrAlreadyRunning) {
			s.reply(msg.Chat.ID, textBroadcastBusy)
			return
		}
		if err != nil && report.Total == 0 {
			log.Printf("ERROR: Broadcast failed to start: %v", err)
			s.reply(msg.Chat.ID, "⚠️ Broadcast failed: "+err.Error())
			return
		}
		s.reply(msg.Chat.ID, fmt.Sprintf("📣 Broadcast finished: %d delivered, %d failed, %d total.",
			report.Delivered, report.Failed, report.Total))
	}()
}

func (s *BotService) handleStats(msg *tgbotapi.Message) {
	if !s.Cfg.IsAdmin(msg.From.ID) {
		return
	}
	files, err := s.Store.CountFiles()
	if err != nil {
		log.Printf("ERROR: Failed to count files: %v", err)
		return
	}
	subs, err := s.Store.CountSubscribers()
	if err != nil {
		log.Printf("ERROR: Failed to count subscribers: %v", err)
		return
	}
	s.reply(msg.Chat.ID, fmt.Sprintf("📊 Files stored: %d\n👥 Subscribers: %d", files, subs))
}

func (s *BotService) handleCallbackQuery(callbackQuery *tgbotapi.CallbackQuery) {
	// Respond to the callback query to remove the "loading" state
	callback := tgbotapi.NewCallback(callbackQuery.ID, "")
	if _, err := s.API.Request(callback); err != nil {
		log.Printf("failed to send callback response: %v", err)
	}

	if callbackQuery.Message == nil || callbackQuery.From == nil {
		return
	}
	s.touchSubscriber(callbackQuery.From)

	if strings.HasPrefix(callbackQuery.Data, recheckPrefix) {
		token := strings.TrimPrefix(callbackQuery.Data, recheckPrefix)
		// The user claims to have just joined; bypass the membership cache.
		s.handleRetrieval(callbackQuery.Message.Chat.ID, callbackQuery.From.ID, token, true)
	}
}

// touchSubscriber upserts the subscriber record on every interaction.
func (s *BotService) touchSubscriber(from *tgbotapi.User) {
	name := strings.TrimSpace(from.FirstName + " " + from.LastName)
	if name == "" {
		name = from.UserName
	}
	if err := s.Store.UpsertSubscriber(from.ID, name); err != nil {
		log.Printf("ERROR: Failed to upsert subscriber %d: %v", from.ID, err)
	}
}

func (s *BotService) reply(chatID int64, text string) {
	if _, err := s.API.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		log.Printf("ERROR: Failed to send reply to %d: %v", chatID, err)
	}
}
