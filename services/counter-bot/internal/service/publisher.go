package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/bikecount/bikecount/pkg/logger"
	"github.com/go-telegram/bot"
	botmodels "github.com/go-telegram/bot/models"
)

// threadSuffixReserve is the room kept free in each part for the " i/n" suffix.
const threadSuffixReserve = 10

// Post is one report as it goes out to the feed.
type Post struct {
	Text      string
	MediaPath string
	// ExtraParts are appended to the thread as-is, after the split text.
	ExtraParts []string
	// ReplyTo continues an existing thread when set.
	ReplyTo string
}

type Publisher interface {
	Publish(ctx context.Context, post Post) ([]string, error)
}

// SplitThread returns text as a single part when it fits in limit runes.
// Longer text is word-wrapped to limit-10 runes per part, keeping line
// breaks, and every part is suffixed with " i/n".
func SplitThread(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	wrapped := wrapText(text, limit-threadSuffixReserve)
	parts := make([]string, len(wrapped))
	for i, part := range wrapped {
		parts[i] = fmt.Sprintf("%s %d/%d", part, i+1, len(wrapped))
	}
	return parts
}

type wrapToken struct {
	sep  string
	word string
}

func wrapText(text string, width int) []string {
	if width < 1 {
		width = 1
	}

	var tokens []wrapToken
	pendingSep := ""
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			pendingSep += "\n"
		}
		for _, word := range strings.Fields(line) {
			sep := pendingSep
			if sep == "" {
				sep = " "
			}
			for j, chunk := range chunkRunes(word, width) {
				if j > 0 {
					sep = ""
				}
				tokens = append(tokens, wrapToken{sep: sep, word: chunk})
			}
			pendingSep = ""
		}
	}

	var parts []string
	current := ""
	for _, t := range tokens {
		switch {
		case current == "":
			current = t.word
		case utf8.RuneCountInString(current)+utf8.RuneCountInString(t.sep)+utf8.RuneCountInString(t.word) <= width:
			current += t.sep + t.word
		default:
			parts = append(parts, current)
			current = t.word
		}
	}
	if current != "" {
		parts = append(parts, current)
	}

	return parts
}

func chunkRunes(word string, width int) []string {
	runes := []rune(word)
	if len(runes) <= width {
		return []string{word}
	}

	var chunks []string
	for len(runes) > width {
		chunks = append(chunks, string(runes[:width]))
		runes = runes[width:]
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}

// telegramAPI is the subset of *bot.Bot used to post.
type telegramAPI interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*botmodels.Message, error)
	SendPhoto(ctx context.Context, params *bot.SendPhotoParams) (*botmodels.Message, error)
	SendDocument(ctx context.Context, params *bot.SendDocumentParams) (*botmodels.Message, error)
}

type TelegramPublisher struct {
	api       telegramAPI
	chatID    int64
	maxLength int
	devMode   bool
	logger    logger.Logger
}

// NewTelegramPublisher creates a publisher posting to chatID. In development
// mode no bot is created and nothing is sent.
func NewTelegramPublisher(token string, chatID int64, maxLength int, devMode bool, log logger.Logger) (*TelegramPublisher, error) {
	p := &TelegramPublisher{
		chatID:    chatID,
		maxLength: maxLength,
		devMode:   devMode,
		logger:    log,
	}

	if devMode {
		return p, nil
	}

	b, err := bot.New(token, bot.WithSkipGetMe())
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	p.api = b

	return p, nil
}

func newTelegramPublisherWithAPI(api telegramAPI, chatID int64, maxLength int, devMode bool, log logger.Logger) *TelegramPublisher {
	return &TelegramPublisher{
		api:       api,
		chatID:    chatID,
		maxLength: maxLength,
		devMode:   devMode,
		logger:    log,
	}
}

// Publish posts the text as a thread. The media, if any, goes with the first
// part and every following part replies to the previous one.
func (p *TelegramPublisher) Publish(ctx context.Context, post Post) ([]string, error) {
	parts := SplitThread(post.Text, p.maxLength)
	parts = append(parts, post.ExtraParts...)

	if p.devMode {
		ids := make([]string, len(parts))
		for i, part := range parts {
			p.logger.Info("Development mode, not sending post",
				logger.F("part", i+1),
				logger.F("parts", len(parts)),
				logger.F("media", post.MediaPath),
				logger.F("text", part),
			)
			ids[i] = fmt.Sprintf("DEV_ID_%d", i+1)
		}
		return ids, nil
	}

	replyTo := 0
	if post.ReplyTo != "" {
		id, err := strconv.Atoi(post.ReplyTo)
		if err != nil {
			return nil, fmt.Errorf("invalid reply-to message id %q: %w", post.ReplyTo, err)
		}
		replyTo = id
	}

	ids := make([]string, 0, len(parts))
	for i, part := range parts {
		p.logger.Debug("Sending post",
			logger.F("part", i+1),
			logger.F("parts", len(parts)),
		)

		var (
			msg *botmodels.Message
			err error
		)
		if i == 0 && post.MediaPath != "" {
			msg, err = p.sendMedia(ctx, part, post.MediaPath, replyTo)
		} else {
			msg, err = p.api.SendMessage(ctx, &bot.SendMessageParams{
				ChatID:          p.chatID,
				Text:            part,
				ReplyParameters: replyParameters(replyTo),
			})
		}
		if err != nil {
			return ids, fmt.Errorf("failed to send part %d/%d: %w", i+1, len(parts), err)
		}

		replyTo = msg.ID
		ids = append(ids, strconv.Itoa(msg.ID))
	}

	return ids, nil
}

func (p *TelegramPublisher) sendMedia(ctx context.Context, caption, path string, replyTo int) (*botmodels.Message, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open media: %w", err)
	}
	defer file.Close()

	upload := &botmodels.InputFileUpload{
		Filename: filepath.Base(path),
		Data:     file,
	}

	if strings.EqualFold(filepath.Ext(path), ".png") {
		return p.api.SendPhoto(ctx, &bot.SendPhotoParams{
			ChatID:          p.chatID,
			Photo:           upload,
			Caption:         caption,
			ReplyParameters: replyParameters(replyTo),
		})
	}

	return p.api.SendDocument(ctx, &bot.SendDocumentParams{
		ChatID:          p.chatID,
		Document:        upload,
		Caption:         caption,
		ReplyParameters: replyParameters(replyTo),
	})
}

func replyParameters(messageID int) *botmodels.ReplyParameters {
	if messageID == 0 {
		return nil
	}
	return &botmodels.ReplyParameters{MessageID: messageID}
}
