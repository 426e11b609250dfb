package telegram

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/seowithroki-star/file-store-bot/internal/models"
)

// mediaMessage maps a stored kind to the Telegram send method used at
// delivery. The kind is fixed at ingestion; delivery never re-inspects the
// original message.
var mediaMessage = map[string]func(chatID int64, fileID, caption string) tgbotapi.Chattable{
	models.KindDocument: func(chatID int64, fileID, caption string) tgbotapi.Chattable {
		m := tgbotapi.NewDocument(chatID, tgbotapi.FileID(fileID))
		m.Caption = caption
		return m
	},
	models.KindVideo: func(chatID int64, fileID, caption string) tgbotapi.Chattable {
		m := tgbotapi.NewVideo(chatID, tgbotapi.FileID(fileID))
		m.Caption = caption
		return m
	},
	models.KindAudio: func(chatID int64, fileID, caption string) tgbotapi.Chattable {
		m := tgbotapi.NewAudio(chatID, tgbotapi.FileID(fileID))
		m.Caption = caption
		return m
	},
	models.KindPhoto: func(chatID int64, fileID, caption string) tgbotapi.Chattable {
		m := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(fileID))
		m.Caption = caption
		return m
	},
}

// sendFile delivers an archived file to a chat, choosing the send method by
// the stored kind.
func (s *BotService) sendFile(chatID int64, file *models.StoredFile) error {
	build, ok := mediaMessage[file.Kind]
	if !ok {
		return fmt.Errorf("unknown media kind %q for token %s", file.Kind, file.Token)
	}
	_, err := s.API.Send(build(chatID, file.FileID, file.DisplayName))
	return err
}

// extractMedia uniformly extracts the kind, file ID and display name from
// an inbound media message. Kind is "" for anything the relay doesn't
// archive.
func extractMedia(msg *tgbotapi.Message) (kind, fileID, displayName string) {
	switch {
	case msg.Document != nil:
		return models.KindDocument, msg.Document.FileID, msg.Document.FileName
	case msg.Video != nil:
		return models.KindVideo, msg.Video.FileID, msg.Video.FileName
	case msg.Audio != nil:
		name := msg.Audio.Title
		if name == "" {
			name = msg.Audio.FileName
		}
		return models.KindAudio, msg.Audio.FileID, name
	case msg.Photo != nil:
		largestPhoto := msg.Photo[len(msg.Photo)-1]
		return models.KindPhoto, largestPhoto.FileID, msg.Caption
	}
	return "", "", ""
}

// hasMedia reports whether the message carries any media at all, including
// kinds the relay does not archive.
func hasMedia(msg *tgbotapi.Message) bool {
	return msg.Document != nil || msg.Video != nil || msg.Audio != nil ||
		msg.Photo != nil || msg.Voice != nil || msg.Sticker != nil ||
		msg.Animation != nil || msg.VideoNote != nil
}
