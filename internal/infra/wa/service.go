package wa

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/mdp/qrterminal"
	"github.com/rs/zerolog"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	walog "go.mau.fi/whatsmeow/util/log"
	_ "modernc.org/sqlite"
)

// IncomingMessage is a text message with the sender resolved to a stable
// user id (the phone number when WhatsApp only gave us a LID).
type IncomingMessage struct {
	Chat     types.JID
	UserID   string
	PushName string
	Text     string
}

type MessageHandler func(ctx context.Context, msg IncomingMessage)

type Service struct {
	client         *whatsmeow.Client
	dbPath         string
	waLog          walog.Logger
	log            zerolog.Logger
	messageHandler MessageHandler
}

func NewService(dbPath string, log zerolog.Logger, waLog walog.Logger) *Service {
	return &Service{
		dbPath: dbPath,
		log:    log,
		waLog:  waLog,
	}
}

func (s *Service) Initialize(ctx context.Context) error {
	// WAL persists on the file, so sharing it with the progress store is fine.
	dbAddress := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", s.dbPath)
	container, err := sqlstore.New(ctx, "sqlite", dbAddress, s.waLog.Sub("Database"))
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	devices, err := container.GetAllDevices(ctx)
	if err != nil {
		return fmt.Errorf("failed to get devices: %w", err)
	}

	var device *store.Device
	if len(devices) > 0 {
		device = devices[0]
	} else {
		device = container.NewDevice()
	}

	s.client = whatsmeow.NewClient(device, s.waLog.Sub("Client"))
	s.registerEventHandlers()

	return nil
}

func (s *Service) Connect() error {
	if s.client == nil {
		return fmt.Errorf("client not initialized")
	}
	if s.client.IsConnected() {
		return nil
	}
	return s.client.Connect()
}

func (s *Service) Disconnect() {
	if s.client != nil {
		s.client.Disconnect()
	}
}

func (s *Service) SetMessageHandler(handler MessageHandler) {
	s.messageHandler = handler
}

func (s *Service) registerEventHandlers() {
	s.client.AddEventHandler(func(evt interface{}) {
		switch v := evt.(type) {
		case *events.Message:
			if s.messageHandler == nil || v.Info.IsFromMe {
				return
			}
			text := messageText(v)
			if text == "" {
				return
			}
			go func() {
				ctx := context.Background()
				s.messageHandler(ctx, IncomingMessage{
					Chat:     v.Info.Chat,
					UserID:   s.ResolveUserID(ctx, v.Info.Sender),
					PushName: v.Info.PushName,
					Text:     text,
				})
			}()
		case *events.Connected:
			s.log.Info().Msg("whatsapp connected")
		case *events.LoggedOut:
			s.log.Warn().Int("reason", int(v.Reason)).Msg("whatsapp logged out")
		}
	})
}

func messageText(evt *events.Message) string {
	switch {
	case evt.Message.GetConversation() != "":
		return evt.Message.GetConversation()
	case evt.Message.GetExtendedTextMessage() != nil:
		return evt.Message.GetExtendedTextMessage().GetText()
	}
	return ""
}

// ResolveUserID maps a sender to its phone number. LID senders are looked up
// in the device store; unknown LIDs fall back to the LID user part.
func (s *Service) ResolveUserID(ctx context.Context, sender types.JID) string {
	if sender.Server != types.HiddenUserServer {
		return sender.User
	}

	pn, err := s.client.Store.LIDs.GetPNForLID(ctx, sender.ToNonAD())
	if err != nil {
		s.log.Warn().Err(err).Str("lid", sender.User).Msg("failed to resolve lid")
		return sender.User
	}
	if pn.IsEmpty() {
		return sender.User
	}
	return pn.User
}

// Reply sends text to chat after delay, showing the typing indicator
// meanwhile when typing is set.
func (s *Service) Reply(ctx context.Context, chat types.JID, text string, delay time.Duration, typing bool) error {
	if delay > 0 {
		if typing {
			_ = s.client.SendChatPresence(ctx, chat, types.ChatPresenceComposing, types.ChatPresenceMediaText)
		}

		s.log.Debug().Dur("delay", delay).Msg("delaying reply")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		if typing {
			_ = s.client.SendChatPresence(ctx, chat, types.ChatPresencePaused, types.ChatPresenceMediaText)
		}
	}

	_, err := s.client.SendMessage(ctx, chat, &waE2E.Message{Conversation: &text})
	return err
}

func (s *Service) IsLoggedIn() bool {
	return s.client.Store.ID != nil
}

func (s *Service) Pair(ctx context.Context, phone string) (string, error) {
	if s.IsLoggedIn() {
		return "", fmt.Errorf("already logged in")
	}
	if !s.client.IsConnected() {
		return "", fmt.Errorf("client not connected")
	}

	return s.client.PairPhone(ctx, phone, true, whatsmeow.PairClientChrome, "Chrome (Linux)")
}

func (s *Service) PrintQR(ctx context.Context) {
	if s.client.Store.ID != nil {
		return
	}

	qrChan, _ := s.client.GetQRChannel(ctx)
	if err := s.client.Connect(); err != nil {
		s.log.Error().Err(err).Msg("failed to connect for QR")
		return
	}
	for evt := range qrChan {
		if evt.Event == "code" {
			qrterminal.GenerateHalfBlock(evt.Code, qrterminal.L, os.Stdout)
		} else {
			s.log.Info().Str("event", evt.Event).Msg("login event")
		}
	}
}
