package service

import (
	"context"
	"strings"

	"shop-service/internal/apperr"
	"shop-service/internal/models"
	"shop-service/internal/realtime"
	"shop-service/internal/util"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// EventReceiveMessage is pushed to the other participants of a conversation.
const EventReceiveMessage = "receive_message"

type ChatService struct {
	chats    ChatStore
	users    UserStore
	notifier Notifier
	logger   *zap.Logger
}

func NewChatService(chats ChatStore, users UserStore, notifier Notifier) *ChatService {
	return &ChatService{
		chats:    chats,
		users:    users,
		notifier: notifier,
		logger:   util.Named("chat"),
	}
}

type StartConversationRequest struct {
	ReceiverID string `json:"receiverId" binding:"required"`
}

type SendMessageRequest struct {
	ConversationID string `json:"conversationId" binding:"required"`
	Text           string `json:"text" binding:"required"`
}

// Conversations lists the actor's conversations; admins see every one.
func (s *ChatService) Conversations(ctx context.Context, actor *models.User) ([]models.Conversation, error) {
	if actor.Role == models.RoleAdmin {
		return s.chats.ListConversations(ctx, nil)
	}
	return s.chats.ListConversations(ctx, &actor.ID)
}

func (s *ChatService) conversationFor(ctx context.Context, actor *models.User, rawID string) (*models.Conversation, error) {
	id, err := primitive.ObjectIDFromHex(rawID)
	if err != nil {
		return nil, apperr.Validation("Invalid conversation id format")
	}
	conv, err := s.chats.FindConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(actor.ID) && actor.Role != models.RoleAdmin {
		return nil, apperr.Forbidden("You are not a participant of this conversation")
	}
	return conv, nil
}

func (s *ChatService) Messages(ctx context.Context, actor *models.User, rawConversationID string) ([]models.Message, error) {
	conv, err := s.conversationFor(ctx, actor, rawConversationID)
	if err != nil {
		return nil, err
	}
	return s.chats.ListMessages(ctx, conv.ID)
}

// Start returns the conversation between the actor and the receiver,
// creating it on first contact.
func (s *ChatService) Start(ctx context.Context, actor *models.User, req *StartConversationRequest) (*models.Conversation, error) {
	receiverID, err := primitive.ObjectIDFromHex(req.ReceiverID)
	if err != nil {
		return nil, apperr.Validation("Invalid receiver id format")
	}
	if receiverID == actor.ID {
		return nil, apperr.Validation("You cannot start a conversation with yourself")
	}
	if _, err := s.users.FindByID(ctx, receiverID); err != nil {
		return nil, err
	}

	conv, err := s.chats.FindBetween(ctx, actor.ID, receiverID)
	if err != nil {
		return nil, err
	}
	if conv != nil {
		return conv, nil
	}
	conv = &models.Conversation{Participants: []primitive.ObjectID{actor.ID, receiverID}}
	if err := s.chats.CreateConversation(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// Send stores a message and pushes it to every other participant that is
// connected. Delivery is best-effort; the message is stored either way.
func (s *ChatService) Send(ctx context.Context, actor *models.User, req *SendMessageRequest) (*models.Message, error) {
	ctx, span := util.StartSpan(ctx, "ChatService.Send")
	defer span.End()

	conv, err := s.conversationFor(ctx, actor, req.ConversationID)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, apperr.Validation("text is required")
	}

	msg := &models.Message{
		ConversationID: conv.ID,
		Sender:         actor.ID,
		Text:           text,
	}
	if err := s.chats.AddMessage(ctx, msg); err != nil {
		util.RecordError(span, err)
		return nil, err
	}
	util.ChatMessagesTotal.Inc()

	delivered := 0
	for _, p := range conv.Participants {
		if p == actor.ID {
			continue
		}
		delivered += s.notifier.SendToUser(p.Hex(), realtime.Event{Type: EventReceiveMessage, Data: msg})
	}
	s.logger.Debug("Message sent",
		zap.String("conversation_id", conv.ID.Hex()),
		zap.Int("delivered", delivered))
	return msg, nil
}
