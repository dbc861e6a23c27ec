package models

import "go.mongodb.org/mongo-driver/bson/primitive"

type Conversation struct {
	Base         `bson:",inline"`
	Participants []primitive.ObjectID `bson:"participants" json:"participants"`
	LastMessage  *primitive.ObjectID  `bson:"lastMessage,omitempty" json:"lastMessage,omitempty"`
}

// HasParticipant reports whether id takes part in the conversation.
func (c *Conversation) HasParticipant(id primitive.ObjectID) bool {
	for _, p := range c.Participants {
		if p == id {
			return true
		}
	}
	return false
}

type Message struct {
	Base           `bson:",inline"`
	ConversationID primitive.ObjectID   `bson:"conversationId" json:"conversationId"`
	Sender         primitive.ObjectID   `bson:"sender" json:"sender"`
	Text           string               `bson:"text" json:"text" binding:"required"`
	ReadBy         []primitive.ObjectID `bson:"readBy,omitempty" json:"readBy,omitempty"`
}
