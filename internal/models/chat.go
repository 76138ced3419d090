package models

import "time"

// ThreadIndexEntry is one row of a user's chat list. Each thread has two of
// them, one in each participant's index.
type ThreadIndexEntry struct {
	ChatID      string    `bson:"chat_id" json:"chat_id" yaml:"chat_id"`
	ReceiverID  string    `bson:"receiver_id" json:"receiver_id" yaml:"receiver_id"`
	LastMessage string    `bson:"last_message" json:"last_message" yaml:"last_message"`
	IsSeen      bool      `bson:"is_seen" json:"is_seen" yaml:"is_seen"`
	UpdatedAt   time.Time `bson:"updated_at" json:"updated_at" yaml:"updated_at"`
}

type UserChats struct {
	Chats []ThreadIndexEntry `bson:"chats" json:"chats" yaml:"chats"`
}

// Find returns the position of the entry for chatID, or -1.
func (u *UserChats) Find(chatID string) int {
	for i := range u.Chats {
		if u.Chats[i].ChatID == chatID {
			return i
		}
	}
	return -1
}

type Thread struct {
	CreatedAt time.Time `bson:"created_at" json:"created_at" yaml:"created_at"`
	Messages  []Message `bson:"messages" json:"messages" yaml:"messages"`
}

type Message struct {
	ID        string    `bson:"id" json:"id" yaml:"id"`
	SenderID  string    `bson:"sender_id" json:"sender_id" yaml:"sender_id"`
	Text      string    `bson:"text" json:"text" yaml:"text"`
	Img       string    `bson:"img,omitempty" json:"img,omitempty" yaml:"img,omitempty"`
	CreatedAt time.Time `bson:"created_at" json:"created_at" yaml:"created_at"`
}
