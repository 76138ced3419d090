package repository

import "github.com/fathima-sithara/dm-client/internal/store"

const (
	UsersCollection     = "users"
	UserChatsCollection = "userchats"
	ChatsCollection     = "chats"
	MediaCollection     = "media"
)

var ErrNotFound = store.ErrNotFound
