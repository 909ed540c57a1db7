package domain

// RoomConfig is the immutable identity of a room: its process-unique
// name, whether it shows up in the public listing, and its owner.
type RoomConfig struct {
	Name   string
	Public bool
	Owner  User
}

// RoomListing is one entry of the public room list.
type RoomListing struct {
	Name  string     `json:"name"`
	Owner PublicUser `json:"owner"`
}
