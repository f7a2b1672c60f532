package directory

import (
	"campuschat/contract"
	"campuschat/domain"
	"campuschat/store"
)

// RoomFromDoc decodes a room document. Unknown or malformed fields decode
// to zero values; the directory degrades rather than drops.
func RoomFromDoc(doc contract.Document) domain.Room {
	return domain.Room{
		ID:           doc.ID,
		Type:         domain.RoomType(store.FieldString(doc.Fields, "type")),
		Participants: store.FieldStrings(doc.Fields, "participants"),
		Name:         store.FieldString(doc.Fields, "name"),
		CreatedBy:    store.FieldString(doc.Fields, "createdBy"),
		Admins:       store.FieldStrings(doc.Fields, "admins"),
		CreatedAt:    store.FieldTime(doc.Fields, "createdAt"),
		ExpiresAt:    store.FieldTime(doc.Fields, "expiresAt"),
		LastMessage:  store.FieldString(doc.Fields, "lastMessage"),
		UpdatedAt:    store.FieldTime(doc.Fields, "updatedAt"),
	}
}
