package chat

import (
	"time"

	"syreclabs.com/go/faker"
)

// FakeMember return random fake member data
func FakeMember() *MemberModel {
	return &MemberModel{
		UserID:   faker.RandomString(5),
		Username: faker.Name().Name(),
		Photo:    faker.Avatar().String(),
	}
}

// FakeRoom return random fake open room data
func FakeRoom() *RoomModel {
	return &RoomModel{
		Title:     faker.Lorem().Sentence(3),
		Members:   []*MemberModel{FakeMember(), FakeMember()},
		CreatedAt: time.Now(),
		IsOpen:    true,
		IsRemoved: false,
	}
}

// FakeMessage return random fake message data sent by a room member
func FakeMessage(room *RoomModel) *MessageModel {
	return &MessageModel{
		RoomID:    room.ID,
		Body:      faker.Lorem().Sentence(5),
		From:      room.Members[0].UserID,
		CreatedAt: time.Now(),
	}
}
