package chat_test

import (
	"context"
	"sync"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"go.sirus.dev/p2p-comm/duochat/pkg/chat"
	"go.sirus.dev/p2p-comm/duochat/pkg/connector"
	"go.sirus.dev/p2p-comm/duochat/pkg/store"
	"go.uber.org/zap"
	"syreclabs.com/go/faker"
)

func silentLogger() *zap.SugaredLogger {
	config := zap.NewDevelopmentConfig()
	config.Level = zap.NewAtomicLevelAt(zap.FatalLevel + 1) // silent
	logger, err := config.Build()
	if err != nil {
		Fail(err.Error())
	}
	return logger.Sugar()
}

// readHookStore runs a hook once after the next document read,
// letting a spec land a concurrent write inside another call's
// read-then-write window
type readHookStore struct {
	store.Store
	mu     sync.Mutex
	onRead func()
}

func (h *readHookStore) Get(ctx context.Context, collection, key string) (store.Document, error) {
	doc, err := h.Store.Get(ctx, collection, key)
	h.mu.Lock()
	hook := h.onRead
	h.onRead = nil
	h.mu.Unlock()
	if hook != nil {
		hook()
	}
	return doc, err
}

var _ = Describe("API", func() {
	var (
		ctx context.Context
		db  store.Store
		api *chat.API
	)

	seedRoom := func(id string, room *chat.RoomModel) *chat.RoomModel {
		room.ID = id
		_, err := db.Set(ctx, chat.RoomCollection, id, room.Document())
		Expect(err).To(BeNil())
		for _, m := range room.Members {
			err = api.RecordMembership(ctx, m.UserID, id)
			Expect(err).To(BeNil())
		}
		return room
	}

	BeforeEach(func() {
		ctx = context.Background()
		db = connector.ConnectToMemory()
		api = chat.NewAPI(db, silentLogger())
	})

	Describe("GetEvents", func() {
		It("should return chat events channel", func() {
			events := make(chan *chat.ChatEvent)
			api.SetEvents(events)
			Expect(api.GetEvents()).To(Equal(events))
		})
	})

	Describe("Create", func() {
		It("should create an open room and index both members", func() {
			m1 := chat.FakeMember()
			m2 := chat.FakeMember()
			room, err := api.Create(ctx, chat.NewRoomParam{
				Title: "Trip",
				Members: []chat.MemberParam{
					{UserID: m1.UserID, Username: m1.Username, Photo: m1.Photo},
					{UserID: m2.UserID, Username: m2.Username, Photo: m2.Photo},
				},
			})
			Expect(err).To(BeNil())
			Expect(room.ID).NotTo(BeEmpty())
			Expect(room.Title).To(Equal("Trip"))
			Expect(room.IsOpen).To(BeTrue())
			Expect(room.IsRemoved).To(BeFalse())
			Expect(room.MemberIDs()).To(Equal([]string{m1.UserID, m2.UserID}))
			ids, err := api.ListMemberships(ctx, m1.UserID)
			Expect(err).To(BeNil())
			Expect(ids).To(ContainElement(room.ID))
			ids, err = api.ListMemberships(ctx, m2.UserID)
			Expect(err).To(BeNil())
			Expect(ids).To(ContainElement(room.ID))
		})

		It("should survive a round trip through the store", func() {
			m := chat.FakeMember()
			room, err := api.Create(ctx, chat.NewRoomParam{
				Title:   faker.Lorem().Sentence(3),
				Members: []chat.MemberParam{{UserID: m.UserID}},
			})
			Expect(err).To(BeNil())
			loaded, err := api.GetByID(ctx, room.ID)
			Expect(err).To(BeNil())
			Expect(loaded.Title).To(Equal(room.Title))
			Expect(loaded.IsOpen).To(BeTrue())
			Expect(loaded.Members).To(HaveLen(1))
			Expect(loaded.Members[0].UserID).To(Equal(m.UserID))
		})

		It("should publish room created event", func(done Done) {
			events := make(chan *chat.ChatEvent)
			api.SetEvents(events)
			m1 := chat.FakeMember()
			m2 := chat.FakeMember()
			go func() {
				api.Create(ctx, chat.NewRoomParam{
					Title: "Trip",
					Members: []chat.MemberParam{
						{UserID: m1.UserID},
						{UserID: m2.UserID},
					},
				})
			}()
			event := <-events
			Expect(event.Event).To(Equal(chat.RoomCreated))
			payload := event.Payload.(*chat.RoomEventPayload)
			Expect(payload.Title).To(Equal("Trip"))
			Expect(payload.MemberIDs).To(ConsistOf(m1.UserID, m2.UserID))
			Expect(payload.IsOpen).To(BeTrue())
			close(done)
		}, 0.3)

		When("title is empty", func() {
			It("should return validation error without writing", func() {
				_, err := api.Create(ctx, chat.NewRoomParam{
					Title:   "",
					Members: []chat.MemberParam{{UserID: "u1"}},
				})
				Expect(chat.IsValidation(err)).To(BeTrue())
				Expect(err.Error()).To(Equal(chat.InvalidTitleError))
				keys, err := db.ListKeys(ctx, chat.RoomCollection)
				Expect(err).To(BeNil())
				Expect(keys).To(HaveLen(0))
			})
		})

		When("a member has no user id", func() {
			It("should return validation error without writing", func() {
				_, err := api.Create(ctx, chat.NewRoomParam{
					Title:   "Trip",
					Members: []chat.MemberParam{{UserID: "u1"}, {UserID: ""}},
				})
				Expect(chat.IsValidation(err)).To(BeTrue())
				Expect(err.Error()).To(Equal(chat.InvalidMemberError))
				keys, err := db.ListKeys(ctx, chat.RoomCollection)
				Expect(err).To(BeNil())
				Expect(keys).To(HaveLen(0))
			})
		})
	})

	Describe("Join", func() {
		var open *chat.RoomModel

		JustBeforeEach(func() {
			open = chat.FakeRoom()
			open.Members = open.Members[:1]
			seedRoom("r1", open)
		})

		It("should append the member and close the room", func() {
			joiner := chat.FakeMember()
			room, err := api.Join(ctx, chat.JoinRoomParam{
				RoomID: "r1",
				Member: chat.MemberParam{UserID: joiner.UserID},
			})
			Expect(err).To(BeNil())
			Expect(room.IsOpen).To(BeFalse())
			Expect(room.Members).To(HaveLen(2))
			Expect(room.Members[1].UserID).To(Equal(joiner.UserID))
			loaded, err := api.GetByID(ctx, "r1")
			Expect(err).To(BeNil())
			Expect(loaded.IsOpen).To(BeFalse())
			Expect(loaded.Members).To(HaveLen(2))
			ids, err := api.ListMemberships(ctx, joiner.UserID)
			Expect(err).To(BeNil())
			Expect(ids).To(ContainElement("r1"))
		})

		When("room does not exist", func() {
			It("should return not found error", func() {
				_, err := api.Join(ctx, chat.JoinRoomParam{
					RoomID: "missing",
					Member: chat.MemberParam{UserID: "u1"},
				})
				Expect(chat.IsNotFound(err)).To(BeTrue())
				Expect(err.Error()).To(Equal(chat.RoomNotFoundError))
			})
		})

		When("room has been removed", func() {
			It("should return already removed error before the open check", func() {
				removed := chat.FakeRoom()
				removed.IsRemoved = true
				// still flagged open: removal check must win
				removed.IsOpen = true
				seedRoom("r2", removed)
				_, err := api.Join(ctx, chat.JoinRoomParam{
					RoomID: "r2",
					Member: chat.MemberParam{UserID: "u1"},
				})
				Expect(chat.IsAlreadyRemoved(err)).To(BeTrue())
			})
		})

		When("room is already claimed", func() {
			It("should return private room error and keep both members", func() {
				joiner := chat.FakeMember()
				_, err := api.Join(ctx, chat.JoinRoomParam{
					RoomID: "r1",
					Member: chat.MemberParam{UserID: joiner.UserID},
				})
				Expect(err).To(BeNil())
				third := chat.FakeMember()
				_, err = api.Join(ctx, chat.JoinRoomParam{
					RoomID: "r1",
					Member: chat.MemberParam{UserID: third.UserID},
				})
				Expect(chat.IsPrivateRoom(err)).To(BeTrue())
				loaded, err := api.GetByID(ctx, "r1")
				Expect(err).To(BeNil())
				Expect(loaded.Members).To(HaveLen(2))
			})
		})

		When("member has no user id", func() {
			It("should return validation error", func() {
				_, err := api.Join(ctx, chat.JoinRoomParam{
					RoomID: "r1",
					Member: chat.MemberParam{UserID: ""},
				})
				Expect(chat.IsValidation(err)).To(BeTrue())
			})
		})

		When("the room is removed between the read and the write", func() {
			It("should refuse the join and leave the room untouched", func() {
				hooked := &readHookStore{Store: db}
				racy := chat.NewAPI(hooked, silentLogger())
				hooked.onRead = func() {
					Expect(api.Remove(ctx, chat.RemoveRoomParam{
						RoomID: "r1",
						Soft:   true,
					})).To(BeNil())
				}
				_, err := racy.Join(ctx, chat.JoinRoomParam{
					RoomID: "r1",
					Member: chat.MemberParam{UserID: "late"},
				})
				Expect(chat.IsAlreadyRemoved(err)).To(BeTrue())
				loaded, err := api.GetByID(ctx, "r1")
				Expect(err).To(BeNil())
				Expect(loaded.IsRemoved).To(BeTrue())
				Expect(loaded.Members).To(HaveLen(1))
				// soft removal leaves isOpen alone; the failed join must too
				Expect(loaded.IsOpen).To(BeTrue())
			})
		})

		When("two joins race on the same open room", func() {
			It("should let exactly one win", func() {
				results := make(chan error, 2)
				wg := sync.WaitGroup{}
				for i := 0; i < 2; i++ {
					wg.Add(1)
					go func() {
						defer wg.Done()
						_, err := api.Join(ctx, chat.JoinRoomParam{
							RoomID: "r1",
							Member: chat.MemberParam{UserID: faker.RandomString(5)},
						})
						results <- err
					}()
				}
				wg.Wait()
				close(results)
				failures := []error{}
				for err := range results {
					if err != nil {
						failures = append(failures, err)
					}
				}
				Expect(failures).To(HaveLen(1))
				Expect(chat.IsPrivateRoom(failures[0])).To(BeTrue())
				loaded, err := api.GetByID(ctx, "r1")
				Expect(err).To(BeNil())
				Expect(loaded.Members).To(HaveLen(2))
				Expect(loaded.IsOpen).To(BeFalse())
			})
		})
	})

	Describe("SetTitle", func() {
		var room *chat.RoomModel

		JustBeforeEach(func() {
			room = seedRoom("r1", chat.FakeRoom())
		})

		It("should rename the room", func() {
			updated, err := api.SetTitle(ctx, chat.SetTitleParam{
				RoomID: "r1",
				Title:  "Renamed",
			})
			Expect(err).To(BeNil())
			Expect(updated.Title).To(Equal("Renamed"))
			loaded, err := api.GetByID(ctx, "r1")
			Expect(err).To(BeNil())
			Expect(loaded.Title).To(Equal("Renamed"))
		})

		It("should leave other fields untouched", func() {
			_, err := api.SetTitle(ctx, chat.SetTitleParam{
				RoomID: "r1",
				Title:  "Renamed",
			})
			Expect(err).To(BeNil())
			loaded, err := api.GetByID(ctx, "r1")
			Expect(err).To(BeNil())
			Expect(loaded.IsOpen).To(Equal(room.IsOpen))
			Expect(loaded.MemberIDs()).To(Equal(room.MemberIDs()))
		})

		When("title is empty", func() {
			It("should return validation error", func() {
				_, err := api.SetTitle(ctx, chat.SetTitleParam{
					RoomID: "r1",
					Title:  "",
				})
				Expect(chat.IsValidation(err)).To(BeTrue())
			})
		})

		When("room has been removed", func() {
			It("should return already removed error", func() {
				err := api.Remove(ctx, chat.RemoveRoomParam{RoomID: "r1", Soft: true})
				Expect(err).To(BeNil())
				_, err = api.SetTitle(ctx, chat.SetTitleParam{
					RoomID: "r1",
					Title:  "Renamed",
				})
				Expect(chat.IsAlreadyRemoved(err)).To(BeTrue())
			})
		})

		When("room does not exist", func() {
			It("should return not found error", func() {
				_, err := api.SetTitle(ctx, chat.SetTitleParam{
					RoomID: "missing",
					Title:  "Renamed",
				})
				Expect(chat.IsNotFound(err)).To(BeTrue())
			})
		})

		When("the room is removed between the read and the write", func() {
			It("should refuse the rename", func() {
				hooked := &readHookStore{Store: db}
				racy := chat.NewAPI(hooked, silentLogger())
				hooked.onRead = func() {
					Expect(api.Remove(ctx, chat.RemoveRoomParam{
						RoomID: "r1",
						Soft:   true,
					})).To(BeNil())
				}
				_, err := racy.SetTitle(ctx, chat.SetTitleParam{
					RoomID: "r1",
					Title:  "Renamed",
				})
				Expect(chat.IsAlreadyRemoved(err)).To(BeTrue())
				loaded, err := api.GetByID(ctx, "r1")
				Expect(err).To(BeNil())
				Expect(loaded.Title).To(Equal(room.Title))
			})
		})
	})

	Describe("Remove", func() {
		var room *chat.RoomModel

		JustBeforeEach(func() {
			room = seedRoom("r1", chat.FakeRoom())
		})

		It("should soft remove and keep the document", func() {
			err := api.Remove(ctx, chat.RemoveRoomParam{RoomID: "r1", Soft: true})
			Expect(err).To(BeNil())
			loaded, err := api.GetByID(ctx, "r1")
			Expect(err).To(BeNil())
			Expect(loaded.IsRemoved).To(BeTrue())
			Expect(loaded.Title).To(Equal(room.Title))
			Expect(loaded.MemberIDs()).To(Equal(room.MemberIDs()))
		})

		It("should be idempotent on double soft remove", func() {
			err := api.Remove(ctx, chat.RemoveRoomParam{RoomID: "r1", Soft: true})
			Expect(err).To(BeNil())
			err = api.Remove(ctx, chat.RemoveRoomParam{RoomID: "r1", Soft: true})
			Expect(err).To(BeNil())
			loaded, err := api.GetByID(ctx, "r1")
			Expect(err).To(BeNil())
			Expect(loaded.IsRemoved).To(BeTrue())
		})

		It("should hard remove the document", func() {
			err := api.Remove(ctx, chat.RemoveRoomParam{RoomID: "r1", Soft: false})
			Expect(err).To(BeNil())
			_, err = api.GetByID(ctx, "r1")
			Expect(chat.IsNotFound(err)).To(BeTrue())
		})

		It("should tolerate hard removing an absent room", func() {
			err := api.Remove(ctx, chat.RemoveRoomParam{RoomID: "missing", Soft: false})
			Expect(err).To(BeNil())
		})

		It("should retract the room from every member's index record", func() {
			err := api.Remove(ctx, chat.RemoveRoomParam{RoomID: "r1", Soft: true})
			Expect(err).To(BeNil())
			for _, m := range room.Members {
				ids, err := api.ListMemberships(ctx, m.UserID)
				Expect(err).To(BeNil())
				Expect(ids).NotTo(ContainElement("r1"))
			}
		})

		When("soft removing an absent room", func() {
			It("should return not found error", func() {
				err := api.Remove(ctx, chat.RemoveRoomParam{RoomID: "missing", Soft: true})
				Expect(chat.IsNotFound(err)).To(BeTrue())
			})
		})
	})

	Describe("GetForUser", func() {
		It("should load every room of the user", func() {
			shared := chat.FakeMember()
			r1 := chat.FakeRoom()
			r1.Members[0] = shared
			seedRoom("r1", r1)
			r2 := chat.FakeRoom()
			r2.Members[1] = shared
			seedRoom("r2", r2)
			rooms, err := api.GetForUser(ctx, shared.UserID)
			Expect(err).To(BeNil())
			ids := []string{}
			for _, r := range rooms {
				ids = append(ids, r.ID)
			}
			Expect(ids).To(ConsistOf("r1", "r2"))
		})

		It("should skip index entries that no longer resolve", func() {
			member := chat.FakeMember()
			room := chat.FakeRoom()
			room.Members[0] = member
			seedRoom("r1", room)
			err := api.RecordMembership(ctx, member.UserID, "gone")
			Expect(err).To(BeNil())
			rooms, err := api.GetForUser(ctx, member.UserID)
			Expect(err).To(BeNil())
			Expect(rooms).To(HaveLen(1))
			Expect(rooms[0].ID).To(Equal("r1"))
		})

		When("user has no index record", func() {
			It("should report not found", func() {
				_, err := api.GetForUser(ctx, "stranger")
				Expect(chat.IsNotFound(err)).To(BeTrue())
			})
		})
	})
})
