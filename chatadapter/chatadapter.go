// Package chatadapter defines the narrow boundary contract between the
// trade state machine (C5) and the chat-platform client (out of scope:
// the concrete client and its wire protocol are external collaborators).
// The adapter is dumb: it renders and routes, it never mutates escrow
// state. Modeled on the contract-doc style of a thin capability
// interface — declare the surface, let the concrete client satisfy it.
package chatadapter

import "context"

// Button is one inline action offered on a sent message.
type Button struct {
	Label    string
	Callback string // opaque data round-tripped back in CallbackReceived
}

// Adapter is the outbound surface the state machine, room pool, and
// scheduler render through. No method here inspects or stores escrow
// state; every call is a side effect against the chat platform only.
type Adapter interface {
	SendText(ctx context.Context, roomID, text string, buttons []Button) (messageID string, err error)
	SendPhoto(ctx context.Context, roomID, imageRef, caption string, buttons []Button) (messageID string, err error)
	EditText(ctx context.Context, roomID, messageID, text string, buttons []Button) error
	EditCaption(ctx context.Context, roomID, messageID, caption string, buttons []Button) error
	DeleteMessage(ctx context.Context, roomID, messageID string) error
	PinMessage(ctx context.Context, roomID, messageID string) error
	UnpinMessage(ctx context.Context, roomID, messageID string) error

	// ApproveJoin and DeclineJoin resolve a pending JoinRequest. The
	// adapter does not decide who may join; the caller (room pool) does.
	ApproveJoin(ctx context.Context, roomID, userID string) error
	DeclineJoin(ctx context.Context, roomID, userID string) error

	// Kick removes a user from a room outright, used by
	// roompool.RemoveAllUsers on recycle.
	Kick(ctx context.Context, roomID, userID string) error

	// RevokeInviteLink and CreateInviteLink back roompool's
	// RefreshInviteLink. The minted link always requires join approval;
	// the adapter enforces this by construction, not by caller option.
	RevokeInviteLink(ctx context.Context, roomID string) error
	CreateInviteLink(ctx context.Context, roomID string) (link string, err error)
}

// CommandReceived is an inbound slash-style command.
type CommandReceived struct {
	Cmd    string
	Args   []string
	UserID string
	RoomID string
}

// CallbackReceived is an inbound button press.
type CallbackReceived struct {
	Data      string
	UserID    string
	RoomID    string
	MessageID string
}

// JoinRequest is an inbound request to join a room whose invite link
// requires approval.
type JoinRequest struct {
	UserID string
	RoomID string
}

// MessageReceived is an inbound free-text message, optionally a reply.
type MessageReceived struct {
	Text    string
	UserID  string
	RoomID  string
	ReplyTo string
}

// InboundHandler is the interface a consumer of the events the adapter
// routes in implements; no type in this repository implements it, and
// tradefsm.Manager is driven through its own methods instead. Declared
// here, alongside Adapter, so the boundary contract reads as one document.
type InboundHandler interface {
	HandleCommand(ctx context.Context, ev CommandReceived) error
	HandleCallback(ctx context.Context, ev CallbackReceived) error
	HandleJoinRequest(ctx context.Context, ev JoinRequest) error
	HandleMessage(ctx context.Context, ev MessageReceived) error
}
