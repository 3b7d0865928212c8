// Code generated by protoc-gen-go from escrowrpc.proto. Hand-maintained
// in this tree alongside the .proto source it mirrors, the usual
// checked-in-generated-code convention; regenerate with protoc +
// protoc-gen-go rather than editing the message shapes here by hand
// once a real toolchain is available.
package escrowrpc

import (
	fmt "fmt"
)

// ListEscrowsRequest is the ListEscrows request message.
type ListEscrowsRequest struct {
	Status string `protobuf:"bytes,1,opt,name=status,proto3" json:"status,omitempty"`

	XXX_NoUnkeyedLiteral struct{} `json:"-"`
	XXX_unrecognized     []byte   `json:"-"`
	XXX_sizecache        int32    `json:"-"`
}

func (m *ListEscrowsRequest) Reset()         { *m = ListEscrowsRequest{} }
func (m *ListEscrowsRequest) String() string { return fmt.Sprintf("%+v", *m) }
func (*ListEscrowsRequest) ProtoMessage()    {}

func (m *ListEscrowsRequest) GetStatus() string {
	if m != nil {
		return m.Status
	}
	return ""
}

// ListEscrowsResponse is the ListEscrows response message.
type ListEscrowsResponse struct {
	Escrows []*EscrowSummary `protobuf:"bytes,1,rep,name=escrows,proto3" json:"escrows,omitempty"`

	XXX_NoUnkeyedLiteral struct{} `json:"-"`
	XXX_unrecognized     []byte   `json:"-"`
	XXX_sizecache        int32    `json:"-"`
}

func (m *ListEscrowsResponse) Reset()         { *m = ListEscrowsResponse{} }
func (m *ListEscrowsResponse) String() string { return fmt.Sprintf("%+v", *m) }
func (*ListEscrowsResponse) ProtoMessage()    {}

func (m *ListEscrowsResponse) GetEscrows() []*EscrowSummary {
	if m != nil {
		return m.Escrows
	}
	return nil
}

// EscrowSummary is a flattened, read-only projection of tradefsm.Escrow
// safe to surface over the admin RPC.
type EscrowSummary struct {
	EscrowId                 string `protobuf:"bytes,1,opt,name=escrow_id,json=escrowId,proto3" json:"escrow_id,omitempty"`
	Status                   string `protobuf:"bytes,2,opt,name=status,proto3" json:"status,omitempty"`
	BuyerId                  string `protobuf:"bytes,3,opt,name=buyer_id,json=buyerId,proto3" json:"buyer_id,omitempty"`
	SellerId                 string `protobuf:"bytes,4,opt,name=seller_id,json=sellerId,proto3" json:"seller_id,omitempty"`
	Token                    string `protobuf:"bytes,5,opt,name=token,proto3" json:"token,omitempty"`
	Chain                    string `protobuf:"bytes,6,opt,name=chain,proto3" json:"chain,omitempty"`
	Quantity                 string `protobuf:"bytes,7,opt,name=quantity,proto3" json:"quantity,omitempty"`
	AccumulatedDepositAmount string `protobuf:"bytes,8,opt,name=accumulated_deposit_amount,json=accumulatedDepositAmount,proto3" json:"accumulated_deposit_amount,omitempty"`
	ReleaseTransactionHash   string `protobuf:"bytes,9,opt,name=release_transaction_hash,json=releaseTransactionHash,proto3" json:"release_transaction_hash,omitempty"`
	GroupId                  string `protobuf:"bytes,10,opt,name=group_id,json=groupId,proto3" json:"group_id,omitempty"`

	XXX_NoUnkeyedLiteral struct{} `json:"-"`
	XXX_unrecognized     []byte   `json:"-"`
	XXX_sizecache        int32    `json:"-"`
}

func (m *EscrowSummary) Reset()         { *m = EscrowSummary{} }
func (m *EscrowSummary) String() string { return fmt.Sprintf("%+v", *m) }
func (*EscrowSummary) ProtoMessage()    {}

// GetEscrowRequest is the GetEscrow request message.
type GetEscrowRequest struct {
	EscrowId string `protobuf:"bytes,1,opt,name=escrow_id,json=escrowId,proto3" json:"escrow_id,omitempty"`

	XXX_NoUnkeyedLiteral struct{} `json:"-"`
	XXX_unrecognized     []byte   `json:"-"`
	XXX_sizecache        int32    `json:"-"`
}

func (m *GetEscrowRequest) Reset()         { *m = GetEscrowRequest{} }
func (m *GetEscrowRequest) String() string { return fmt.Sprintf("%+v", *m) }
func (*GetEscrowRequest) ProtoMessage()    {}

func (m *GetEscrowRequest) GetEscrowId() string {
	if m != nil {
		return m.EscrowId
	}
	return ""
}

// ListRoomsRequest is the ListRooms request message (no fields).
type ListRoomsRequest struct {
	XXX_NoUnkeyedLiteral struct{} `json:"-"`
	XXX_unrecognized     []byte   `json:"-"`
	XXX_sizecache        int32    `json:"-"`
}

func (m *ListRoomsRequest) Reset()         { *m = ListRoomsRequest{} }
func (m *ListRoomsRequest) String() string { return fmt.Sprintf("%+v", *m) }
func (*ListRoomsRequest) ProtoMessage()    {}

// ListRoomsResponse is the ListRooms response message.
type ListRoomsResponse struct {
	Rooms []*RoomSummary `protobuf:"bytes,1,rep,name=rooms,proto3" json:"rooms,omitempty"`

	XXX_NoUnkeyedLiteral struct{} `json:"-"`
	XXX_unrecognized     []byte   `json:"-"`
	XXX_sizecache        int32    `json:"-"`
}

func (m *ListRoomsResponse) Reset()         { *m = ListRoomsResponse{} }
func (m *ListRoomsResponse) String() string { return fmt.Sprintf("%+v", *m) }
func (*ListRoomsResponse) ProtoMessage()    {}

// RoomSummary is a flattened, read-only projection of roompool.Room.
type RoomSummary struct {
	Id               string `protobuf:"bytes,1,opt,name=id,proto3" json:"id,omitempty"`
	Status           string `protobuf:"bytes,2,opt,name=status,proto3" json:"status,omitempty"`
	AssignedEscrowId string `protobuf:"bytes,3,opt,name=assigned_escrow_id,json=assignedEscrowId,proto3" json:"assigned_escrow_id,omitempty"`
	InviteLink       string `protobuf:"bytes,4,opt,name=invite_link,json=inviteLink,proto3" json:"invite_link,omitempty"`

	XXX_NoUnkeyedLiteral struct{} `json:"-"`
	XXX_unrecognized     []byte   `json:"-"`
	XXX_sizecache        int32    `json:"-"`
}

func (m *RoomSummary) Reset()         { *m = RoomSummary{} }
func (m *RoomSummary) String() string { return fmt.Sprintf("%+v", *m) }
func (*RoomSummary) ProtoMessage()    {}

// GetVaultRegistryRequest is the GetVaultRegistry request message (no
// fields).
type GetVaultRegistryRequest struct {
	XXX_NoUnkeyedLiteral struct{} `json:"-"`
	XXX_unrecognized     []byte   `json:"-"`
	XXX_sizecache        int32    `json:"-"`
}

func (m *GetVaultRegistryRequest) Reset()         { *m = GetVaultRegistryRequest{} }
func (m *GetVaultRegistryRequest) String() string { return fmt.Sprintf("%+v", *m) }
func (*GetVaultRegistryRequest) ProtoMessage()    {}

// GetVaultRegistryResponse is the GetVaultRegistry response message.
type GetVaultRegistryResponse struct {
	Contracts []*ContractSummary `protobuf:"bytes,1,rep,name=contracts,proto3" json:"contracts,omitempty"`

	XXX_NoUnkeyedLiteral struct{} `json:"-"`
	XXX_unrecognized     []byte   `json:"-"`
	XXX_sizecache        int32    `json:"-"`
}

func (m *GetVaultRegistryResponse) Reset()         { *m = GetVaultRegistryResponse{} }
func (m *GetVaultRegistryResponse) String() string { return fmt.Sprintf("%+v", *m) }
func (*GetVaultRegistryResponse) ProtoMessage()    {}

// ContractSummary is a flattened, read-only projection of
// vaultregistry.Contract.
type ContractSummary struct {
	Token      string `protobuf:"bytes,1,opt,name=token,proto3" json:"token,omitempty"`
	Chain      string `protobuf:"bytes,2,opt,name=chain,proto3" json:"chain,omitempty"`
	Address    string `protobuf:"bytes,3,opt,name=address,proto3" json:"address,omitempty"`
	FeePercent string `protobuf:"bytes,4,opt,name=fee_percent,json=feePercent,proto3" json:"fee_percent,omitempty"`
	Status     string `protobuf:"bytes,5,opt,name=status,proto3" json:"status,omitempty"`
	GroupId    string `protobuf:"bytes,6,opt,name=group_id,json=groupId,proto3" json:"group_id,omitempty"`

	XXX_NoUnkeyedLiteral struct{} `json:"-"`
	XXX_unrecognized     []byte   `json:"-"`
	XXX_sizecache        int32    `json:"-"`
}

func (m *ContractSummary) Reset()         { *m = ContractSummary{} }
func (m *ContractSummary) String() string { return fmt.Sprintf("%+v", *m) }
func (*ContractSummary) ProtoMessage()    {}
