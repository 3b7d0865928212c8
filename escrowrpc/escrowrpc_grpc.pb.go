// Code generated by protoc-gen-go-grpc from escrowrpc.proto. Hand-
// maintained alongside escrowrpc.pb.go; regenerate both together once a
// protoc toolchain is wired into the build.
package escrowrpc

import (
	context "context"

	grpc "google.golang.org/grpc"
	codes "google.golang.org/grpc/codes"
	status "google.golang.org/grpc/status"
)

// EscrowAdminClient is the client API for EscrowAdmin.
type EscrowAdminClient interface {
	ListEscrows(ctx context.Context, in *ListEscrowsRequest, opts ...grpc.CallOption) (*ListEscrowsResponse, error)
	GetEscrow(ctx context.Context, in *GetEscrowRequest, opts ...grpc.CallOption) (*EscrowSummary, error)
	ListRooms(ctx context.Context, in *ListRoomsRequest, opts ...grpc.CallOption) (*ListRoomsResponse, error)
	GetVaultRegistry(ctx context.Context, in *GetVaultRegistryRequest, opts ...grpc.CallOption) (*GetVaultRegistryResponse, error)
}

type escrowAdminClient struct {
	cc grpc.ClientConnInterface
}

// NewEscrowAdminClient constructs a client over an existing connection.
func NewEscrowAdminClient(cc grpc.ClientConnInterface) EscrowAdminClient {
	return &escrowAdminClient{cc}
}

func (c *escrowAdminClient) ListEscrows(ctx context.Context, in *ListEscrowsRequest, opts ...grpc.CallOption) (*ListEscrowsResponse, error) {
	out := new(ListEscrowsResponse)
	err := c.cc.Invoke(ctx, "/escrowrpc.EscrowAdmin/ListEscrows", in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *escrowAdminClient) GetEscrow(ctx context.Context, in *GetEscrowRequest, opts ...grpc.CallOption) (*EscrowSummary, error) {
	out := new(EscrowSummary)
	err := c.cc.Invoke(ctx, "/escrowrpc.EscrowAdmin/GetEscrow", in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *escrowAdminClient) ListRooms(ctx context.Context, in *ListRoomsRequest, opts ...grpc.CallOption) (*ListRoomsResponse, error) {
	out := new(ListRoomsResponse)
	err := c.cc.Invoke(ctx, "/escrowrpc.EscrowAdmin/ListRooms", in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *escrowAdminClient) GetVaultRegistry(ctx context.Context, in *GetVaultRegistryRequest, opts ...grpc.CallOption) (*GetVaultRegistryResponse, error) {
	out := new(GetVaultRegistryResponse)
	err := c.cc.Invoke(ctx, "/escrowrpc.EscrowAdmin/GetVaultRegistry", in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// EscrowAdminServer is the server API for EscrowAdmin. Implementations
// must embed UnimplementedEscrowAdminServer for forward compatibility.
type EscrowAdminServer interface {
	ListEscrows(context.Context, *ListEscrowsRequest) (*ListEscrowsResponse, error)
	GetEscrow(context.Context, *GetEscrowRequest) (*EscrowSummary, error)
	ListRooms(context.Context, *ListRoomsRequest) (*ListRoomsResponse, error)
	GetVaultRegistry(context.Context, *GetVaultRegistryRequest) (*GetVaultRegistryResponse, error)
}

// UnimplementedEscrowAdminServer must be embedded for forward
// compatibility with future RPCs added to the service.
type UnimplementedEscrowAdminServer struct{}

func (UnimplementedEscrowAdminServer) ListEscrows(context.Context, *ListEscrowsRequest) (*ListEscrowsResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ListEscrows not implemented")
}
func (UnimplementedEscrowAdminServer) GetEscrow(context.Context, *GetEscrowRequest) (*EscrowSummary, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetEscrow not implemented")
}
func (UnimplementedEscrowAdminServer) ListRooms(context.Context, *ListRoomsRequest) (*ListRoomsResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ListRooms not implemented")
}
func (UnimplementedEscrowAdminServer) GetVaultRegistry(context.Context, *GetVaultRegistryRequest) (*GetVaultRegistryResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetVaultRegistry not implemented")
}

// RegisterEscrowAdminServer registers srv against s.
func RegisterEscrowAdminServer(s grpc.ServiceRegistrar, srv EscrowAdminServer) {
	s.RegisterService(&EscrowAdmin_ServiceDesc, srv)
}

func _EscrowAdmin_ListEscrows_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ListEscrowsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EscrowAdminServer).ListEscrows(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/escrowrpc.EscrowAdmin/ListEscrows"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(EscrowAdminServer).ListEscrows(ctx, req.(*ListEscrowsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _EscrowAdmin_GetEscrow_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetEscrowRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EscrowAdminServer).GetEscrow(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/escrowrpc.EscrowAdmin/GetEscrow"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(EscrowAdminServer).GetEscrow(ctx, req.(*GetEscrowRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _EscrowAdmin_ListRooms_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ListRoomsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EscrowAdminServer).ListRooms(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/escrowrpc.EscrowAdmin/ListRooms"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(EscrowAdminServer).ListRooms(ctx, req.(*ListRoomsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _EscrowAdmin_GetVaultRegistry_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetVaultRegistryRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EscrowAdminServer).GetVaultRegistry(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/escrowrpc.EscrowAdmin/GetVaultRegistry"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(EscrowAdminServer).GetVaultRegistry(ctx, req.(*GetVaultRegistryRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// EscrowAdmin_ServiceDesc is the grpc.ServiceDesc for EscrowAdmin.
var EscrowAdmin_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "escrowrpc.EscrowAdmin",
	HandlerType: (*EscrowAdminServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListEscrows", Handler: _EscrowAdmin_ListEscrows_Handler},
		{MethodName: "GetEscrow", Handler: _EscrowAdmin_GetEscrow_Handler},
		{MethodName: "ListRooms", Handler: _EscrowAdmin_ListRooms_Handler},
		{MethodName: "GetVaultRegistry", Handler: _EscrowAdmin_GetVaultRegistry_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "escrowrpc.proto",
}
