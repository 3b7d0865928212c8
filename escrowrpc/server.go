package escrowrpc

import (
	"context"
	"encoding/hex"
	"fmt"

	grpc_middleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	macaroon "gopkg.in/macaroon.v2"

	"github.com/decred/slog"

	"github.com/p2pmmx/escrowd/escrowerr"
	"github.com/p2pmmx/escrowd/roompool"
	"github.com/p2pmmx/escrowd/tradefsm"
	"github.com/p2pmmx/escrowd/vaultregistry"
)

// mdMacaroonKey is the metadata key clients carry their admin macaroon
// under, the same "macaroon" key lnrpc's interceptor looks for.
const mdMacaroonKey = "macaroon"

// Server implements EscrowAdminServer over the coordinator's three
// read models: the trade store, the room pool, and the vault registry.
// It never mutates any of them — every RPC here is a projection.
type Server struct {
	UnimplementedEscrowAdminServer

	escrows   *tradefsm.Store
	rooms     *roompool.DBStore
	contracts *vaultregistry.Registry
}

// NewServer constructs a Server over the given collaborators.
func NewServer(escrows *tradefsm.Store, rooms *roompool.DBStore, contracts *vaultregistry.Registry) *Server {
	return &Server{escrows: escrows, rooms: rooms, contracts: contracts}
}

// ListEscrows returns every escrow, optionally filtered to one status.
func (s *Server) ListEscrows(ctx context.Context, req *ListEscrowsRequest) (*ListEscrowsResponse, error) {
	var (
		escrows []*tradefsm.Escrow
		err     error
	)
	if req.GetStatus() == "" {
		escrows, err = s.escrows.ListAll()
	} else {
		escrows, err = s.escrows.ListByStatus(tradefsm.Status(req.GetStatus()))
	}
	if err != nil {
		return nil, toGRPCErr(err)
	}

	out := make([]*EscrowSummary, 0, len(escrows))
	for _, e := range escrows {
		out = append(out, summarizeEscrow(e))
	}
	return &ListEscrowsResponse{Escrows: out}, nil
}

// GetEscrow returns a single escrow by ID.
func (s *Server) GetEscrow(ctx context.Context, req *GetEscrowRequest) (*EscrowSummary, error) {
	e, err := s.escrows.Load(req.GetEscrowId())
	if err != nil {
		return nil, toGRPCErr(err)
	}
	return summarizeEscrow(e), nil
}

// ListRooms returns every pooled room regardless of status.
func (s *Server) ListRooms(ctx context.Context, req *ListRoomsRequest) (*ListRoomsResponse, error) {
	rooms, err := s.rooms.ListAll()
	if err != nil {
		return nil, toGRPCErr(err)
	}
	out := make([]*RoomSummary, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, &RoomSummary{
			Id:               r.ID,
			Status:           string(r.Status),
			AssignedEscrowId: r.AssignedEscrowID,
			InviteLink:       r.InviteLink,
		})
	}
	return &ListRoomsResponse{Rooms: out}, nil
}

// GetVaultRegistry returns every deployed contract row currently cached.
func (s *Server) GetVaultRegistry(ctx context.Context, req *GetVaultRegistryRequest) (*GetVaultRegistryResponse, error) {
	contracts := s.contracts.All()
	out := make([]*ContractSummary, 0, len(contracts))
	for _, c := range contracts {
		out = append(out, &ContractSummary{
			Token:      string(c.Token),
			Chain:      string(c.Chain),
			Address:    c.Address,
			FeePercent: c.FeePercent.String(),
			Status:     string(c.Status),
			GroupId:    c.GroupID,
		})
	}
	return &GetVaultRegistryResponse{Contracts: out}, nil
}

func summarizeEscrow(e *tradefsm.Escrow) *EscrowSummary {
	return &EscrowSummary{
		EscrowId:                 e.EscrowID,
		Status:                   string(e.Status),
		BuyerId:                  e.BuyerID,
		SellerId:                 e.SellerID,
		Token:                    string(e.Token),
		Chain:                    string(e.Chain),
		Quantity:                 e.Quantity.String(),
		AccumulatedDepositAmount: e.AccumulatedDepositAmount.String(),
		ReleaseTransactionHash:   e.ReleaseTransactionHash,
		GroupId:                  e.GroupID,
	}
}

// toGRPCErr maps the coordinator's error taxonomy onto gRPC status codes,
// the boundary translation every admin RPC response passes through.
func toGRPCErr(err error) error {
	e, ok := escrowerr.As(err)
	if !ok {
		return status.Error(codes.Internal, err.Error())
	}
	switch e.Kind {
	case escrowerr.NotFound:
		return status.Error(codes.NotFound, e.Message)
	case escrowerr.Validation:
		return status.Error(codes.InvalidArgument, e.Message)
	case escrowerr.Unauthorized:
		return status.Error(codes.PermissionDenied, e.Message)
	case escrowerr.Conflict:
		return status.Error(codes.Aborted, e.Message)
	case escrowerr.ResourceExhausted:
		return status.Error(codes.ResourceExhausted, e.Message)
	default:
		return status.Error(codes.Internal, e.Message)
	}
}

// errorLogUnaryServerInterceptor logs any error a handler returns before
// passing it back to the client unchanged.
func errorLogUnaryServerInterceptor(logger slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler) (interface{}, error) {

		resp, err := handler(ctx, req)
		if err != nil {
			logger.Errorf("[%v]: %v", info.FullMethod, err)
		}
		return resp, err
	}
}

// macaroonFromContext extracts the hex-decoded macaroon bytes a client
// attached under mdMacaroonKey, the same metadata convention lnrpc's own
// macaroon interceptor reads from.
func macaroonFromContext(ctx context.Context) ([]byte, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "no metadata in request context")
	}
	vals := md.Get(mdMacaroonKey)
	if len(vals) == 0 {
		return nil, status.Error(codes.Unauthenticated, "no macaroon provided")
	}
	raw, err := hex.DecodeString(vals[0])
	if err != nil {
		return nil, status.Errorf(codes.Unauthenticated, "malformed macaroon encoding: %v", err)
	}
	return raw, nil
}

// macaroonUnaryServerInterceptor verifies the admin macaroon attached to
// every inbound call's metadata against rootKey, the coordinator's single
// shared signing secret. There are no caveats beyond the macaroon's
// signature here — the admin service has exactly one permission tier
// (read-only introspection), so there is nothing finer to carve up yet.
func macaroonUnaryServerInterceptor(rootKey []byte) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler) (interface{}, error) {

		raw, err := macaroonFromContext(ctx)
		if err != nil {
			return nil, err
		}

		mac := &macaroon.Macaroon{}
		if err := mac.UnmarshalBinary(raw); err != nil {
			return nil, status.Errorf(codes.Unauthenticated, "invalid macaroon: %v", err)
		}
		if err := mac.Verify(rootKey, func(caveat string) error {
			return fmt.Errorf("unsupported caveat: %s", caveat)
		}, nil); err != nil {
			return nil, status.Errorf(codes.Unauthenticated, "macaroon verification failed: %v", err)
		}

		return handler(ctx, req)
	}
}

// BakeAdminMacaroon mints the single admin-tier macaroon operators
// distribute to dashboard and CLI clients. Both take the root key that
// cmd/escrowd generates on first run and keeps in macaroon_root.key; there
// is no bakery discharge flow
// since there is only one principal.
func BakeAdminMacaroon(rootKey []byte, id string) ([]byte, error) {
	mac, err := macaroon.New(rootKey, []byte(id), "escrowd", macaroon.LatestVersion)
	if err != nil {
		return nil, escrowerr.Internalf(err, "bake admin macaroon")
	}
	return mac.MarshalBinary()
}

// ServerOptions returns the grpc.Server options wiring the error-log
// interceptor, macaroon auth, and Prometheus metrics into one unary chain,
// for cmd/escrowd to pass to grpc.NewServer.
func ServerOptions(logger slog.Logger, macaroonRootKey []byte) []grpc.ServerOption {
	grpc_prometheus.EnableHandlingTimeHistogram()
	return []grpc.ServerOption{
		grpc_middleware.WithUnaryServerChain(
			errorLogUnaryServerInterceptor(logger),
			macaroonUnaryServerInterceptor(macaroonRootKey),
			grpc_prometheus.UnaryServerInterceptor,
		),
	}
}

// RegisterMetrics registers srv with the default Prometheus registry's
// gRPC server metrics collector so operators can scrape RPC counts and
// latencies alongside the domain counters in the metrics package.
func RegisterMetrics(s *grpc.Server) {
	grpc_prometheus.Register(s)
}
