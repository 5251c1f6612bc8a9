package handler

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/rl1809/stockflow/internal/core/domain"
	"github.com/rl1809/stockflow/internal/core/service"
)

const POSServiceName = "stockflow.v1.POS"

type ScanSKURequest struct {
	SKU string `json:"sku"`
}

type ScanSKUReply struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Product *domain.Product `json:"product,omitempty"`
	Total   decimal.Decimal `json:"total"`
	Count   int             `json:"count"`
}

type CheckoutRequest struct {
	PaymentMethod  string          `json:"payment_method"`
	Discount       decimal.Decimal `json:"discount"`
	IdempotencyKey string          `json:"idempotency_key"`
}

type CheckoutReply struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Sale    *domain.Sale `json:"sale,omitempty"`
}

type GetSaleRequest struct {
	ID string `json:"id"`
}

type GetSaleReply struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Sale    *domain.Sale `json:"sale,omitempty"`
}

// POSServer is the till-facing RPC surface: scan, pay, look up a sale.
type POSServer interface {
	ScanSKU(context.Context, *ScanSKURequest) (*ScanSKUReply, error)
	Checkout(context.Context, *CheckoutRequest) (*CheckoutReply, error)
	GetSale(context.Context, *GetSaleRequest) (*GetSaleReply, error)
}

type GRPCHandler struct {
	auth  *service.AuthService
	cart  *service.CartService
	sales *service.SaleService
	log   zerolog.Logger
}

func NewGRPCHandler(auth *service.AuthService, cart *service.CartService, sales *service.SaleService, log zerolog.Logger) *GRPCHandler {
	return &GRPCHandler{auth: auth, cart: cart, sales: sales, log: log}
}

// NewGRPCServer returns a server with the POS service registered behind
// bearer-token authentication.
func NewGRPCServer(h *GRPCHandler, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(h.authInterceptor))
	s := grpc.NewServer(opts...)
	s.RegisterService(&posServiceDesc, h)
	return s
}

func (h *GRPCHandler) ScanSKU(ctx context.Context, req *ScanSKURequest) (*ScanSKUReply, error) {
	product, cart, err := h.cart.Scan(ctx, actorFromContext(ctx), req.SKU)
	if err != nil {
		msg, err := h.replyError(err)
		if err != nil {
			return nil, err
		}
		return &ScanSKUReply{Success: false, Message: msg}, nil
	}

	return &ScanSKUReply{
		Success: true,
		Message: "Added " + product.Name + " to cart",
		Product: product,
		Total:   cart.Total(),
		Count:   cart.Count(),
	}, nil
}

func (h *GRPCHandler) Checkout(ctx context.Context, req *CheckoutRequest) (*CheckoutReply, error) {
	sale, err := h.sales.Checkout(ctx, actorFromContext(ctx), service.CheckoutRequest{
		PaymentMethod:  req.PaymentMethod,
		Discount:       req.Discount,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		msg, err := h.replyError(err)
		if err != nil {
			return nil, err
		}
		return &CheckoutReply{Success: false, Message: msg}, nil
	}

	return &CheckoutReply{
		Success: true,
		Message: "sale placed successfully",
		Sale:    sale,
	}, nil
}

func (h *GRPCHandler) GetSale(ctx context.Context, req *GetSaleRequest) (*GetSaleReply, error) {
	sale, err := h.sales.GetSale(ctx, actorFromContext(ctx), req.ID)
	if err != nil {
		msg, err := h.replyError(err)
		if err != nil {
			return nil, err
		}
		return &GetSaleReply{Success: false, Message: msg}, nil
	}
	return &GetSaleReply{Success: true, Sale: sale}, nil
}

// replyError turns business errors into a reply message. Anything the
// cashier cannot act on becomes a status error instead.
func (h *GRPCHandler) replyError(err error) (string, error) {
	m, known := classify(err)
	if !known {
		h.log.Error().Err(err).Msg("grpc request failed")
		return "", status.Error(codes.Internal, "internal error")
	}
	if m.code == codes.Unauthenticated || m.code == codes.Unavailable {
		return "", status.Error(m.code, m.message)
	}
	return m.message, nil
}

type grpcActorKey struct{}

func (h *GRPCHandler) authInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	var token string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get("authorization"); len(values) > 0 {
			token = bearerToken(values[0])
			if token == "" {
				token = strings.TrimSpace(values[0])
			}
		}
	}

	principal, err := h.auth.Authenticate(ctx, token)
	if err != nil {
		m, _ := classify(err)
		if m.code == codes.Internal {
			h.log.Error().Err(err).Str("method", info.FullMethod).Msg("grpc authentication failed")
		}
		return nil, status.Error(m.code, m.message)
	}
	return handler(context.WithValue(ctx, grpcActorKey{}, principal.Actor()), req)
}

func actorFromContext(ctx context.Context) domain.Actor {
	actor, _ := ctx.Value(grpcActorKey{}).(domain.Actor)
	return actor
}

var posServiceDesc = grpc.ServiceDesc{
	ServiceName: POSServiceName,
	HandlerType: (*POSServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ScanSKU", Handler: posScanSKUHandler},
		{MethodName: "Checkout", Handler: posCheckoutHandler},
		{MethodName: "GetSale", Handler: posGetSaleHandler},
	},
	Streams: []grpc.StreamDesc{},
}

func posScanSKUHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ScanSKURequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(POSServer).ScanSKU(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + POSServiceName + "/ScanSKU"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(POSServer).ScanSKU(ctx, req.(*ScanSKURequest))
	})
}

func posCheckoutHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CheckoutRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(POSServer).Checkout(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + POSServiceName + "/Checkout"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(POSServer).Checkout(ctx, req.(*CheckoutRequest))
	})
}

func posGetSaleHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetSaleRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(POSServer).GetSale(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + POSServiceName + "/GetSale"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(POSServer).GetSale(ctx, req.(*GetSaleRequest))
	})
}
