package api

import (
	"context"
	"strings"

	"staybook/internal/domain"
	"staybook/internal/models"

	"google.golang.org/grpc"
)

const (
	bookingServiceName = "staybook.booking.v1.BookingService"

	methodCreateBooking     = "/" + bookingServiceName + "/CreateBooking"
	methodGetBooking        = "/" + bookingServiceName + "/GetBooking"
	methodTransitionStatus  = "/" + bookingServiceName + "/TransitionStatus"
	methodListBookings      = "/" + bookingServiceName + "/ListBookings"
	methodCheckAvailability = "/" + bookingServiceName + "/CheckAvailability"
)

var methodPermissions = map[string]string{
	methodCreateBooking:     permWriteBookings,
	methodGetBooking:        permReadBookings,
	methodTransitionStatus:  permWriteBookings,
	methodListBookings:      permReadBookings,
	methodCheckAvailability: permReadBookings,
}

// BookingServiceServer is the gRPC surface of the booking service.
type BookingServiceServer interface {
	CreateBooking(context.Context, *CreateBookingRequest) (*BookingMessage, error)
	GetBooking(context.Context, *GetBookingRequest) (*BookingMessage, error)
	TransitionStatus(context.Context, *TransitionStatusRequest) (*BookingMessage, error)
	ListBookings(context.Context, *ListBookingsRequest) (*ListBookingsResponse, error)
	CheckAvailability(context.Context, *CheckAvailabilityRequest) (*CheckAvailabilityResponse, error)
}

// BookingService_ServiceDesc describes the service for a JSON-coded gRPC server.
var BookingService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: bookingServiceName,
	HandlerType: (*BookingServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateBooking", Handler: unaryHandler(methodCreateBooking, BookingServiceServer.CreateBooking)},
		{MethodName: "GetBooking", Handler: unaryHandler(methodGetBooking, BookingServiceServer.GetBooking)},
		{MethodName: "TransitionStatus", Handler: unaryHandler(methodTransitionStatus, BookingServiceServer.TransitionStatus)},
		{MethodName: "ListBookings", Handler: unaryHandler(methodListBookings, BookingServiceServer.ListBookings)},
		{MethodName: "CheckAvailability", Handler: unaryHandler(methodCheckAvailability, BookingServiceServer.CheckAvailability)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "staybook/booking/v1/booking.json",
}

func RegisterBookingServiceServer(s grpc.ServiceRegistrar, srv BookingServiceServer) {
	s.RegisterService(&BookingService_ServiceDesc, srv)
}

func unaryHandler[Req, Resp any](fullMethod string, call func(BookingServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(BookingServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(BookingServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// BookingGRPCService adapts the booking service to BookingServiceServer.
type BookingGRPCService struct {
	bookings    domain.BookingService
	idempotency domain.IdempotencyStore
}

func NewBookingGRPCService(deps Deps) *BookingGRPCService {
	return &BookingGRPCService{bookings: deps.Bookings, idempotency: deps.Idempotency}
}

func (s *BookingGRPCService) CreateBooking(ctx context.Context, req *CreateBookingRequest) (*BookingMessage, error) {
	in, err := req.toInput()
	if err != nil {
		return nil, grpcError(err)
	}
	b, _, err := createIdempotent(ctx, s.bookings, s.idempotency, strings.TrimSpace(req.IdempotencyKey), in)
	if err != nil {
		return nil, grpcError(err)
	}
	return toBookingMessage(b), nil
}

func (s *BookingGRPCService) GetBooking(ctx context.Context, req *GetBookingRequest) (*BookingMessage, error) {
	b, err := s.bookings.GetBooking(ctx, strings.TrimSpace(req.ID))
	if err != nil {
		return nil, grpcError(err)
	}
	return toBookingMessage(b), nil
}

func (s *BookingGRPCService) TransitionStatus(ctx context.Context, req *TransitionStatusRequest) (*BookingMessage, error) {
	to := models.Status(strings.ToLower(strings.TrimSpace(req.Status)))
	b, err := s.bookings.TransitionStatus(ctx, strings.TrimSpace(req.ID), to)
	if err != nil {
		return nil, grpcError(err)
	}
	return toBookingMessage(b), nil
}

func (s *BookingGRPCService) ListBookings(ctx context.Context, req *ListBookingsRequest) (*ListBookingsResponse, error) {
	f := models.BookingFilter{
		PropertyID: strings.TrimSpace(req.PropertyID),
		CustomerID: strings.TrimSpace(req.CustomerID),
		Status:     strings.ToLower(strings.TrimSpace(req.Status)),
		Search:     strings.TrimSpace(req.Search),
	}
	if req.From != "" || req.To != "" {
		rng, err := parseRange(req.From, req.To)
		if err != nil {
			return nil, grpcError(err)
		}
		f.DateRange = &rng
	}

	bookings, err := s.bookings.ListBookings(ctx, f)
	if err != nil {
		return nil, grpcError(err)
	}
	return &ListBookingsResponse{Bookings: toBookingMessages(bookings)}, nil
}

func (s *BookingGRPCService) CheckAvailability(ctx context.Context, req *CheckAvailabilityRequest) (*CheckAvailabilityResponse, error) {
	rng, err := parseRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, grpcError(err)
	}
	conflictID, available, err := s.bookings.CheckAvailability(ctx, strings.TrimSpace(req.PropertyID), rng)
	if err != nil {
		return nil, grpcError(err)
	}
	return &CheckAvailabilityResponse{Available: available, ConflictingBookingID: conflictID}, nil
}

// BookingServiceClient calls the booking service over a JSON-coded connection.
type BookingServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewBookingServiceClient(cc grpc.ClientConnInterface) *BookingServiceClient {
	return &BookingServiceClient{cc: cc}
}

func (c *BookingServiceClient) invoke(ctx context.Context, method string, in, out any, opts ...grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, method, in, out, opts...)
}

func (c *BookingServiceClient) CreateBooking(ctx context.Context, in *CreateBookingRequest, opts ...grpc.CallOption) (*BookingMessage, error) {
	out := new(BookingMessage)
	if err := c.invoke(ctx, methodCreateBooking, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *BookingServiceClient) GetBooking(ctx context.Context, in *GetBookingRequest, opts ...grpc.CallOption) (*BookingMessage, error) {
	out := new(BookingMessage)
	if err := c.invoke(ctx, methodGetBooking, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *BookingServiceClient) TransitionStatus(ctx context.Context, in *TransitionStatusRequest, opts ...grpc.CallOption) (*BookingMessage, error) {
	out := new(BookingMessage)
	if err := c.invoke(ctx, methodTransitionStatus, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *BookingServiceClient) ListBookings(ctx context.Context, in *ListBookingsRequest, opts ...grpc.CallOption) (*ListBookingsResponse, error) {
	out := new(ListBookingsResponse)
	if err := c.invoke(ctx, methodListBookings, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *BookingServiceClient) CheckAvailability(ctx context.Context, in *CheckAvailabilityRequest, opts ...grpc.CallOption) (*CheckAvailabilityResponse, error) {
	out := new(CheckAvailabilityResponse)
	if err := c.invoke(ctx, methodCheckAvailability, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
